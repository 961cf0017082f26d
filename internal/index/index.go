package index

import (
	"context"
	"errors"
	"log"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve"
)

var (
	// ErrNotIndexed is returned when no index exists for a file name.
	ErrNotIndexed = errors.New("file not indexed")
	// ErrRebuilding is returned when a retrieval races an in-flight
	// re-ingest of the same file name.
	ErrRebuilding = errors.New("index rebuild in progress")
)

// Chunk is a bounded span of extracted file text used as a retrieval unit.
type Chunk struct {
	ID        string `json:"id"`
	FileName  string `json:"file_name"`
	FilePath  string `json:"file_path"`
	Text      string `json:"text"`
	Index     int    `json:"index"`
	Length    int    `json:"length"`
	FileType  string `json:"file_type"`
	Method    string `json:"extraction_method"`
	PageCount int    `json:"page_count,omitempty"`
	Rows      int    `json:"rows,omitempty"`
	Columns   int    `json:"columns,omitempty"`
}

// Hit is a retrieved chunk with its relevance score.
type Hit struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// Embedder produces one vector per input text. tools/embedding.Embedding
// satisfies this; a nil Embedder switches the store to keyword-only mode.
type Embedder interface {
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
}

// Store owns one in-memory index per file name. An entry is either
// fully built or absent: Replace builds the new entry aside and swaps
// it in only on success, so a failed build never leaves partial state.
type Store struct {
	mu       sync.RWMutex
	files    map[string]*fileEntry
	embedder Embedder
	logger   *log.Logger
}

type fileEntry struct {
	mu      sync.RWMutex
	chunks  []Chunk
	vectors [][]float32 // parallel to chunks; nil when embeddings unavailable
	bm      bleve.Index
}

// NewStore creates an empty store. embedder may be nil.
func NewStore(embedder Embedder, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(log.Writer(), "[INDEX] ", log.LstdFlags)
	}
	return &Store{
		files:    make(map[string]*fileEntry),
		embedder: embedder,
		logger:   logger,
	}
}

// Replace indexes the chunks under the file name, replacing any
// previous entry for that name entirely. A concurrent Retrieve against
// the same name fails with ErrRebuilding for the duration.
func (s *Store) Replace(ctx context.Context, name string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return errors.New("no chunks to index")
	}

	s.mu.Lock()
	entry, ok := s.files[name]
	if !ok {
		entry = &fileEntry{}
		s.files[name] = entry
	}
	s.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	bm, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		s.drop(name, entry)
		return err
	}
	for _, c := range chunks {
		if err := bm.Index(c.ID, c); err != nil {
			s.drop(name, entry)
			return err
		}
	}

	var vectors [][]float32
	if s.embedder != nil {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		vectors, err = s.embedder.EmbedMany(ctx, texts)
		if err != nil {
			// Documented fallback: keep the keyword index, drop vectors.
			s.logger.Printf("embedding failed for %s, keyword-only index: %v", name, err)
			vectors = nil
		} else if len(vectors) != len(chunks) {
			s.logger.Printf("embedding count mismatch for %s (%d != %d), keyword-only index", name, len(vectors), len(chunks))
			vectors = nil
		}
	}

	entry.chunks = append([]Chunk(nil), chunks...)
	entry.vectors = vectors
	entry.bm = bm
	return nil
}

// drop removes a never-completed entry so no partial index survives.
func (s *Store) drop(name string, entry *fileEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.chunks == nil {
		delete(s.files, name)
	}
}

// Retrieve returns the k most relevant chunks for the query from the
// named file's index: by embedding cosine similarity when vectors
// exist, otherwise by keyword overlap scored matches/distinctQueryWords.
func (s *Store) Retrieve(ctx context.Context, query, name string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 3
	}

	s.mu.RLock()
	entry, ok := s.files[name]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotIndexed
	}

	if !entry.mu.TryRLock() {
		return nil, ErrRebuilding
	}
	defer entry.mu.RUnlock()
	if entry.chunks == nil {
		return nil, ErrNotIndexed
	}

	if entry.vectors != nil && s.embedder != nil {
		hits, err := s.vectorSearch(ctx, entry, query, k)
		if err == nil {
			return hits, nil
		}
		s.logger.Printf("vector search failed for %s, keyword fallback: %v", name, err)
	}
	return keywordSearch(entry, query, k), nil
}

func (s *Store) vectorSearch(ctx context.Context, entry *fileEntry, query string, k int) ([]Hit, error) {
	qvecs, err := s.embedder.EmbedMany(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(qvecs) == 0 {
		return nil, errors.New("empty query embedding")
	}

	type scored struct {
		idx   int
		score float64
	}
	scoreds := make([]scored, len(entry.vectors))
	for i, v := range entry.vectors {
		scoreds[i] = scored{idx: i, score: cosine(qvecs[0], v)}
	}
	sort.SliceStable(scoreds, func(i, j int) bool { return scoreds[i].score > scoreds[j].score })

	var out []Hit
	for _, sc := range scoreds {
		if len(out) >= k {
			break
		}
		out = append(out, Hit{Chunk: entry.chunks[sc.idx], Score: sc.score, Rank: len(out) + 1})
	}
	return out, nil
}

// keywordSearch selects candidates with the BM25 index and scores each
// candidate matches/distinctQueryWords. When the BM25 query fails it
// falls back to scanning every chunk with the same formula.
func keywordSearch(entry *fileEntry, query string, k int) []Hit {
	words := distinctWords(query)
	if len(words) == 0 {
		return nil
	}

	candidates := entry.chunks
	if entry.bm != nil {
		req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(query), k*3, 0, false)
		if res, err := entry.bm.Search(req); err == nil && len(res.Hits) > 0 {
			byID := make(map[string]Chunk, len(entry.chunks))
			for _, c := range entry.chunks {
				byID[c.ID] = c
			}
			selected := make([]Chunk, 0, len(res.Hits))
			for _, h := range res.Hits {
				if c, ok := byID[h.ID]; ok {
					selected = append(selected, c)
				}
			}
			candidates = selected
		}
	}

	type scored struct {
		chunk Chunk
		score float64
	}
	var scoreds []scored
	for _, c := range candidates {
		text := strings.ToLower(c.Text)
		matches := 0
		for w := range words {
			if strings.Contains(text, w) {
				matches++
			}
		}
		if matches > 0 {
			scoreds = append(scoreds, scored{chunk: c, score: float64(matches) / float64(len(words))})
		}
	}
	sort.SliceStable(scoreds, func(i, j int) bool { return scoreds[i].score > scoreds[j].score })

	var out []Hit
	for _, sc := range scoreds {
		if len(out) >= k {
			break
		}
		out = append(out, Hit{Chunk: sc.chunk, Score: sc.score, Rank: len(out) + 1})
	}
	return out
}

// Count returns the number of chunks indexed under the file name.
func (s *Store) Count(name string) int {
	s.mu.RLock()
	entry, ok := s.files[name]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return len(entry.chunks)
}

// Has reports whether a fully built index exists for the file name.
func (s *Store) Has(name string) bool { return s.Count(name) > 0 }

// Remove drops the index entry for the file name.
func (s *Store) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, name)
}

func distinctWords(q string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(q)) {
		out[w] = struct{}{}
	}
	return out
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
