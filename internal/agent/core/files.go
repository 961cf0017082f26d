package core

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sort"

	"github.com/mohammad-safakhou/queryagent/config"
	"github.com/mohammad-safakhou/queryagent/internal/index"
	"github.com/mohammad-safakhou/queryagent/tools/chunking"
	"github.com/mohammad-safakhou/queryagent/tools/extract"
)

// FileAgent ingests uploaded files into the retrieval store and
// answers queries against them. Extraction failures are recorded per
// file; one broken file never aborts the rest of a batch.
type FileAgent struct {
	store  *index.Store
	cfg    config.FilesConfig
	logger *log.Logger
}

func NewFileAgent(store *index.Store, cfg config.FilesConfig, logger *log.Logger) *FileAgent {
	if logger == nil {
		logger = log.New(log.Writer(), "[FILES] ", log.LstdFlags)
	}
	return &FileAgent{store: store, cfg: cfg, logger: logger}
}

// Store exposes the underlying index store.
func (a *FileAgent) Store() *index.Store { return a.store }

// Ingest extracts, chunks and indexes one file. Re-ingesting the same
// file name replaces its index entirely.
func (a *FileAgent) Ingest(ctx context.Context, filePath, fileName string) (FileProcessingResult, error) {
	result := FileProcessingResult{FilePath: filePath, FileName: fileName}

	ext, err := extract.File(filePath, a.cfg.MaxFileSize)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}
	result.FileType = ext.FileType
	result.Method = ext.Method

	parts := chunking.Split(ext.Text, a.cfg.ChunkSize, a.cfg.ChunkOverlap)
	chunks := make([]index.Chunk, len(parts))
	for i, part := range parts {
		chunks[i] = index.Chunk{
			ID:        fmt.Sprintf("%s#%03d", fileName, i),
			FileName:  fileName,
			FilePath:  filePath,
			Text:      part,
			Index:     i,
			Length:    len(part),
			FileType:  ext.FileType,
			Method:    ext.Method,
			PageCount: ext.PageCount,
			Rows:      ext.Rows,
			Columns:   ext.Columns,
		}
	}

	if err := a.store.Replace(ctx, fileName, chunks); err != nil {
		result.Error = err.Error()
		return result, err
	}

	result.Success = true
	result.Chunks = len(chunks)
	a.logger.Printf("indexed %s: %d chunks (%s)", fileName, len(chunks), ext.Method)
	return result, nil
}

// Process ingests every file and retrieves the top-k most relevant
// chunks for the query across all successfully indexed files.
func (a *FileAgent) Process(ctx context.Context, query string, filePaths []string) FileOutput {
	out := FileOutput{FilesProcessed: len(filePaths)}

	var indexed []string
	for _, path := range filePaths {
		name := filepath.Base(path)
		res, err := a.Ingest(ctx, path, name)
		out.Processing = append(out.Processing, res)
		if err != nil {
			a.logger.Printf("ingest failed for %s: %v", name, err)
			continue
		}
		out.TotalChunks += res.Chunks
		indexed = append(indexed, name)
	}

	if query == "" || len(indexed) == 0 {
		return out
	}

	var hits []index.Hit
	for _, name := range indexed {
		fileHits, err := a.store.Retrieve(ctx, query, name, a.cfg.TopK)
		if err != nil {
			a.logger.Printf("retrieval failed for %s: %v", name, err)
			continue
		}
		hits = append(hits, fileHits...)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > a.cfg.TopK {
		hits = hits[:a.cfg.TopK]
	}
	for i := range hits {
		hits[i].Rank = i + 1
	}
	out.Hits = hits
	return out
}
