package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/queryagent/config"
	"github.com/mohammad-safakhou/queryagent/internal/index"
)

func filesCfg() config.FilesConfig {
	return config.FilesConfig{
		ChunkSize:    100,
		ChunkOverlap: 20,
		MaxFileSize:  1 << 20,
		TopK:         3,
	}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestIngestAndProcess(t *testing.T) {
	store := index.NewStore(nil, nil)
	a := NewFileAgent(store, filesCfg(), nil)

	path := writeTempFile(t, "report.txt",
		"The quarterly revenue grew by twelve percent compared to last year. "+
			"Operating costs stayed flat across all regions during the same period.")

	out := a.Process(context.Background(), "quarterly revenue", []string{path})

	if out.FilesProcessed != 1 {
		t.Fatalf("files processed = %d, want 1", out.FilesProcessed)
	}
	if len(out.Processing) != 1 || !out.Processing[0].Success {
		t.Fatalf("ingest should succeed: %+v", out.Processing)
	}
	if out.TotalChunks == 0 {
		t.Fatal("expected at least one chunk")
	}
	if len(out.Hits) == 0 {
		t.Fatal("expected retrieval hits for a matching query")
	}
	if !strings.Contains(out.Hits[0].Chunk.Text, "revenue") {
		t.Fatalf("top hit should contain the query term: %q", out.Hits[0].Chunk.Text)
	}
}

func TestProcessRecordsPerFileFailures(t *testing.T) {
	store := index.NewStore(nil, nil)
	a := NewFileAgent(store, filesCfg(), nil)

	good := writeTempFile(t, "good.txt", "A perfectly readable file with enough text to chunk and index for retrieval.")
	missing := filepath.Join(t.TempDir(), "missing.txt")

	out := a.Process(context.Background(), "readable file", []string{missing, good})

	if len(out.Processing) != 2 {
		t.Fatalf("every file needs a processing record, got %d", len(out.Processing))
	}
	if out.Processing[0].Success || out.Processing[0].Error == "" {
		t.Fatalf("missing file must record a failure: %+v", out.Processing[0])
	}
	if !out.Processing[1].Success {
		t.Fatalf("one bad file must not sink the batch: %+v", out.Processing[1])
	}
	if len(out.Hits) == 0 {
		t.Fatal("the good file should still produce hits")
	}
}

func TestReingestReplacesIndex(t *testing.T) {
	store := index.NewStore(nil, nil)
	a := NewFileAgent(store, filesCfg(), nil)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte(strings.Repeat("first version of the document text. ", 10)), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := a.Ingest(ctx, path, "doc.txt")
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	firstChunks := res.Chunks

	if err := os.WriteFile(path, []byte("second version, now tiny."), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err = a.Ingest(ctx, path, "doc.txt")
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if res.Chunks >= firstChunks {
		t.Fatalf("shrunken file should have fewer chunks: %d -> %d", firstChunks, res.Chunks)
	}
	if store.Count("doc.txt") != res.Chunks {
		t.Fatalf("store count %d, want %d", store.Count("doc.txt"), res.Chunks)
	}
}

func TestProcessHitsCappedAndSorted(t *testing.T) {
	store := index.NewStore(nil, nil)
	cfg := filesCfg()
	cfg.TopK = 2
	a := NewFileAgent(store, cfg, nil)

	p1 := writeTempFile(t, "one.txt", strings.Repeat("alpha beta gamma delta epsilon words about storage systems. ", 8))
	p2 := writeTempFile(t, "two.txt", strings.Repeat("alpha storage engines and retrieval pipelines described here. ", 8))

	out := a.Process(context.Background(), "alpha storage", []string{p1, p2})
	if len(out.Hits) > 2 {
		t.Fatalf("hits must be capped at top_k, got %d", len(out.Hits))
	}
	for i := 1; i < len(out.Hits); i++ {
		if out.Hits[i-1].Score < out.Hits[i].Score {
			t.Fatalf("hits out of order: %f before %f", out.Hits[i-1].Score, out.Hits[i].Score)
		}
	}
	for i, h := range out.Hits {
		if h.Rank != i+1 {
			t.Fatalf("rank %d at position %d", h.Rank, i)
		}
	}
}
