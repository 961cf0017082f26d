package requestlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestRecordEventAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requests.json")
	l, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := l.RecordEvent("req-1", "router", map[string]string{"choice": "WEB_SEARCH"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.RecordEvent("req-1", "done", nil); err != nil {
		t.Fatalf("record: %v", err)
	}

	events, err := l.Events()
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Stage != "router" || events[1].Stage != "done" {
		t.Fatalf("events out of order: %+v", events)
	}

	// the file on disk is itself one valid JSON array
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var raw []map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("file is not a JSON array: %v", err)
	}
}

func TestRecordEventConcurrent(t *testing.T) {
	l, err := New(filepath.Join(t.TempDir(), "requests.json"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.RecordEvent("req", "stage", nil)
		}()
	}
	wg.Wait()

	events, err := l.Events()
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 10 {
		t.Fatalf("got %d events, want 10", len(events))
	}
}

func TestCorruptFileDoesNotPoison(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requests.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	l, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := l.RecordEvent("req-1", "router", nil); err != nil {
		t.Fatalf("record after corruption: %v", err)
	}
	events, err := l.Events()
	if err != nil || len(events) != 1 {
		t.Fatalf("corrupt file should be discarded, got %d events, err %v", len(events), err)
	}
}

func TestUnmarshalablePayloadReplaced(t *testing.T) {
	l, err := New(filepath.Join(t.TempDir(), "requests.json"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := l.RecordEvent("req-1", "stage", func() {}); err != nil {
		t.Fatalf("record: %v", err)
	}
	events, err := l.Events()
	if err != nil || len(events) != 1 {
		t.Fatalf("got %d events, err %v", len(events), err)
	}
}
