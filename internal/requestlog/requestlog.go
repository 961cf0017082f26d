// Package requestlog persists pipeline events as one JSON array on
// disk, so a run's requests can be inspected after the fact.
package requestlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event is one recorded pipeline stage for one request.
type Event struct {
	RequestID string      `json:"request_id"`
	Stage     string      `json:"stage"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// Log appends events to a JSON array file. Writes are serialized; a
// reader always sees a complete, valid array.
type Log struct {
	mu   sync.Mutex
	path string
}

func New(path string) (*Log, error) {
	if path == "" {
		path = filepath.Join("outputs", "requests.json")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create request log dir: %w", err)
	}
	return &Log{path: path}, nil
}

// RecordEvent appends one event. Payloads that cannot be marshalled
// are replaced with their error text rather than dropped.
func (l *Log) RecordEvent(requestID, stage string, payload interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	events, err := l.read()
	if err != nil {
		return err
	}

	if _, err := json.Marshal(payload); err != nil {
		payload = map[string]string{"marshal_error": err.Error()}
	}
	events = append(events, Event{
		RequestID: requestID,
		Stage:     stage,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})

	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal request log: %w", err)
	}
	return os.WriteFile(l.path, data, 0o644)
}

// Events returns every recorded event, oldest first.
func (l *Log) Events() ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

func (l *Log) read() ([]Event, error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read request log: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		// A corrupt file must not poison future requests.
		return nil, nil
	}
	return events, nil
}
