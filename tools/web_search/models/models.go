package models

import "time"

// Result is a single hit returned by a search backend.
type Result struct {
	Rank      int       `json:"rank"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Snippet   string    `json:"snippet"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Error     bool      `json:"error,omitempty"`
}
