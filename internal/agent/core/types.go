package core

import (
	"time"

	"github.com/mohammad-safakhou/queryagent/internal/index"
	"github.com/mohammad-safakhou/queryagent/tools/web_search/models"
)

// Query represents a user's question plus any attached files
type Query struct {
	Text      string   `json:"text"`
	HasFiles  bool     `json:"has_files"`
	FilePaths []string `json:"file_paths,omitempty"`
}

// RouteChoice is the router's decision of which handler(s) to invoke
type RouteChoice string

const (
	RouteWebSearch    RouteChoice = "WEB_SEARCH"
	RouteFileAnalysis RouteChoice = "FILE_ANALYSIS"
	RouteBoth         RouteChoice = "BOTH"
)

// RouteDecision carries the chosen route and the reasoning behind it
type RouteDecision struct {
	Choice    RouteChoice `json:"choice"`
	Reasoning string      `json:"reasoning"`
}

// SourceRef identifies one search source contributing to the answer
type SourceRef struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Rank  int    `json:"rank"`
}

// ExtractedInfo condenses a search result list into ranked key facts
type ExtractedInfo struct {
	Summary      string      `json:"summary"`
	KeyFacts     []string    `json:"key_facts"`
	Sources      []SourceRef `json:"sources"`
	Confidence   float64     `json:"confidence"`
	TotalResults int         `json:"total_results"`
}

// SearchOutput bundles the raw results with the extracted information
type SearchOutput struct {
	Results   []models.Result `json:"results"`
	Extracted ExtractedInfo   `json:"extracted_info"`
}

// FileProcessingResult is the per-file outcome of an ingest attempt
type FileProcessingResult struct {
	FilePath string `json:"file_path"`
	FileName string `json:"file_name"`
	Success  bool   `json:"success"`
	Chunks   int    `json:"chunks"`
	FileType string `json:"file_type,omitempty"`
	Method   string `json:"extraction_method,omitempty"`
	Error    string `json:"error,omitempty"`
}

// FileOutput bundles ingest outcomes with the retrieved chunks
type FileOutput struct {
	FilesProcessed int                    `json:"files_processed"`
	TotalChunks    int                    `json:"total_chunks"`
	Processing     []FileProcessingResult `json:"processing_results"`
	Hits           []index.Hit            `json:"search_results"`
}

// CitationType distinguishes web citations from file citations
type CitationType string

const (
	CitationWeb  CitationType = "web"
	CitationFile CitationType = "file"
)

// Citation points at one source used to ground the answer
type Citation struct {
	Type    CitationType `json:"type"`
	Title   string       `json:"title"`
	URL     string       `json:"url"` // url for web, file path for file
	Snippet string       `json:"snippet"`
}

// SynthesisMethod records how the final answer was produced
type SynthesisMethod string

const (
	MethodLLM        SynthesisMethod = "llm"
	MethodExtractive SynthesisMethod = "extractive_fallback"
	MethodNone       SynthesisMethod = "none"
)

// SynthesizedResponse is the synthesizer's combined answer
type SynthesizedResponse struct {
	Answer     string          `json:"answer"`
	Confidence float64         `json:"confidence"`
	Citations  []Citation      `json:"citations"`
	Method     SynthesisMethod `json:"method"`
	Context    string          `json:"context_used,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Response is the orchestrator's final, per-stage observable result
type Response struct {
	RequestID      string        `json:"request_id"`
	Query          Query         `json:"query"`
	Answer         string        `json:"answer"`
	Confidence     float64       `json:"confidence"`
	Citations      []Citation    `json:"citations"`
	Method         SynthesisMethod `json:"method"`
	RouteChoice    RouteChoice   `json:"route_choice"`
	RouteReasoning string        `json:"route_reasoning"`
	Search         *SearchOutput `json:"search_results,omitempty"`
	Files          *FileOutput   `json:"file_results,omitempty"`
	Error          string        `json:"error,omitempty"`
	ProcessingTime time.Duration `json:"processing_time"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Pipeline stages, in execution order
const (
	StageRouter      = "router"
	StageWebSearch   = "web_search"
	StageFileAnalysis = "file_analysis"
	StageSynthesis   = "synthesis"
	StageDone        = "done"
)

// EventSink receives one event per pipeline stage. The request log is
// the production sink; tests use in-memory fakes. Sink failures never
// abort a query.
type EventSink interface {
	RecordEvent(requestID, stage string, payload interface{}) error
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) RecordEvent(string, string, interface{}) error { return nil }
