package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/queryagent/config"
	"github.com/mohammad-safakhou/queryagent/internal/agent/telemetry"
	"github.com/mohammad-safakhou/queryagent/internal/index"
	"github.com/mohammad-safakhou/queryagent/provider"
	"github.com/mohammad-safakhou/queryagent/tools/embedding"
)

// Orchestrator wires the router, the handlers and the synthesizer into
// one pipeline. It owns the chunk store, so uploaded files stay
// queryable across requests.
type Orchestrator struct {
	cfg         *config.Config
	llm         provider.Provider
	router      *Router
	search      *SearchAgent
	files       *FileAgent
	synthesizer *Synthesizer
	sink        EventSink
	logger      *log.Logger
}

// NewOrchestrator fails when the LLM provider cannot be constructed;
// the pipeline without an LLM would degrade every query to rule-based
// routing and extractive answers, which is only acceptable in tests.
func NewOrchestrator(cfg *config.Config, sink EventSink, logger *log.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[AGENT] ", log.LstdFlags)
	}
	if sink == nil {
		sink = NopSink{}
	}

	llm, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}

	store := index.NewStore(embedding.NewEmbedding(llm), logger)
	return &Orchestrator{
		cfg:         cfg,
		llm:         llm,
		router:      NewRouter(llm, logger),
		search:      NewSearchAgent(NewBackends(cfg.Search), cfg.Search, logger),
		files:       NewFileAgent(store, cfg.Files, logger),
		synthesizer: NewSynthesizer(llm, logger),
		sink:        sink,
		logger:      logger,
	}, nil
}

// FileAgent exposes the file handler for upload endpoints.
func (o *Orchestrator) FileAgent() *FileAgent { return o.files }

// Process runs one query through route, handlers and synthesis. It
// never returns an error: every failure is folded into the Response so
// the caller always has an answer, a confidence and the failure text.
func (o *Orchestrator) Process(ctx context.Context, query Query) Response {
	started := time.Now()
	resp := Response{
		RequestID: uuid.New().String(),
		Query:     query,
		CreatedAt: started,
	}

	if o.cfg.General.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.General.QueryTimeout)
		defer cancel()
	}

	if strings.TrimSpace(query.Text) == "" {
		resp.Error = "query text is empty"
		resp.Answer = "I need a question to work with. Please provide a non-empty query."
		resp.Method = MethodNone
		resp.ProcessingTime = time.Since(started)
		return resp
	}

	hasFiles := query.HasFiles || len(query.FilePaths) > 0
	decision := o.router.Classify(ctx, query.Text, hasFiles)
	resp.RouteChoice = decision.Choice
	resp.RouteReasoning = decision.Reasoning
	o.record(resp.RequestID, StageRouter, decision)

	var failures []string

	if decision.Choice == RouteWebSearch || decision.Choice == RouteBoth {
		results := o.search.Search(ctx, query.Text)
		out := &SearchOutput{
			Results:   results,
			Extracted: ExtractKeyInfo(results, query.Text),
		}
		if allErrored(out) {
			telemetry.StageFailure(StageWebSearch)
			failures = append(failures, "web search returned no usable results")
		}
		resp.Search = out
		o.record(resp.RequestID, StageWebSearch, out.Extracted)
	}

	if decision.Choice == RouteFileAnalysis || decision.Choice == RouteBoth {
		out := o.files.Process(ctx, query.Text, query.FilePaths)
		if ingestedFiles(&out) == 0 && len(query.FilePaths) > 0 {
			telemetry.StageFailure(StageFileAnalysis)
			failures = append(failures, "no attached file could be processed")
		}
		resp.Files = &out
		o.record(resp.RequestID, StageFileAnalysis, struct {
			FilesProcessed int `json:"files_processed"`
			TotalChunks    int `json:"total_chunks"`
			Hits           int `json:"hits"`
		}{out.FilesProcessed, out.TotalChunks, len(out.Hits)})
	}

	if resp.Search == nil && resp.Files == nil {
		telemetry.StageFailure(StageSynthesis)
		resp.Error = "no handler produced output"
		resp.Answer = "I apologize, but I was unable to gather any information for your query. Please try rephrasing it."
		resp.Method = MethodNone
		resp.ProcessingTime = time.Since(started)
		o.record(resp.RequestID, StageDone, resp)
		return resp
	}

	synth := o.synthesizer.Synthesize(ctx, query.Text, resp.Search, resp.Files)
	if synth.Method == MethodExtractive {
		telemetry.StageFailure(StageSynthesis)
	}
	resp.Answer = synth.Answer
	resp.Confidence = synth.Confidence
	resp.Citations = synth.Citations
	resp.Method = synth.Method
	if synth.Error != "" {
		failures = append(failures, "synthesis: "+synth.Error)
	}
	o.record(resp.RequestID, StageSynthesis, synth)

	if len(failures) > 0 {
		resp.Error = strings.Join(failures, "; ")
	}
	if totalFailure(resp) {
		resp.Answer = "I apologize, but I was unable to find reliable information to answer your query."
		resp.Confidence = 0
		resp.Citations = nil
	}

	resp.ProcessingTime = time.Since(started)
	telemetry.ObserveQuery(string(resp.RouteChoice), resp.ProcessingTime)
	o.record(resp.RequestID, StageDone, resp)
	o.logger.Printf("request %s route=%s method=%s confidence=%.2f took=%s",
		resp.RequestID, resp.RouteChoice, resp.Method, resp.Confidence, resp.ProcessingTime)
	return resp
}

func (o *Orchestrator) record(requestID, stage string, payload interface{}) {
	if err := o.sink.RecordEvent(requestID, stage, payload); err != nil {
		o.logger.Printf("event sink failed for stage %s: %v", stage, err)
	}
}

// allErrored reports whether every search result is a synthetic error
// entry, which means the whole backend chain was exhausted.
func allErrored(out *SearchOutput) bool {
	if len(out.Results) == 0 {
		return true
	}
	for _, r := range out.Results {
		if !r.Error {
			return false
		}
	}
	return true
}

// totalFailure is true when neither handler contributed anything the
// synthesizer could ground an answer on.
func totalFailure(resp Response) bool {
	if resp.Search != nil && !allErrored(resp.Search) {
		return false
	}
	if resp.Files != nil && (len(resp.Files.Hits) > 0 || ingestedFiles(resp.Files) > 0) {
		return false
	}
	return true
}

func ingestedFiles(out *FileOutput) int {
	n := 0
	for _, res := range out.Processing {
		if res.Success {
			n++
		}
	}
	return n
}
