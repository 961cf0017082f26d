package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mohammad-safakhou/queryagent/provider"
)

const routerPromptTemplate = `You are an intelligent query router for a multi-agent system.
Your task is to classify incoming queries and determine which agent(s) should handle them.

Available agents:
1. WEB_SEARCH: For queries requiring current information from the internet (news, weather, facts, etc.)
2. FILE_ANALYSIS: For queries about uploaded files (documents, spreadsheets, etc.)
3. BOTH: For queries that need both web search and file analysis

Query: %q
Has files attached: %t

Respond with ONLY one of: WEB_SEARCH, FILE_ANALYSIS, or BOTH
Followed by a brief explanation of your reasoning.`

// recencyKeywords mark queries that need current information even when
// files are attached.
var recencyKeywords = []string{"current", "latest", "recent", "today", "now", "weather", "news"}

// Router classifies queries and selects the handler(s) to invoke.
// A nil or failing LLM degrades to the rule-based path; classification
// never returns an error.
type Router struct {
	llm    provider.Provider
	logger *log.Logger
}

func NewRouter(llm provider.Provider, logger *log.Logger) *Router {
	if logger == nil {
		logger = log.New(log.Writer(), "[ROUTER] ", log.LstdFlags)
	}
	return &Router{llm: llm, logger: logger}
}

// Classify decides which handler(s) should process the query.
func (r *Router) Classify(ctx context.Context, query string, hasFiles bool) RouteDecision {
	if r.llm == nil {
		return RouteDecision{
			Choice:    fallbackClassification(query, hasFiles),
			Reasoning: "Using rule-based classification (LLM unavailable)",
		}
	}

	reply, err := r.llm.Generate(ctx, fmt.Sprintf(routerPromptTemplate, query, hasFiles))
	if err != nil {
		r.logger.Printf("classification call failed, using rules: %v", err)
		return RouteDecision{
			Choice:    fallbackClassification(query, hasFiles),
			Reasoning: fmt.Sprintf("Fallback due to error: %v", err),
		}
	}

	lines := strings.Split(strings.TrimSpace(reply), "\n")
	choice := RouteChoice(strings.ToUpper(strings.TrimSpace(lines[0])))
	reasoning := "No reasoning provided"
	if len(lines) > 1 {
		reasoning = strings.TrimSpace(strings.Join(lines[1:], "\n"))
	}

	switch choice {
	case RouteWebSearch, RouteFileAnalysis, RouteBoth:
	default:
		// Unrecognized label: remap through the deterministic rules.
		choice = fallbackClassification(query, hasFiles)
		reasoning = fmt.Sprintf("Unrecognized label %q remapped by rules", lines[0])
	}

	// A file route without files would dead-end; keep it honest.
	if !hasFiles && choice != RouteWebSearch {
		choice = RouteWebSearch
		reasoning = "No files attached; forced WEB_SEARCH"
	}

	return RouteDecision{Choice: choice, Reasoning: reasoning}
}

// fallbackClassification is the deterministic rule-based path. Without
// files it always answers WEB_SEARCH, never FILE_ANALYSIS.
func fallbackClassification(query string, hasFiles bool) RouteChoice {
	if !hasFiles {
		return RouteWebSearch
	}
	lower := strings.ToLower(query)
	for _, kw := range recencyKeywords {
		if strings.Contains(lower, kw) {
			return RouteBoth
		}
	}
	return RouteFileAnalysis
}
