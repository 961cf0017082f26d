package core

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/mohammad-safakhou/queryagent/provider"
	"github.com/mohammad-safakhou/queryagent/utils"
)

const synthesisPromptTemplate = `You are a response synthesizer. Your task is to combine information from different sources into a coherent, helpful answer.

Question: %s

Context from agents:
%s

Instructions:
1. Use only the provided context to answer the question
2. If information is from web search, cite the source URL
3. If information is from file analysis, mention "from the uploaded file"
4. If the context doesn't contain enough information, say so clearly
5. Provide a clear, well-structured answer

Answer:`

// Synthesizer combines handler outputs into one final answer with a
// confidence score and citations. Citations come straight from the
// structured inputs, so a bad LLM reply cannot corrupt them.
type Synthesizer struct {
	llm    provider.Provider
	logger *log.Logger
}

func NewSynthesizer(llm provider.Provider, logger *log.Logger) *Synthesizer {
	if logger == nil {
		logger = log.New(log.Writer(), "[SYNTH] ", log.LstdFlags)
	}
	return &Synthesizer{llm: llm, logger: logger}
}

// Synthesize builds the context block, asks the LLM for an answer and
// degrades to an extractive summary when the LLM is unavailable or
// fails. The answer is never empty.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, search *SearchOutput, files *FileOutput) SynthesizedResponse {
	contextBlock := combineContexts(search, files)

	resp := SynthesizedResponse{
		Confidence: calculateConfidence(search, files),
		Citations:  extractCitations(search, files),
		Context:    contextBlock,
	}

	if s.llm == nil {
		resp.Answer = extractiveSummary(query, contextBlock)
		resp.Method = MethodExtractive
		return resp
	}

	answer, err := s.llm.Generate(ctx, fmt.Sprintf(synthesisPromptTemplate, query, contextBlock))
	if err != nil || strings.TrimSpace(answer) == "" {
		if err != nil {
			s.logger.Printf("synthesis call failed, extractive fallback: %v", err)
			resp.Error = err.Error()
		}
		resp.Answer = extractiveSummary(query, contextBlock)
		resp.Method = MethodExtractive
		return resp
	}

	resp.Answer = strings.TrimSpace(answer)
	resp.Method = MethodLLM
	return resp
}

// combineContexts renders the non-empty inputs into one text block,
// search first, files second.
func combineContexts(search *SearchOutput, files *FileOutput) string {
	var blocks []string
	if search != nil {
		blocks = append(blocks, formatSearchContext(search))
	}
	if files != nil {
		blocks = append(blocks, formatFileContext(files))
	}
	if len(blocks) == 0 {
		return "No context available from any agent."
	}
	return strings.Join(blocks, "\n\n")
}

func formatSearchContext(search *SearchOutput) string {
	if len(search.Results) == 0 {
		return "No web search results available."
	}

	parts := []string{"=== WEB SEARCH RESULTS ==="}
	parts = append(parts, "Summary: "+search.Extracted.Summary)
	if len(search.Extracted.KeyFacts) > 0 {
		parts = append(parts, "Key Facts:")
		for i, fact := range search.Extracted.KeyFacts {
			parts = append(parts, fmt.Sprintf("%d. %s", i+1, fact))
		}
	}
	for i, r := range search.Results {
		if i >= 3 {
			break
		}
		if r.Error {
			continue
		}
		parts = append(parts, "\nSource: "+r.Title)
		parts = append(parts, "URL: "+r.URL)
		parts = append(parts, "Content: "+r.Snippet)
	}
	return strings.Join(parts, "\n")
}

func formatFileContext(files *FileOutput) string {
	parts := []string{"=== FILE ANALYSIS RESULTS ==="}
	parts = append(parts, fmt.Sprintf("Files processed: %d", files.FilesProcessed))
	parts = append(parts, fmt.Sprintf("Text chunks created: %d", files.TotalChunks))

	if len(files.Hits) > 0 {
		parts = append(parts, "\nRelevant content from files:")
		for i, hit := range files.Hits {
			parts = append(parts, fmt.Sprintf("\n%d. Similarity Score: %.3f", i+1, hit.Score))
			parts = append(parts, "Source: "+hit.Chunk.FilePath)
			parts = append(parts, "Content: "+hit.Chunk.Text)
		}
		return strings.Join(parts, "\n")
	}

	for _, res := range files.Processing {
		if res.Success {
			parts = append(parts, "\nFile: "+res.FilePath)
			parts = append(parts, "Type: "+res.FileType)
		} else {
			parts = append(parts, fmt.Sprintf("\nFile: %s - Error: %s", res.FilePath, res.Error))
		}
	}
	return strings.Join(parts, "\n")
}

// calculateConfidence weights web search 0.6 and file similarity 0.4;
// an absent source contributes 0. Clamped to [0,1].
func calculateConfidence(search *SearchOutput, files *FileOutput) float64 {
	confidence := 0.0
	if search != nil {
		confidence += search.Extracted.Confidence * 0.6
	}
	if files != nil && len(files.Hits) > 0 {
		sum := 0.0
		for _, hit := range files.Hits {
			sum += hit.Score
		}
		confidence += (sum / float64(len(files.Hits))) * 0.4
	}
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}
	return confidence
}

// extractCitations builds one citation per search result with a
// non-empty URL and one per retrieved file chunk.
func extractCitations(search *SearchOutput, files *FileOutput) []Citation {
	var citations []Citation
	if search != nil {
		for _, r := range search.Results {
			if r.Error || r.URL == "" {
				continue
			}
			title := r.Title
			if title == "" {
				title = "Web Source"
			}
			citations = append(citations, Citation{
				Type:    CitationWeb,
				Title:   title,
				URL:     r.URL,
				Snippet: utils.Truncate(r.Snippet, 100),
			})
		}
	}
	if files != nil {
		for _, hit := range files.Hits {
			citations = append(citations, Citation{
				Type:    CitationFile,
				Title:   "File: " + filepath.Base(hit.Chunk.FilePath),
				URL:     hit.Chunk.FilePath,
				Snippet: utils.Truncate(hit.Chunk.Text, 100),
			})
		}
	}
	return citations
}

// extractiveSummary is the LLM-free fallback: a numbered list of the
// most substantial context lines.
func extractiveSummary(query, contextBlock string) string {
	var keyInfo []string
	for _, line := range strings.Split(contextBlock, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "===") ||
			strings.HasPrefix(line, "Source:") || strings.HasPrefix(line, "URL:") {
			continue
		}
		if len(line) > 20 {
			keyInfo = append(keyInfo, line)
		}
	}

	if len(keyInfo) == 0 {
		return fmt.Sprintf("I found some information related to your query %q, but I'm unable to provide a detailed synthesis at the moment.", query)
	}

	var b strings.Builder
	b.WriteString("Based on the available information:\n\n")
	for i, info := range keyInfo {
		if i >= 5 {
			break
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, info)
	}
	if len(keyInfo) > 5 {
		fmt.Fprintf(&b, "\n... and %d more pieces of information.", len(keyInfo)-5)
	}
	return b.String()
}
