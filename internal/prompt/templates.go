// Package prompt selects and renders the analysis prompt templates.
package prompt

import (
	"fmt"
	"strings"
)

// Template identifies one of the analysis prompt shapes. Selection happens
// once per source, never per chunk.
type Template string

const (
	// DeepExtraction is used for single-chunk documents.
	DeepExtraction Template = "deep_extraction"
	// ConversationProfile is the 6-category profile prompt for
	// multi-chunk structured conversation exports.
	ConversationProfile Template = "conversation_profile"
	// DocumentAnalysis is the comprehensive prompt for any other
	// multi-chunk document.
	DocumentAnalysis Template = "document_analysis"
)

// Select picks the template for a source from its chunk count and
// filename/content hints.
func Select(totalChunks int, filename, sample string) Template {
	if totalChunks <= 1 {
		return DeepExtraction
	}
	if looksLikeConversationExport(filename, sample) {
		return ConversationProfile
	}
	return DocumentAnalysis
}

// looksLikeConversationExport sniffs for a conversation-log JSON export.
func looksLikeConversationExport(filename, sample string) bool {
	name := strings.ToLower(filename)
	if strings.HasSuffix(name, ".json") {
		return true
	}
	head := strings.TrimSpace(sample)
	if len(head) > 512 {
		head = head[:512]
	}
	if !strings.HasPrefix(head, "{") && !strings.HasPrefix(head, "[") {
		return false
	}
	return strings.Contains(head, `"role"`) || strings.Contains(head, `"messages"`) ||
		strings.Contains(head, `"conversation`)
}

const deepExtractionSystem = `You are an expert analyst producing a deep extraction of a single document.
Identify and summarize: the document's purpose, the key facts and claims it makes,
named people, projects and systems, decisions and their rationale, open questions,
and any action items. Preserve concrete details (names, dates, figures) exactly.
Write dense, well-structured prose under clear headings.`

const conversationProfileSystem = `You are an expert analyst building a profile from an exported conversation log.
Produce six sections, each with a heading:
1. Topics & Interests - recurring subjects and what the user cares about.
2. Knowledge & Expertise - demonstrated skills and domains.
3. Projects & Goals - what the user is building or trying to achieve.
4. Preferences & Style - how the user likes to work and communicate.
5. Key Facts - concrete, durable facts stated in the conversation.
6. Open Threads - unresolved questions and follow-ups.
Only include what the text supports. Preserve concrete details exactly.`

const documentAnalysisSystem = `You are an expert analyst producing a comprehensive analysis of a long document,
processed in sequential sections. Summarize this section faithfully: main points,
supporting evidence, named entities, figures and dates, and how the section relates
to what a reader needs to retain. Write dense, well-structured prose.`

// System returns the system prompt for a template. A non-empty override
// replaces the built-in text wholesale.
func System(t Template, override string) string {
	if override != "" {
		return override
	}
	switch t {
	case DeepExtraction:
		return deepExtractionSystem
	case ConversationProfile:
		return conversationProfileSystem
	default:
		return documentAnalysisSystem
	}
}

// User renders the per-chunk user message.
func User(t Template, chunk string, index, total int) string {
	if total <= 1 {
		return fmt.Sprintf("Analyze the following document:\n\n%s", chunk)
	}
	return fmt.Sprintf("Analyze section %d of %d:\n\n%s", index+1, total, chunk)
}

// refusalPhrases are scanned against the start of a model response to
// detect a content-policy refusal delivered as ordinary text.
var refusalPhrases = []string{
	"i cannot assist",
	"i can't assist",
	"i cannot help",
	"i can't help",
	"i'm unable to",
	"i am unable to",
	"i'm sorry, but i",
	"i apologize, but i",
}

// refusalScanWindow bounds how much of the response prefix is scanned.
// Known fragility: a legitimate analysis that happens to open with similar
// phrasing will be misclassified. Kept as-is pending product input.
const refusalScanWindow = 80

// IsRefusal reports whether a response reads as a refusal rather than an
// analysis.
func IsRefusal(response string) bool {
	head := strings.ToLower(strings.TrimSpace(response))
	if len(head) > refusalScanWindow {
		head = head[:refusalScanWindow]
	}
	for _, p := range refusalPhrases {
		if strings.Contains(head, p) {
			return true
		}
	}
	return false
}

// RefusalPlaceholder is recorded in place of a chunk's analysis when the
// model refuses, so the job can continue past it.
func RefusalPlaceholder(index int) string {
	return fmt.Sprintf("[Section %d could not be analyzed and was skipped.]", index+1)
}
