package chatapi

import (
	"fmt"
	"strings"

	"github.com/opsrelay/opsrelay/pkg/domain"
)

// chunkSize is the deterministic fallback's pseudo-delta window, fixed
// per spec §4.10's "fixed-size text windows of 24 characters".
const chunkSize = 24

// systemPrompt is sent as the system message on the LLM path, requiring
// operator-ready, context-grounded prose.
const systemPrompt = `You are OpsRelay incident copilot.
Produce concise, operator-ready responses.
Formatting requirements:
- Use short paragraphs.
- Use bullet lists for grouped items.
- Use numbered lists for ordered actions.
- Keep line breaks explicit.
- Do not invent facts outside the provided context.
- If context is insufficient, state that clearly.
`

// buildFallbackMessage classifies userMessage by keyword and composes
// the deterministic assistant reply from summary/nextSteps. Keyword
// groups and priority order match spec §4.10 exactly: a next-steps
// request wins over a summary request when both phrase sets match.
func buildFallbackMessage(userMessage, summary string, nextSteps []string) string {
	normalized := strings.ToLower(strings.TrimSpace(userMessage))

	asksNextSteps := containsAny(normalized, "next step", "action", "what should", "what now")
	asksSummary := containsAny(normalized, "summary", "summarize", "recap", "status")

	if asksNextSteps {
		if len(nextSteps) == 0 {
			return "No next steps were generated for this incident."
		}
		return "Recommended next steps:\n" + numberedList(nextSteps)
	}

	if asksSummary {
		return summary
	}

	if len(nextSteps) > 0 {
		return summary + "\n\nRecommended next steps:\n" + numberedList(nextSteps)
	}
	return summary
}

func containsAny(s string, phrases ...string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func numberedList(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = fmt.Sprintf("%d. %s", i+1, item)
	}
	return strings.Join(lines, "\n")
}

// chunkText splits text into fixed chunkSize-rune windows for the
// deterministic fallback's pseudo-delta emission. Returns nil for
// empty input (no deltas, matching the Python generator's no-yield).
func chunkText(text string) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+chunkSize-1)/chunkSize)
	for i := 0; i < len(runes); i += chunkSize {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}

// citationLabel renders a citation the way the LLM-path context block
// and (if ever surfaced to a human log) the fallback path would.
func citationLabel(c domain.Citation, idx int) string {
	switch c.Type {
	case "incident":
		id := int64(0)
		if c.IncidentID != nil {
			id = *c.IncidentID
		}
		return fmt.Sprintf("[%d] incident #%d: %s", idx, id, c.Title)
	case "alert":
		id := int64(0)
		if c.AlertID != nil {
			id = *c.AlertID
		}
		return fmt.Sprintf("[%d] alert #%d: %s", idx, id, c.Title)
	case "runbook":
		source := ""
		if c.SourceDocument != nil {
			source = *c.SourceDocument
		}
		if c.ChunkIndex == nil {
			return fmt.Sprintf("[%d] runbook: %s", idx, source)
		}
		return fmt.Sprintf("[%d] runbook: %s (chunk %d)", idx, source, *c.ChunkIndex)
	default:
		return fmt.Sprintf("[%d] source", idx)
	}
}

// buildUserPrompt assembles the grounded context block sent as the
// user message on the LLM path.
func buildUserPrompt(userMessage, summary string, nextSteps []string, citations []domain.Citation) string {
	citationLines := "None"
	if len(citations) > 0 {
		lines := make([]string, len(citations))
		for i, c := range citations {
			lines[i] = citationLabel(c, i+1)
		}
		citationLines = strings.Join(lines, "\n")
	}
	stepLines := "None"
	if len(nextSteps) > 0 {
		stepLines = numberedList(nextSteps)
	}

	context := fmt.Sprintf(
		"Incident Summary:\n%s\n\nCandidate Next Steps:\n%s\n\nCitations:\n%s",
		summary, stepLines, citationLines,
	)
	return fmt.Sprintf("Operator question:\n%s\n\nUse only this context:\n%s", userMessage, context)
}
