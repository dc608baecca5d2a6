package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
)

const systemPrompt = `You are a legal assistant answering questions about a single regulation.
Answer only from the legal context below. If the context is insufficient, say so directly.

EXACT LOOKUP RULES:
- When the user asks for a specific Article, paragraph, point or Recital, output the exact legal text from the context.
- Do not paraphrase or summarize it. Quote it as a Markdown blockquote (> text).
- You may add one short clarification sentence after the quote.

OTHER QUESTIONS:
- Summarize and explain in neutral legal language.
- Cite the references you rely on, e.g. "Article 6(1)(a)" or "Recital 42".

LEGAL CONTEXT:
%s`

func buildAnswerMessages(question string, history []domain.ChatMessage, chunks []domain.DocumentChunk, analysis domain.QueryAnalysis) []chatMessage {
	messages := make([]chatMessage, 0, len(history)+2)
	messages = append(messages, chatMessage{
		Role:    "system",
		Content: fmt.Sprintf(systemPrompt, buildContext(chunks)),
	})
	for _, msg := range history {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		messages = append(messages, chatMessage{Role: msg.Role, Content: content})
	}

	input := strings.TrimSpace(question)
	if isExactLookup(analysis.Type) {
		input += "\n\n(Exact lookup: quote the requested text verbatim.)"
	}
	messages = append(messages, chatMessage{Role: domain.RoleUser, Content: input})
	return messages
}

func buildContext(chunks []domain.DocumentChunk) string {
	var b strings.Builder
	for _, chunk := range chunks {
		fmt.Fprintf(&b, "Content:\n%s\nSource: Page %d", chunk.Content, chunk.Page)
		if ref := chunk.Reference.String(); ref != "" {
			fmt.Fprintf(&b, " (%s)", ref)
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

func isExactLookup(t domain.QueryType) bool {
	switch t {
	case domain.QueryRecitalLookup, domain.QueryArticleLookup, domain.QueryExactReference:
		return true
	default:
		return false
	}
}
