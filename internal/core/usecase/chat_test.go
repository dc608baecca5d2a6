package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
)

type retrieverFake struct {
	chunks []domain.DocumentChunk
	k      int
	query  string
}

func (f *retrieverFake) Retrieve(_ context.Context, query string, k int) ([]domain.DocumentChunk, domain.QueryAnalysis) {
	f.query, f.k = query, k
	return f.chunks, domain.QueryAnalysis{
		Type:          domain.QueryArticleLookup,
		OriginalQuery: query,
		Confidence:    0.85,
		Target:        domain.ProvisionTarget{Article: "6"},
	}
}

type generatorFake struct {
	history []domain.ChatMessage
	calls   int
	err     error
}

func (f *generatorFake) GenerateAnswer(_ context.Context, _ string, history []domain.ChatMessage, _ []domain.DocumentChunk, _ domain.QueryAnalysis) (string, error) {
	f.calls++
	f.history = history
	if f.err != nil {
		return "", f.err
	}
	return "Article 6 lists the lawful bases.", nil
}

type sessionFake struct {
	messages []domain.ChatMessage
	histErr  error
}

func (f *sessionFake) History(_ context.Context, sessionID string, limit int) ([]domain.ChatMessage, error) {
	if f.histErr != nil {
		return nil, f.histErr
	}
	var out []domain.ChatMessage
	for _, m := range f.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *sessionFake) Append(_ context.Context, messages ...domain.ChatMessage) error {
	f.messages = append(f.messages, messages...)
	return nil
}

func article6() []domain.DocumentChunk {
	return []domain.DocumentChunk{{
		ChunkID: "article_6", Content: "Processing shall be lawful only if...", Page: 36, Level: domain.LevelArticle,
		Reference: domain.LegalReference{Article: "6", ArticleTitle: "Lawfulness of processing"},
	}}
}

func TestChatAnswersWithCitationsAndHistory(t *testing.T) {
	retriever := &retrieverFake{chunks: article6()}
	generator := &generatorFake{}
	sessions := &sessionFake{}
	uc := NewChatUseCase(retriever, generator, sessions, ChatOptions{})

	first, err := uc.Chat(context.Background(), "", "Show me Article 6")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if first.SessionID == "" || first.Text != "Article 6 lists the lawful bases." {
		t.Fatalf("unexpected answer %+v", first)
	}
	if len(first.Sources) != 1 || first.Sources[0].Reference != "Article 6" || first.Sources[0].Page != 36 {
		t.Fatalf("unexpected sources %+v", first.Sources)
	}
	if retriever.k != 3 {
		t.Fatalf("expected default final k=3, got %d", retriever.k)
	}

	if _, err := uc.Chat(context.Background(), first.SessionID, "and Article 7?"); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if len(generator.history) != 2 || generator.history[0].Role != domain.RoleUser {
		t.Fatalf("expected previous turn in history, got %+v", generator.history)
	}
	if len(sessions.messages) != 4 {
		t.Fatalf("expected 4 stored messages, got %d", len(sessions.messages))
	}
}

func TestChatRejectsEmptyAndOversizedQueries(t *testing.T) {
	uc := NewChatUseCase(&retrieverFake{}, &generatorFake{}, &sessionFake{}, ChatOptions{MaxQueryLen: 10})
	if _, err := uc.Chat(context.Background(), "s", "   "); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty query, got %v", err)
	}
	if _, err := uc.Chat(context.Background(), "s", strings.Repeat("a", 11)); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for long query, got %v", err)
	}
}

func TestChatSkipsGenerationWithoutContext(t *testing.T) {
	generator := &generatorFake{}
	uc := NewChatUseCase(&retrieverFake{}, generator, &sessionFake{}, ChatOptions{})
	answer, err := uc.Chat(context.Background(), "s", "asdf")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if generator.calls != 0 || answer.Text != noContextAnswer || len(answer.Sources) != 0 {
		t.Fatalf("unexpected answer %+v", answer)
	}
}

func TestChatPropagatesGeneratorFailure(t *testing.T) {
	uc := NewChatUseCase(&retrieverFake{chunks: article6()}, &generatorFake{err: domain.ErrTemporary}, &sessionFake{}, ChatOptions{})
	if _, err := uc.Chat(context.Background(), "s", "Show me Article 6"); !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}

func TestChatToleratesHistoryFailure(t *testing.T) {
	uc := NewChatUseCase(&retrieverFake{chunks: article6()}, &generatorFake{}, &sessionFake{histErr: errors.New("db down")}, ChatOptions{})
	if _, err := uc.Chat(context.Background(), "s", "Show me Article 6"); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
}
