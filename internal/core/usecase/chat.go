package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
	"github.com/kirillkom/regulation-rag/internal/core/ports"
)

const (
	defaultHistoryLimit = 6
	defaultMaxQueryLen  = 1000
	defaultExcerptLen   = 280

	noContextAnswer = "I could not find provisions in the regulation that answer this question."
)

type ChatOptions struct {
	FinalK       int
	HistoryLimit int
	MaxQueryLen  int
	ExcerptLen   int
	Logger       *slog.Logger
}

// ChatUseCase answers questions over the regulation and keeps per-session
// history in the injected session store.
type ChatUseCase struct {
	retriever ports.QueryRetriever
	generator ports.AnswerGenerator
	sessions  ports.SessionStore
	opts      ChatOptions
}

func NewChatUseCase(
	retriever ports.QueryRetriever,
	generator ports.AnswerGenerator,
	sessions ports.SessionStore,
	opts ChatOptions,
) *ChatUseCase {
	if opts.FinalK <= 0 {
		opts.FinalK = 3
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	if opts.MaxQueryLen <= 0 {
		opts.MaxQueryLen = defaultMaxQueryLen
	}
	if opts.ExcerptLen <= 0 {
		opts.ExcerptLen = defaultExcerptLen
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ChatUseCase{retriever: retriever, generator: generator, sessions: sessions, opts: opts}
}

func (uc *ChatUseCase) Chat(ctx context.Context, sessionID, question string) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat", errors.New("query is required"))
	}
	if utf8.RuneCountInString(question) > uc.opts.MaxQueryLen {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat",
			fmt.Errorf("query exceeds %d characters", uc.opts.MaxQueryLen))
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	history := uc.loadHistory(ctx, sessionID)
	chunks, analysis := uc.retriever.Retrieve(ctx, question, uc.opts.FinalK)

	text := noContextAnswer
	if len(chunks) > 0 {
		generated, err := uc.generator.GenerateAnswer(ctx, question, history, chunks, analysis)
		if err != nil {
			return nil, fmt.Errorf("generate answer: %w", err)
		}
		text = generated
	}

	now := time.Now().UTC()
	if err := uc.sessions.Append(ctx,
		domain.ChatMessage{SessionID: sessionID, Role: domain.RoleUser, Content: question, CreatedAt: now},
		domain.ChatMessage{SessionID: sessionID, Role: domain.RoleAssistant, Content: text, CreatedAt: now},
	); err != nil {
		uc.opts.Logger.Warn("append chat history failed", "session_id", sessionID, "error", err)
	}

	sources := make([]domain.Citation, 0, len(chunks))
	for _, c := range chunks {
		sources = append(sources, domain.CitationFor(c, uc.opts.ExcerptLen))
	}
	return &domain.Answer{SessionID: sessionID, Text: text, Analysis: analysis, Sources: sources}, nil
}

func (uc *ChatUseCase) loadHistory(ctx context.Context, sessionID string) []domain.ChatMessage {
	history, err := uc.sessions.History(ctx, sessionID, uc.opts.HistoryLimit)
	if err != nil {
		uc.opts.Logger.Warn("load chat history failed", "session_id", sessionID, "error", err)
		return nil
	}
	return history
}
