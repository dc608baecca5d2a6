package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
)

const defaultMaxMessages = 64

// Store keeps recent chat history per session in process memory. The least
// recently used sessions are evicted once maxSessions is reached.
type Store struct {
	mu          sync.Mutex
	sessions    *lru.Cache[string, []domain.ChatMessage]
	maxMessages int
}

func New(maxSessions, maxMessages int) (*Store, error) {
	if maxMessages <= 0 {
		maxMessages = defaultMaxMessages
	}
	cache, err := lru.New[string, []domain.ChatMessage](max(maxSessions, 1))
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	return &Store{sessions: cache, maxMessages: maxMessages}, nil
}

func (s *Store) History(_ context.Context, sessionID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil
	}
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return slices.Clone(msgs), nil
}

func (s *Store) Append(_ context.Context, messages ...domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msg := range messages {
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = time.Now().UTC()
		}
		existing, _ := s.sessions.Get(msg.SessionID)
		next := append(slices.Clone(existing), msg)
		if len(next) > s.maxMessages {
			next = next[len(next)-s.maxMessages:]
		}
		s.sessions.Add(msg.SessionID, next)
	}
	return nil
}

func (s *Store) Len() int {
	return s.sessions.Len()
}
