package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
)

func TestHistoryReturnsChronologicalOrder(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT session_id, role, content, created_at").
		WithArgs("s1", 2).
		WillReturnRows(sqlmock.NewRows([]string{"session_id", "role", "content", "created_at"}).
			AddRow("s1", "assistant", "second", now).
			AddRow("s1", "user", "first", now.Add(-time.Second)))

	history, err := repo.History(context.Background(), "s1", 2)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || history[0].Content != "first" || history[1].Role != domain.RoleAssistant {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestAppendWritesAllMessagesInOneTx(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO chat_messages").WithArgs("s1", "user", "q", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO chat_messages").WithArgs("s1", "assistant", "a", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	err := repo.Append(context.Background(),
		domain.ChatMessage{SessionID: "s1", Role: domain.RoleUser, Content: "q"},
		domain.ChatMessage{SessionID: "s1", Role: domain.RoleAssistant, Content: "a"},
	)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
