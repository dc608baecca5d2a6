package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
)

// ChunkRepository is the system of record for published corpora. It keeps the
// current version and the one it replaced; older versions are deleted on
// publish.
type ChunkRepository struct {
	db *sql.DB
}

func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) ReplaceCorpus(ctx context.Context, version string, chunks []domain.DocumentChunk) error {
	if version == "" {
		return fmt.Errorf("replace corpus: version is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin corpus tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var previous string
	err = tx.QueryRowContext(ctx, `SELECT version FROM corpus_state WHERE id = 1 FOR UPDATE`).Scan(&previous)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read corpus state: %w", err)
	}
	if previous == version {
		previous = ""
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM corpus_chunks WHERE version = $1`, version); err != nil {
		return fmt.Errorf("clear corpus version: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO corpus_chunks (version, chunk_id, ordinal, level, content, parent_content, page, reference)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		reference, err := json.Marshal(chunk.Reference)
		if err != nil {
			return fmt.Errorf("marshal reference %s: %w", chunk.ChunkID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			version, chunk.ChunkID, i, string(chunk.Level), chunk.Content, chunk.ParentContent, chunk.Page, reference,
		); err != nil {
			return fmt.Errorf("insert chunk %s: %w", chunk.ChunkID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO corpus_state (id, version, previous_version, chunk_count, published_at)
VALUES (1, $1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET version = EXCLUDED.version,
	previous_version = CASE WHEN EXCLUDED.previous_version = '' THEN corpus_state.previous_version ELSE EXCLUDED.previous_version END,
	chunk_count = EXCLUDED.chunk_count,
	published_at = EXCLUDED.published_at
`, version, previous, len(chunks), time.Now().UTC()); err != nil {
		return fmt.Errorf("update corpus state: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
DELETE FROM corpus_chunks
WHERE version <> $1 AND version <> (SELECT previous_version FROM corpus_state WHERE id = 1)
`, version); err != nil {
		return fmt.Errorf("prune corpus versions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit corpus tx: %w", err)
	}
	return nil
}

// LoadCorpus returns the current version and its chunks in publication
// order. An empty version means nothing was published yet.
func (r *ChunkRepository) LoadCorpus(ctx context.Context) (string, []domain.DocumentChunk, error) {
	version, err := r.CurrentVersion(ctx)
	if err != nil || version == "" {
		return "", nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT chunk_id, level, content, parent_content, page, reference
FROM corpus_chunks
WHERE version = $1
ORDER BY ordinal ASC
`, version)
	if err != nil {
		return "", nil, fmt.Errorf("query corpus chunks: %w", err)
	}
	defer rows.Close()

	chunks := make([]domain.DocumentChunk, 0, 256)
	for rows.Next() {
		var chunk domain.DocumentChunk
		var level string
		var reference []byte
		if err := rows.Scan(&chunk.ChunkID, &level, &chunk.Content, &chunk.ParentContent, &chunk.Page, &reference); err != nil {
			return "", nil, fmt.Errorf("scan corpus chunk: %w", err)
		}
		if err := json.Unmarshal(reference, &chunk.Reference); err != nil {
			return "", nil, fmt.Errorf("unmarshal reference %s: %w", chunk.ChunkID, err)
		}
		chunk.Level = domain.ChunkLevel(level)
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return "", nil, fmt.Errorf("iterate corpus chunks: %w", err)
	}
	return version, chunks, nil
}

func (r *ChunkRepository) CurrentVersion(ctx context.Context) (string, error) {
	var version string
	err := r.db.QueryRowContext(ctx, `SELECT version FROM corpus_state WHERE id = 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read corpus version: %w", err)
	}
	return version, nil
}
