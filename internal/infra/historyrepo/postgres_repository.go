package historyrepo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/bio-generator/internal/domain/generator"
)

// Schema creates the generations table when it does not exist yet.
const Schema = `
CREATE TABLE IF NOT EXISTS generations (
	id                UUID PRIMARY KEY,
	prompt            TEXT NOT NULL,
	result            TEXT NOT NULL,
	model             TEXT NOT NULL,
	cached            BOOLEAN NOT NULL DEFAULT FALSE,
	duration_ms       BIGINT NOT NULL,
	prompt_tokens     INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens      INTEGER NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS generations_created_at_idx ON generations (created_at DESC);
`

// PostgresRepository implements generator.HistoryRepository using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Migrate applies Schema.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate generations table: %w", err)
	}
	return nil
}

// Append implements generator.HistoryRepository.
func (r *PostgresRepository) Append(ctx context.Context, record generator.HistoryRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO generations (id, prompt, result, model, cached, duration_ms, prompt_tokens, completion_tokens, total_tokens, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, record.ID, record.Prompt, record.Result, record.Model, record.Cached, record.DurationMs,
		record.TokenUsage.PromptTokens, record.TokenUsage.CompletionTokens, record.TokenUsage.TotalTokens, record.CreatedAt)
	return err
}

// Recent returns up to limit records, newest first.
func (r *PostgresRepository) Recent(ctx context.Context, limit int) ([]generator.HistoryRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, prompt, result, model, cached, duration_ms, prompt_tokens, completion_tokens, total_tokens, created_at
		FROM generations
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanHistoryRecord)
}

func scanHistoryRecord(row pgx.CollectableRow) (generator.HistoryRecord, error) {
	var record generator.HistoryRecord
	err := row.Scan(
		&record.ID,
		&record.Prompt,
		&record.Result,
		&record.Model,
		&record.Cached,
		&record.DurationMs,
		&record.TokenUsage.PromptTokens,
		&record.TokenUsage.CompletionTokens,
		&record.TokenUsage.TotalTokens,
		&record.CreatedAt,
	)
	return record, err
}

var _ generator.HistoryRepository = (*PostgresRepository)(nil)
