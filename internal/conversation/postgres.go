package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps one row per owner with the turns in a JSONB array.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const pgUniqueViolation = "23505"

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			owner_id TEXT PRIMARY KEY,
			turns JSONB NOT NULL DEFAULT '[]'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations (updated_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) FindByOwner(ctx context.Context, ownerID string) (Conversation, error) {
	var (
		conv  Conversation
		turns []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT owner_id, turns, created_at, updated_at FROM conversations WHERE owner_id=$1`,
		ownerID,
	).Scan(&conv.OwnerID, &turns, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("query conversation: %w", err)
	}
	if err := json.Unmarshal(turns, &conv.Turns); err != nil {
		return Conversation{}, fmt.Errorf("decode turns: %w", err)
	}
	conv.CreatedAt = conv.CreatedAt.UTC()
	conv.UpdatedAt = conv.UpdatedAt.UTC()
	return conv, nil
}

func (s *PostgresStore) Insert(ctx context.Context, conv Conversation) error {
	turns, err := json.Marshal(nonNilTurns(conv.Turns))
	if err != nil {
		return fmt.Errorf("encode turns: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO conversations (owner_id, turns, created_at, updated_at) VALUES ($1, $2::jsonb, $3, $4)`,
		conv.OwnerID,
		string(turns),
		conv.CreatedAt,
		conv.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrConversationExists
	}
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendTurn(ctx context.Context, ownerID string, turn Turn) error {
	payload, err := json.Marshal([]Turn{turn})
	if err != nil {
		return fmt.Errorf("encode turn: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET turns = turns || $2::jsonb, updated_at = $3 WHERE owner_id = $1`,
		ownerID,
		string(payload),
		turn.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteByOwner(ctx context.Context, ownerID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM conversations WHERE owner_id = $1`, ownerID)
	if err != nil {
		return false, fmt.Errorf("delete conversation: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func nonNilTurns(turns []Turn) []Turn {
	if turns == nil {
		return []Turn{}
	}
	return turns
}
