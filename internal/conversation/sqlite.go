package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists conversations in a local SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// SQLiteDSN turns a file path or sqlite:// URL into a go-sqlite3 DSN.
func SQLiteDSN(raw string) (string, error) {
	path := strings.TrimSpace(raw)
	path = strings.TrimPrefix(path, "sqlite://")
	path = strings.TrimPrefix(path, "sqlite3://")
	if path == "" {
		return "", errors.New("sqlite store: empty path")
	}
	if strings.HasPrefix(path, "file:") || strings.Contains(path, "?") {
		return path, nil
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("sqlite store: create db directory %s: %w", dir, err)
		}
	}
	return path + "?_journal_mode=WAL&_busy_timeout=5000", nil
}

func NewSQLiteStore(ctx context.Context, raw string) (*SQLiteStore, error) {
	dsn, err := SQLiteDSN(raw)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			owner_id TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS conversation_turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id TEXT NOT NULL,
			sender TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_turns_owner ON conversation_turns(owner_id, id);`,
	}
	for _, st := range stmts {
		if _, err := s.db.ExecContext(ctx, st); err != nil {
			return fmt.Errorf("sqlite store: migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) FindByOwner(ctx context.Context, ownerID string) (Conversation, error) {
	var created, updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM conversations WHERE owner_id = ?`, ownerID,
	).Scan(&created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("query conversation: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT sender, content, created_at FROM conversation_turns WHERE owner_id = ? ORDER BY id`, ownerID,
	)
	if err != nil {
		return Conversation{}, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	conv := Conversation{
		OwnerID:   ownerID,
		Turns:     []Turn{},
		CreatedAt: fromUnixNano(created),
		UpdatedAt: fromUnixNano(updated),
	}
	for rows.Next() {
		var (
			t  Turn
			ts int64
		)
		if err := rows.Scan(&t.Sender, &t.Content, &ts); err != nil {
			return Conversation{}, fmt.Errorf("scan turn: %w", err)
		}
		t.Timestamp = fromUnixNano(ts)
		conv.Turns = append(conv.Turns, t)
	}
	if err := rows.Err(); err != nil {
		return Conversation{}, fmt.Errorf("iterate turns: %w", err)
	}
	return conv, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, conv Conversation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (owner_id, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(owner_id) DO NOTHING`,
		conv.OwnerID, conv.CreatedAt.UnixNano(), conv.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	} else if n == 0 {
		return ErrConversationExists
	}
	for _, t := range conv.Turns {
		if err := insertTurn(ctx, tx, conv.OwnerID, t); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) AppendTurn(ctx context.Context, ownerID string, turn Turn) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE owner_id = ?`,
		turn.Timestamp.UnixNano(), ownerID,
	)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	} else if n == 0 {
		return ErrNotFound
	}
	if err := insertTurn(ctx, tx, ownerID, turn); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) DeleteByOwner(ctx context.Context, ownerID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE owner_id = ?`, ownerID)
	if err != nil {
		return false, fmt.Errorf("delete conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete conversation: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversation_turns WHERE owner_id = ?`, ownerID); err != nil {
		return false, fmt.Errorf("delete turns: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func insertTurn(ctx context.Context, tx *sql.Tx, ownerID string, t Turn) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO conversation_turns (owner_id, sender, content, created_at) VALUES (?, ?, ?, ?)`,
		ownerID, string(t.Sender), t.Content, t.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
