package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/manualqa/manual-assistant/internal/core/domain"
)

// OpenDB opens a pgx-backed database handle.
func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// Store persists sessions in Postgres so follow-up context survives api
// restarts. The assembled bundle is stored as JSONB.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	current_context TEXT NOT NULL DEFAULT '',
	last_bundle JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS session_turns (
	id BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	query TEXT NOT NULL,
	answer TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_turns_session ON session_turns(session_id, created_at);
`)
	if err != nil {
		return fmt.Errorf("ensure session schema: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context) (*domain.Session, error) {
	now := time.Now().UTC()
	session := &domain.Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO sessions (id, current_context, last_bundle, created_at, updated_at)
VALUES ($1, '', '{}'::jsonb, $2, $2)
`, session.ID, now)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, current_context, last_bundle, created_at, updated_at
FROM sessions
WHERE id = $1
`, id)

	var session domain.Session
	var bundleJSON []byte
	if err := row.Scan(
		&session.ID,
		&session.CurrentContext,
		&bundleJSON,
		&session.CreatedAt,
		&session.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get session", fmt.Errorf("session %q", id))
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if len(bundleJSON) > 0 {
		if err := json.Unmarshal(bundleJSON, &session.LastBundle); err != nil {
			return nil, fmt.Errorf("decode session bundle: %w", err)
		}
	}

	turns, err := s.listTurns(ctx, id)
	if err != nil {
		return nil, err
	}
	session.Turns = turns
	return &session, nil
}

func (s *Store) SaveContext(ctx context.Context, id, contextText string, bundle domain.ContextBundle) error {
	bundleJSON, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("encode session bundle: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
UPDATE sessions
SET current_context = $2, last_bundle = $3, updated_at = $4
WHERE id = $1
`, id, contextText, bundleJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save session context: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save session context: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "save session context", fmt.Errorf("session %q", id))
	}
	return nil
}

func (s *Store) AppendTurn(ctx context.Context, id string, turn domain.SessionTurn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO session_turns (session_id, query, answer, created_at)
VALUES ($1, $2, $3, $4)
`, id, turn.Query, turn.Answer, turn.CreatedAt)
	if err != nil {
		return fmt.Errorf("append session turn: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "delete session", fmt.Errorf("session %q", id))
	}
	return nil
}

func (s *Store) listTurns(ctx context.Context, sessionID string) ([]domain.SessionTurn, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT query, answer, created_at
FROM session_turns
WHERE session_id = $1
ORDER BY created_at ASC, id ASC
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session turns: %w", err)
	}
	defer rows.Close()

	var turns []domain.SessionTurn
	for rows.Next() {
		var turn domain.SessionTurn
		if err := rows.Scan(&turn.Query, &turn.Answer, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session turn: %w", err)
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session turns: %w", err)
	}
	return turns, nil
}
