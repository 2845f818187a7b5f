package sessionstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/mindburn-labs/turnctl/pkg/contracts"
)

// PostgresStore persists session state as a JSON blob keyed by
// run_session_id. turnctl's session document is too shape-shifting
// (optional plan graph, pack, progress) to warrant a normalized schema;
// the teacher's budget store takes the same one-row-per-key approach for
// its own coarser-grained record.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing *sql.DB. Schema:
//
//	CREATE TABLE sessions (
//	  run_session_id TEXT PRIMARY KEY,
//	  body           JSONB NOT NULL,
//	  updated_at     TIMESTAMPTZ NOT NULL
//	);
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, runSessionID string) (*contracts.SessionState, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT body FROM sessions WHERE run_session_id = $1", runSessionID)

	var body []byte
	if err := row.Scan(&body); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sessionstore: get %s: %w", runSessionID, err)
	}

	var st contracts.SessionState
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("sessionstore: decode %s: %w", runSessionID, err)
	}
	return &st, nil
}

func (s *PostgresStore) Set(ctx context.Context, st *contracts.SessionState) error {
	body, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("sessionstore: encode %s: %w", st.RunSessionID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (run_session_id, body, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_session_id) DO UPDATE SET
			body = EXCLUDED.body,
			updated_at = EXCLUDED.updated_at
	`, st.RunSessionID, body, st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sessionstore: set %s: %w", st.RunSessionID, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, runSessionID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE run_session_id = $1", runSessionID)
	if err != nil {
		return fmt.Errorf("sessionstore: delete %s: %w", runSessionID, err)
	}
	return nil
}
