package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_logs (
    id UUID PRIMARY KEY,
    actor UUID NOT NULL,
    action TEXT NOT NULL,
    resource TEXT NOT NULL,
    resource_id TEXT NOT NULL DEFAULT '',
    metadata JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_audit_logs_actor_created ON audit_logs (actor, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs (resource, resource_id, created_at DESC);
`

// PostgresSink appends audit entries to an audit_logs table.
type PostgresSink struct {
	db *pgxpool.Pool
}

// NewPostgresSink constructs a Postgres-backed sink and ensures the schema
// exists.
func NewPostgresSink(ctx context.Context, db *pgxpool.Pool) (*PostgresSink, error) {
	if _, err := db.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("migrate audit schema: %w", err)
	}
	return &PostgresSink{db: db}, nil
}

// Log inserts the entry.
func (s *PostgresSink) Log(ctx context.Context, entry Entry) error {
	var metadata []byte
	if entry.Metadata != nil {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("encode audit metadata: %w", err)
		}
		metadata = encoded
	}
	_, err := s.db.Exec(ctx, `INSERT INTO audit_logs (id, actor, action, resource, resource_id, metadata, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New(), entry.Actor, entry.Action, entry.Resource, entry.ResourceID, metadata, time.Now().UTC())
	return err
}
