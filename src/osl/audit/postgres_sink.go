package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSink persists audit records to a Postgres table via pgx, for
// deployments that need durable grant/denial history beyond the in-memory
// RingBuffer. Schema (caller-provisioned):
//
//	CREATE TABLE audit_records (
//	  ts             timestamptz NOT NULL,
//	  principal      text NOT NULL,
//	  component_id   text NOT NULL,
//	  operation_kind text NOT NULL,
//	  resource       text NOT NULL,
//	  decision       text NOT NULL,
//	  reason         text NOT NULL,
//	  correlation_id text
//	);
type PostgresSink struct {
	pool  *pgxpool.Pool
	table string
}

func NewPostgresSink(pool *pgxpool.Pool, table string) *PostgresSink {
	if table == "" {
		table = "audit_records"
	}
	return &PostgresSink{pool: pool, table: table}
}

func (s *PostgresSink) Record(ctx context.Context, r Record) error {
	query := fmt.Sprintf(`INSERT INTO %s
		(ts, principal, component_id, operation_kind, resource, decision, reason, correlation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, s.table)

	_, err := s.pool.Exec(ctx, query,
		r.Timestamp, r.Principal, r.ComponentID, r.OperationKind,
		r.Resource, string(r.Decision), r.Reason, r.CorrelationID)
	if err != nil {
		return fmt.Errorf("inserting audit record: %w", err)
	}
	return nil
}
