package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo writes to audit_events. The table should only grant INSERT
// and SELECT to the service role.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, director_id, type, actor_user_id, actor_role, ip_address, call_id, client_id, message, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.DirectorID,
		string(e.Type),
		nullInt(e.ActorUserID),
		e.ActorRole,
		e.IPAddress,
		e.CallID,
		e.ClientID,
		e.Message,
		nullString(e.Metadata),
		e.CreatedAt,
	)
	return err
}

func nullInt(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v > 0}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
