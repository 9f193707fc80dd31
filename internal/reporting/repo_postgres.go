package reporting

import (
	"context"
	"database/sql"
	"time"

	"gymcrm-calls/internal/calls"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ListCalls(ctx context.Context, directorID int64, from, to time.Time) ([]calls.Call, error) {
	const q = `
SELECT id, status, duration, client_id, call_time
FROM calls
WHERE director_id = $1 AND call_time >= $2 AND call_time < $3
`
	rows, err := r.db.QueryContext(ctx, q, directorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]calls.Call, 0)
	for rows.Next() {
		var (
			c        = calls.Call{DirectorID: directorID}
			status   string
			duration sql.NullInt64
			clientID sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &status, &duration, &clientID, &c.CallTime); err != nil {
			return nil, err
		}
		c.Status = calls.Status(status)
		if duration.Valid {
			d := int(duration.Int64)
			c.Duration = &d
		}
		if clientID.Valid {
			id := clientID.Int64
			c.ClientID = &id
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
