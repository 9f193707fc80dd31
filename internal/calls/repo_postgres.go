package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gymcrm-calls/pkg/utils"
)

// PostgresRepo stores calls in the calls table (see migrations/0001_init.sql).
// It assumes UNIQUE (external_id).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const callColumns = `id, external_id, phone_from, phone_to, call_time, duration, status, last_seq, client_id, director_id, created_at, updated_at`

func (r *PostgresRepo) WithCallLock(ctx context.Context, externalID string, fn func(ctx context.Context, tx CallTx) error) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, &pgCallTx{tx: tx, externalID: externalID})
	})
}

func (r *PostgresRepo) List(ctx context.Context, directorID int64, limit, offset int) ([]Call, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM calls WHERE director_id = $1`, directorID).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `
SELECT ` + callColumns + `
FROM calls
WHERE director_id = $1
ORDER BY call_time DESC, id DESC
LIMIT $2 OFFSET $3
`
	rows, err := r.db.QueryContext(ctx, q, directorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]Call, 0, limit)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *PostgresRepo) AssignClient(ctx context.Context, directorID, callID int64, clientID *int64, now time.Time) error {
	const q = `
UPDATE calls
SET client_id = $3, updated_at = $4
WHERE id = $1 AND director_id = $2
`
	res, err := r.db.ExecContext(ctx, q, callID, directorID, nullableID(clientID), now)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) LinkClientByPhone(ctx context.Context, directorID, callID, clientID int64, now time.Time) (int64, error) {
	const q = `
UPDATE calls
SET client_id = $1, updated_at = $4
WHERE director_id = $2
  AND phone_from = (SELECT phone_from FROM calls WHERE id = $3 AND director_id = $2)
`
	res, err := r.db.ExecContext(ctx, q, clientID, directorID, callID, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type pgCallTx struct {
	tx         *sql.Tx
	externalID string
}

// Find locks the row for the remainder of the transaction.
func (t *pgCallTx) Find(ctx context.Context) (Call, bool, error) {
	q := `SELECT ` + callColumns + ` FROM calls WHERE external_id = $1 FOR UPDATE`
	c, err := scanCall(t.tx.QueryRowContext(ctx, q, t.externalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, false, nil
		}
		return Call{}, false, err
	}
	return c, true, nil
}

func (t *pgCallTx) Insert(ctx context.Context, c *Call) (bool, error) {
	const q = `
INSERT INTO calls (
  external_id, phone_from, phone_to, call_time, status, last_seq, client_id, director_id, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
ON CONFLICT (external_id) DO NOTHING
RETURNING id
`
	var id int64
	err := t.tx.QueryRowContext(ctx, q,
		t.externalID,
		c.PhoneFrom,
		c.PhoneTo,
		c.CallTime,
		string(c.Status),
		c.LastSeq,
		nullableID(c.ClientID),
		c.DirectorID,
		c.CreatedAt,
		c.UpdatedAt,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	c.ID = id
	return true, nil
}

func (t *pgCallTx) UpdateState(ctx context.Context, id int64, status Status, seq int64, now time.Time) error {
	const q = `UPDATE calls SET status = $2, last_seq = $3, updated_at = $4 WHERE id = $1`
	_, err := t.tx.ExecContext(ctx, q, id, string(status), seq, now)
	return err
}

func (t *pgCallTx) UpdateSummary(ctx context.Context, id int64, status Status, duration int, now time.Time) error {
	const q = `UPDATE calls SET status = $2, duration = $3, updated_at = $4 WHERE id = $1`
	_, err := t.tx.ExecContext(ctx, q, id, string(status), duration, now)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (Call, error) {
	var (
		c        Call
		status   string
		duration sql.NullInt64
		clientID sql.NullInt64
	)
	if err := row.Scan(
		&c.ID,
		&c.ExternalID,
		&c.PhoneFrom,
		&c.PhoneTo,
		&c.CallTime,
		&duration,
		&status,
		&c.LastSeq,
		&clientID,
		&c.DirectorID,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return Call{}, err
	}
	c.Status = Status(status)
	if duration.Valid {
		d := int(duration.Int64)
		c.Duration = &d
	}
	if clientID.Valid {
		id := clientID.Int64
		c.ClientID = &id
	}
	return c, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}
