// Package tenancy resolves PBX phone numbers to the director (tenant) that
// owns the dialed gym line and to that director's client behind the caller
// number. Both lookups treat the 7 and 8 forms of a domestic number as equal.
package tenancy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gymcrm-calls/internal/phone"
	"gymcrm-calls/pkg/utils"
)

// PostgresResolver reads the gyms and clients tables.
type PostgresResolver struct {
	db utils.Querier
}

func NewPostgresResolver(db utils.Querier) *PostgresResolver {
	return &PostgresResolver{db: db}
}

func (r *PostgresResolver) DirectorByPhone(ctx context.Context, p string) (int64, bool, error) {
	variants := phone.Variants(p)
	if len(variants) == 0 {
		return 0, false, nil
	}
	in, args := inClause(variants, 1)
	q := `SELECT director_id FROM gyms WHERE phone IN (` + in + `) ORDER BY id LIMIT 1`
	return r.scanID(ctx, q, args...)
}

func (r *PostgresResolver) ClientByPhone(ctx context.Context, directorID int64, p string) (int64, bool, error) {
	variants := phone.Variants(p)
	if len(variants) == 0 {
		return 0, false, nil
	}
	in, args := inClause(variants, 2)
	q := `SELECT id FROM clients WHERE director_id = $1 AND phone IN (` + in + `) ORDER BY id LIMIT 1`
	return r.scanID(ctx, q, append([]any{directorID}, args...)...)
}

func (r *PostgresResolver) HasClient(ctx context.Context, directorID, clientID int64) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM clients WHERE id = $1 AND director_id = $2)`
	var ok bool
	if err := r.db.QueryRowContext(ctx, q, clientID, directorID).Scan(&ok); err != nil {
		return false, fmt.Errorf("tenancy: client lookup: %w", err)
	}
	return ok, nil
}

func (r *PostgresResolver) scanID(ctx context.Context, q string, args ...any) (int64, bool, error) {
	var id int64
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("tenancy: lookup: %w", err)
	}
	return id, true, nil
}

// inClause renders "$n, $n+1, ..." for vals starting at placeholder first.
func inClause(vals []string, first int) (string, []any) {
	ph := make([]string, len(vals))
	args := make([]any, len(vals))
	for i, v := range vals {
		ph[i] = fmt.Sprintf("$%d", first+i)
		args[i] = v
	}
	return strings.Join(ph, ", "), args
}
