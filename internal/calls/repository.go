package calls

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidEvent    = errors.New("calls: invalid event")
	ErrInvalidArgument = errors.New("calls: invalid argument")
	ErrNotFound        = errors.New("calls: not found")
	ErrClientNotFound  = errors.New("calls: client not found")
)

// Repository is the persistence contract for call records.
//
// WithCallLock is the only write path for webhook events: fn runs with the
// record for externalID locked against every other delivery for the same id,
// and its reads and writes commit or roll back together.
type Repository interface {
	WithCallLock(ctx context.Context, externalID string, fn func(ctx context.Context, tx CallTx) error) error

	List(ctx context.Context, directorID int64, limit, offset int) ([]Call, int, error)
	AssignClient(ctx context.Context, directorID, callID int64, clientID *int64, now time.Time) error
	// LinkClientByPhone sets clientID on every call of the director that came
	// from the same number as callID, and returns how many rows changed.
	LinkClientByPhone(ctx context.Context, directorID, callID, clientID int64, now time.Time) (int64, error)
}

// CallTx is the locked view of one external id inside WithCallLock.
type CallTx interface {
	Find(ctx context.Context) (Call, bool, error)
	// Insert creates the record. It returns false without error when another
	// delivery created it first.
	Insert(ctx context.Context, c *Call) (bool, error)
	UpdateState(ctx context.Context, id int64, status Status, seq int64, now time.Time) error
	UpdateSummary(ctx context.Context, id int64, status Status, duration int, now time.Time) error
}

// TenantResolver maps phone numbers to the owning director and client.
// A miss is (0, false, nil); errors are infrastructure failures only.
type TenantResolver interface {
	DirectorByPhone(ctx context.Context, phone string) (int64, bool, error)
	ClientByPhone(ctx context.Context, directorID int64, phone string) (int64, bool, error)
	HasClient(ctx context.Context, directorID, clientID int64) (bool, error)
}
