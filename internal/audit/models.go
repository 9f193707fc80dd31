package audit

import "time"

// Event is an immutable, append-only audit log record of a staff action.
//
// Invariants:
// - Events are never updated or deleted.
// - director_id is required for tenancy isolation.
// - Actor and ip capture are best-effort; audit failures never block the action.
type Event struct {
	ID         string    `json:"id" db:"id"`
	DirectorID int64     `json:"director_id" db:"director_id"`
	Type       EventType `json:"type" db:"type"`

	ActorUserID int64  `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`
	IPAddress   string `json:"ip_address,omitempty" db:"ip_address"`

	CallID   *int64 `json:"call_id,omitempty" db:"call_id"`
	ClientID *int64 `json:"client_id,omitempty" db:"client_id"`

	Message string `json:"message,omitempty" db:"message"`
	// Metadata is optional JSON.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeCallClientAssigned EventType = "call_client_assigned"
	EventTypeClientCallsLinked  EventType = "client_calls_linked"
)

// Actor is the staff user behind an action.
type Actor struct {
	UserID int64
	Role   string
	IP     string
}
