package calls

import (
	"strings"
	"time"
)

// Call is one row per provider call, owned by a director (tenant).
//
// Invariants:
// - ExternalID is unique; every event for the same provider call lands on this row.
// - LastSeq never decreases, and Status/LastSeq are only written together.
// - Once Status is terminal no state event changes the row again.
type Call struct {
	ID         int64  `json:"id" db:"id"`
	ExternalID string `json:"external_id" db:"external_id"`

	PhoneFrom string `json:"phone_from" db:"phone_from"`
	PhoneTo   string `json:"phone_to" db:"phone_to"`

	CallTime time.Time `json:"call_time" db:"call_time"`

	// Duration is in seconds and stays nil until the call summary arrives.
	Duration *int `json:"duration" db:"duration"`

	Status  Status `json:"status" db:"status"`
	LastSeq int64  `json:"last_seq" db:"last_seq"`

	ClientID   *int64 `json:"client_id" db:"client_id"`
	DirectorID int64  `json:"director_id" db:"director_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusAppeared     Status = "appeared"
	StatusConnected    Status = "connected"
	StatusOnHold       Status = "onHold"
	StatusDisconnected Status = "disconnected"
	StatusAnswered     Status = "answered"
	StatusMissed       Status = "missed"
)

var allStatuses = []Status{
	StatusAppeared,
	StatusConnected,
	StatusOnHold,
	StatusDisconnected,
	StatusAnswered,
	StatusMissed,
}

// Terminal reports whether no further state transition is accepted.
func (s Status) Terminal() bool {
	return s == StatusAnswered || s == StatusMissed
}

// ParseStatus maps a provider call_state label to a Status.
// Matching is case-insensitive: the provider sends "Appeared", "OnHold", ...
func ParseStatus(label string) (Status, bool) {
	label = strings.TrimSpace(label)
	for _, s := range allStatuses {
		if strings.EqualFold(string(s), label) {
			return s, true
		}
	}
	return "", false
}

// StateEvent is a mid-call state notification from the PBX.
type StateEvent struct {
	ExternalID string
	Seq        int64
	State      Status

	From string
	// FromExtension is set when a staff extension placed the call.
	FromExtension string

	To           string
	ToExtension  string
	ToLineNumber string

	OccurredAt time.Time
}

// Internal reports whether the call was placed from a staff extension.
// Such calls are not tracked.
func (e StateEvent) Internal() bool {
	return strings.TrimSpace(e.FromExtension) != ""
}

// Destination is the number that identifies the gym: the line the call came
// in on when it was routed to an extension, otherwise the dialed number.
func (e StateEvent) Destination() string {
	if strings.TrimSpace(e.ToExtension) != "" {
		return e.ToLineNumber
	}
	return e.To
}

// SummaryEvent is the final notification for a completed call.
type SummaryEvent struct {
	ExternalID string
	Answered   bool
	StartedAt  time.Time
	EndedAt    time.Time
}

// Status is the terminal status the summary implies.
func (e SummaryEvent) Status() Status {
	if e.Answered {
		return StatusAnswered
	}
	return StatusMissed
}

// DurationSeconds is the call length; clock skew never yields a negative value.
func (e SummaryEvent) DurationSeconds() int {
	d := int(e.EndedAt.Sub(e.StartedAt) / time.Second)
	if d < 0 {
		return 0
	}
	return d
}

// Outcome describes what an event did to the store. Stable values; they are
// used as metric labels.
type Outcome string

const (
	OutcomeCreated         Outcome = "created"
	OutcomeUpdated         Outcome = "updated"
	OutcomeIgnoredStale    Outcome = "ignored_stale"
	OutcomeIgnoredTerminal Outcome = "ignored_terminal"
	OutcomeIgnoredInternal Outcome = "ignored_internal"
	OutcomeSummaryApplied  Outcome = "summary_applied"
	OutcomeSummaryOrphan   Outcome = "summary_orphan"
)

// Page is one page of a director's call list.
type Page struct {
	Calls    []Call `json:"data"`
	Page     int    `json:"current_page"`
	PerPage  int    `json:"per_page"`
	Total    int    `json:"total"`
	LastPage int    `json:"last_page"`
}
