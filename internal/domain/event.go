package domain

import (
	"time"

	"github.com/google/uuid"
)

// Lookup outcomes recorded on events and metrics.
const (
	OutcomeOK             = "ok"
	OutcomeBadRequest     = "bad_request"
	OutcomeNotFound       = "not_found"
	OutcomeIntegrityError = "integrity_error"
	OutcomeCanceled       = "canceled"
	OutcomeError          = "error"
)

// LookupEvent records one location lookup for the event stream.
type LookupEvent struct {
	ID         string     `json:"id"`
	Query      Coordinate `json:"query"`
	Resolved   *GridPoint `json:"resolved,omitempty"`
	Outcome    string     `json:"outcome"`
	CacheHit   bool       `json:"cache_hit"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// NewLookupEvent stamps a new event with a random ID and the package clock.
func NewLookupEvent(query Coordinate, resolved *GridPoint, outcome string, cacheHit bool) LookupEvent {
	return LookupEvent{
		ID:         uuid.NewString(),
		Query:      query,
		Resolved:   resolved,
		Outcome:    outcome,
		CacheHit:   cacheHit,
		OccurredAt: Now(),
	}
}
