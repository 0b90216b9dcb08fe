package store

import (
	"time"

	"github.com/google/uuid"
)

// Request is one inbound utterance. It is immutable once built and discarded after resolution.
type Request struct {
	ID          string    `json:"id"`
	Query       string    `json:"query"`
	Origin      Channel   `json:"origin"`
	UserID      string    `json:"user_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// NewRequest fills in an id when the transport did not supply one. Transport-supplied ids are what
// deduplication keys on, so a generated id never collides with a redelivery.
func NewRequest(id, userID string, origin Channel, query string, now time.Time) Request {
	if id == "" {
		id = uuid.NewString()
	}
	return Request{
		ID:          id,
		Query:       query,
		Origin:      origin,
		UserID:      userID,
		SubmittedAt: now,
	}
}
