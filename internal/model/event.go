package model

import "time"

// Event kinds emitted by the dispatch loop and monitor.
const (
	EventState    = "state"    // dispatch state transition
	EventReject   = "reject"   // command rejected by the validator
	EventForward  = "forward"  // command forwarded to the sink
	EventSafeStop = "safestop" // protective stop sent
	EventAlert    = "alert"    // monitor alert
)

// Event is a one-way observability record: every validator rejection and every
// dispatch state transition is published as one of these.
type Event struct {
	Kind      string    `json:"kind"`
	Reason    string    `json:"reason,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// NewEvent builds an Event stamped with the current time.
func NewEvent(kind, reason, detail string) Event {
	return Event{Kind: kind, Reason: reason, Detail: detail, Timestamp: time.Now()}
}
