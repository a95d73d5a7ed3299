package reconcile

import "time"

// Outcome is the result class of reconciling one queue entry.
type Outcome int

const (
	// NoOp means nothing was attempted (the entry was already synced).
	NoOp Outcome = iota
	// Moved means the client was added to the requested coach's sheet.
	Moved
	// DedupedOnly means the client was already in place; only stray copies
	// in other coach sheets were removed (possibly none).
	DedupedOnly
	// Failed means the entry was not applied and must stay pending.
	Failed
)

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case NoOp:
		return "noop"
	case Moved:
		return "moved"
	case DedupedOnly:
		return "deduped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Reason explains a Failed outcome.
type Reason string

const (
	ReasonInvalidRow   Reason = "invalid-row"
	ReasonUnknownCoach Reason = "unknown-coach"
	ReasonWriteError   Reason = "write-error"
)

// Entry is one sync queue request: move FullName to the coach named by
// NewCoachTag.
type Entry struct {
	// Row is the queue sheet row the entry was read from.
	Row         int
	FullName    string
	NewCoachTag string
	// Timestamp is zero when RawTimestamp could not be parsed.
	Timestamp    time.Time
	RawTimestamp string
	Synced       bool
}

// Result describes what reconciling one entry did.
type Result struct {
	Outcome Outcome
	Reason  Reason
	Err     error

	// Row is the queue row of the entry.
	Row      int
	Client   string
	OldCoach string
	NewCoach string

	// Added is 1 when the client was written to the new coach's sheet.
	// It can be 1 on a Failed result when a later removal failed.
	Added int
	// Removed counts roster rows deleted while applying the entry.
	Removed int

	// Warnings notes problems that did not stop the entry, such as a
	// configured pay that is not an amount.
	Warnings []string
}

// Synced reports whether the queue entry should be marked as processed.
func (r Result) Synced() bool {
	return r.Outcome == Moved || r.Outcome == DedupedOnly
}
