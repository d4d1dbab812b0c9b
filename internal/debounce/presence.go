package debounce

import "time"

// EdgeKind distinguishes the two stable presence transitions.
type EdgeKind int

const (
	// Added fires once a candidate uid has been read over the full
	// add-stability window.
	Added EdgeKind = iota
	// Removed fires when the current uid is gone: missing for the
	// miss-release window, or displaced by a different uid.
	Removed
)

// String returns the edge name used in logs.
func (k EdgeKind) String() string {
	if k == Added {
		return "ADDED"
	}
	return "REMOVED"
}

// Removal reasons carried on Removed edges.
const (
	ReasonTimeout  = "timeout"
	ReasonReplaced = "replaced"
)

// Edge is one stable presence transition for a tag uid. Reason is set
// on Removed edges only.
type Edge struct {
	Kind   EdgeKind
	UID    string
	Reason string
}

// Presence debounces intermittent tag reads into stable placed and
// removed edges.
//
// NFC reads are noisy in both directions: a tag settling on the reader
// produces a burst of intermittent reads before it is reliably seen,
// and a seated tag occasionally misses a poll. A uid becomes present
// once the add window has elapsed since it first read as candidate
// (individual missed polls do not restart the window; a different uid
// does). A present uid is released after missRelease without a read,
// or immediately when a different uid reads, reported as replaced.
type Presence struct {
	addStable   time.Duration
	missRelease time.Duration

	current        string
	lastSeen       time.Time
	candidate      string
	candidateSince time.Time
}

// NewPresence builds a presence debouncer. Non-positive windows take
// the defaults of 300ms to add and 600ms to release.
func NewPresence(addStable, missRelease time.Duration) *Presence {
	if addStable <= 0 {
		addStable = 300 * time.Millisecond
	}
	if missRelease <= 0 {
		missRelease = 600 * time.Millisecond
	}
	return &Presence{addStable: addStable, missRelease: missRelease}
}

// Current returns the uid considered stably present, or "".
func (p *Presence) Current() string {
	return p.current
}

// Observe feeds one poll outcome taken at now: uid is the tag read, or
// "" when no tag was seen. It returns the edges the sample completes.
func (p *Presence) Observe(uid string, now time.Time) []Edge {
	var out []Edge

	switch {
	case uid != "" && uid == p.current:
		p.lastSeen = now

	case uid != "" && p.current != "":
		// A different tag displaced the current one.
		out = append(out, Edge{Kind: Removed, UID: p.current, Reason: ReasonReplaced})
		p.current = ""
		p.candidate = uid
		p.candidateSince = now

	case uid != "":
		if uid != p.candidate {
			p.candidate = uid
			p.candidateSince = now
		} else if now.Sub(p.candidateSince) >= p.addStable {
			p.current = uid
			p.lastSeen = now
			p.candidate = ""
			out = append(out, Edge{Kind: Added, UID: uid})
		}

	default:
		// No tag this poll. The candidate keeps its window; only the
		// current tag can time out.
		if p.current != "" && now.Sub(p.lastSeen) >= p.missRelease {
			out = append(out, Edge{Kind: Removed, UID: p.current, Reason: ReasonTimeout})
			p.current = ""
			p.candidate = ""
		}
	}

	return out
}

// Reset clears all presence state without emitting edges. The NFC
// daemon calls it when the reader is re-initialised after a fault.
func (p *Presence) Reset() {
	p.current = ""
	p.candidate = ""
}
