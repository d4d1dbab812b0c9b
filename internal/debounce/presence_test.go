package debounce

import (
	"testing"
	"time"
)

const pollStep = 50 * time.Millisecond

// poller feeds a Presence one poll outcome per pollStep against a
// monotonically advancing clock.
type poller struct {
	p   *Presence
	now time.Time
}

func newPoller() *poller {
	return &poller{
		p:   NewPresence(300*time.Millisecond, 600*time.Millisecond),
		now: t0,
	}
}

func (pl *poller) feed(uids ...string) []Edge {
	var out []Edge
	for _, uid := range uids {
		out = append(out, pl.p.Observe(uid, pl.now)...)
		pl.now = pl.now.Add(pollStep)
	}
	return out
}

func repeat(uid string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = uid
	}
	return out
}

func TestPresence_AddAfterStableReads(t *testing.T) {
	pl := newPoller()

	// 300ms of consistent reads at 50ms cadence.
	got := pl.feed(repeat("04A1", 7)...)

	if len(got) != 1 || got[0].Kind != Added || got[0].UID != "04A1" {
		t.Fatalf("edges = %v, want single Added 04A1", got)
	}
	if pl.p.Current() != "04A1" {
		t.Errorf("Current() = %q, want 04A1", pl.p.Current())
	}
}

func TestPresence_BriefReadDoesNotAdd(t *testing.T) {
	pl := newPoller()

	// Two reads spanning 50ms, then gone: never crosses the window.
	got := pl.feed("04A1", "04A1", "", "", "")

	if len(got) != 0 {
		t.Errorf("edges = %v, want none for a brief read", got)
	}
	if pl.p.Current() != "" {
		t.Errorf("Current() = %q, want empty", pl.p.Current())
	}
}

func TestPresence_MissedPollsKeepCandidateWindow(t *testing.T) {
	pl := newPoller()

	// A settling tag reads intermittently; the window is measured from
	// the first candidate read, not restarted by individual misses.
	got := pl.feed("04A1", "", "04A1", "", "04A1", "", "04A1")

	if len(got) != 1 || got[0].Kind != Added {
		t.Fatalf("edges = %v, want Added once the window elapses", got)
	}
}

func TestPresence_DifferentUIDRestartsCandidateWindow(t *testing.T) {
	pl := newPoller()

	got := pl.feed("04A1", "04A1", "07B9", "07B9", "07B9", "07B9")

	if len(got) != 0 {
		t.Errorf("edges = %v, want none: window restarted at 100ms, 07B9 stable only 150ms", got)
	}
	if more := pl.feed("07B9", "07B9", "07B9"); len(more) != 1 || more[0].UID != "07B9" {
		t.Errorf("edges = %v, want Added 07B9 after its own full window", more)
	}
}

func TestPresence_MissedPollsDoNotRelease(t *testing.T) {
	pl := newPoller()
	pl.feed(repeat("04A1", 7)...)

	// 500ms of misses, below the 600ms release window, then the tag
	// reads again.
	got := pl.feed("", "", "", "", "", "04A1")

	if len(got) != 0 {
		t.Errorf("edges = %v, want none for sub-window misses", got)
	}
	if pl.p.Current() != "04A1" {
		t.Errorf("Current() = %q, want 04A1 still present", pl.p.Current())
	}
}

func TestPresence_RemoveAfterMissWindow(t *testing.T) {
	pl := newPoller()
	pl.feed(repeat("04A1", 7)...)

	got := pl.feed(repeat("", 14)...)

	if len(got) != 1 {
		t.Fatalf("edges = %v, want single Removed", got)
	}
	e := got[0]
	if e.Kind != Removed || e.UID != "04A1" || e.Reason != ReasonTimeout {
		t.Errorf("edge = %+v, want Removed 04A1 timeout", e)
	}
	if pl.p.Current() != "" {
		t.Errorf("Current() = %q, want empty", pl.p.Current())
	}
}

func TestPresence_Replacement(t *testing.T) {
	pl := newPoller()
	pl.feed(repeat("04A1", 7)...)

	// A different tag reads while the first is still present: the old
	// tag is removed immediately, the new one must earn its own add
	// window.
	got := pl.feed("07B9")
	if len(got) != 1 {
		t.Fatalf("edges = %v, want immediate Removed", got)
	}
	if got[0].Kind != Removed || got[0].UID != "04A1" || got[0].Reason != ReasonReplaced {
		t.Errorf("edge = %+v, want Removed 04A1 replaced", got[0])
	}

	got = pl.feed(repeat("07B9", 7)...)
	if len(got) != 1 || got[0].Kind != Added || got[0].UID != "07B9" {
		t.Errorf("edges = %v, want Added 07B9 after its window", got)
	}
}

func TestPresence_Reset(t *testing.T) {
	pl := newPoller()
	pl.feed(repeat("04A1", 7)...)

	pl.p.Reset()
	if pl.p.Current() != "" {
		t.Errorf("Current() = %q after Reset, want empty", pl.p.Current())
	}

	// The same tag re-read after a reset is a fresh placement.
	got := pl.feed(repeat("04A1", 7)...)
	if len(got) != 1 || got[0].Kind != Added {
		t.Errorf("edges = %v, want single Added after reset", got)
	}
}
