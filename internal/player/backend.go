package player

// Status is a playback snapshot from the backend.
type Status struct {
	Playing    bool
	URI        string
	PositionMS int
}

// Backend controls the Spotify Connect device that librespot exposes.
// Implementations wrap errors in *peer.Failure so the state machine
// can branch on the failure class: AuthIssue drops the session into
// auth-lost, ResourceUnavailable means the Connect device vanished,
// anything else is a playback error.
type Backend interface {
	// EnsureReady authenticates and discovers the Connect device.
	EnsureReady() error
	// Play starts uri at the given position.
	Play(uri string, positionMS int) error
	// Stop pauses playback.
	Stop() error
	// Next skips forward in the current context.
	Next() error
	// Previous skips backward in the current context.
	Previous() error
	// SeekAbs moves to an absolute position in the current track.
	SeekAbs(positionMS int) error
	// Status reads the current playback position.
	Status() (Status, error)
}
