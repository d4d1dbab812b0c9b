// Package orchestrator implements hcsm, the central state machine.
//
// It owns the shared events endpoint and derives the global system
// state purely from the event stream: initialization completes when
// every required daemon has started and a network-status event has
// been seen, playback follows NFC tags, and a critical battery folds
// any operational state into an orderly shutdown. Commands to peers
// are fire-and-forget; the orchestrator never blocks on a reply.
package orchestrator
