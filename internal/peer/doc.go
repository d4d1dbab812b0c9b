// Package peer provides the shared machinery of a Hearo device
// daemon: the receive-or-tick main loop, exponential retry backoff,
// classified failures, and the command handling every daemon has in
// common (PING, SET_DEBUG).
//
// Each daemon embeds these pieces around its own state machine rather
// than inheriting a framework: the loop calls back into the daemon for
// every message and tick, and the daemon stays in full control of its
// state.
package peer
