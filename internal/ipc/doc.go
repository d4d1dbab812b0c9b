// Package ipc implements Hearo's local inter-daemon message bus.
//
// Daemons exchange JSON envelopes over unix datagram sockets under a
// shared directory, one socket per daemon plus a shared event endpoint
// owned by the orchestrator. Four envelope kinds exist: events
// (broadcast facts), commands (directed requests), acks (command
// accepted or rejected) and results (command outcome). Datagram
// boundaries frame messages, so no length prefix or stream parsing is
// needed, and a dead peer costs nothing but the message.
//
// All receives are bounded: Endpoint.Receive waits at most a
// configured interval so every daemon loop can interleave socket
// traffic with its periodic tick.
package ipc
