package ipc

import "errors"

var (
	// ErrProtocol indicates a datagram that does not conform to the
	// IPC message scheme. Receivers drop the datagram and continue.
	ErrProtocol = errors.New("ipc: protocol violation")

	// ErrTimeout indicates that a bounded receive expired without a
	// datagram arriving. It is the normal idle outcome of Receive and
	// of AwaitReply.
	ErrTimeout = errors.New("ipc: receive timed out")

	// ErrClosed indicates an operation on an endpoint after Close.
	ErrClosed = errors.New("ipc: endpoint closed")

	// ErrNoReply indicates a Reply call for a command whose sender
	// did not provide a reply endpoint.
	ErrNoReply = errors.New("ipc: command has no reply endpoint")
)
