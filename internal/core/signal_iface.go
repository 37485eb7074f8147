package core

import "context"

// Frame is one encoded wire event.
type Frame []byte

// SessionID is the opaque handle of one accepted connection.
// It is assigned at accept time and never reused.
type SessionID string

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend queues f for delivery without blocking.
	TrySend(Frame) error
	Close()
}

// SignalStream is the inbound half a session reads from.
type SignalStream interface {
	SignalConnection
	// ReadFrame blocks until the next frame arrives. A peer that went away
	// cleanly is reported as ErrDisconnected.
	ReadFrame(ctx context.Context) (Frame, error)
}
