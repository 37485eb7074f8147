package core

import "errors"

var (
	// ErrDisconnected reports a clean close by the peer.
	ErrDisconnected = errors.New("peer disconnected")
	// ErrConnClosed is returned by TrySend after Close.
	ErrConnClosed = errors.New("connection closed")

	ErrAlreadyJoined = errors.New("session already joined")
	ErrNotJoined     = errors.New("session not joined")
)
