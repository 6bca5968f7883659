package core

import "errors"

// Frame is one encoded message for a client connection.
type Frame []byte

var ErrBackpressure = errors.New("backpressure")

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend never blocks. It returns ErrBackpressure when the outgoing buffer is full.
	TrySend(Frame) error
	Close()
}
