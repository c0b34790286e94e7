//go:generate go run go.uber.org/mock/mockgen -source=channel.go -destination=../mocks/mock_channel.go -package=mocks
package core

import "errors"

// Frame is a raw encoded message.
type Frame []byte

var ErrChannelClosed = errors.New("channel closed")

// Channel abstracts one participant's live duplex transport.
// Owned by the adapter; the core only sends to it and asks it to Close().
// TrySend must never block.
type Channel interface {
	TrySend(Frame) error
	Close()
}

// CodeGenerator hands out session codes. taken reports codes already in use.
type CodeGenerator interface {
	GenerateUniqueCode(taken func(code string) bool) (string, error)
}
