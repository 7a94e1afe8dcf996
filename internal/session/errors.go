package session

import "errors"

var (
	// ErrUnknownTransport is returned by Open for an unrecognised transport name.
	ErrUnknownTransport = errors.New("session: unknown transport")

	// ErrUnsupportedProtocol is returned when an endpoint protocol has no broker URL scheme.
	ErrUnsupportedProtocol = errors.New("session: unsupported endpoint protocol")

	// ErrInvalidMode is returned by ParseMode for anything but client or peer.
	ErrInvalidMode = errors.New("session: invalid mode")

	// ErrClosed is returned by operations on a closed session or undeclared handle.
	ErrClosed = errors.New("session: closed")

	// ErrNilHandler is returned when a subscriber is declared without a handler.
	ErrNilHandler = errors.New("session: handler cannot be nil")

	// ErrEmptyTopic is returned when a publisher or subscriber is declared without a topic.
	ErrEmptyTopic = errors.New("session: topic cannot be empty")
)
