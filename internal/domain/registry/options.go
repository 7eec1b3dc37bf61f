package registry

import "time"

// Option defines a functional configuration type for the Hub.
type Option func(*Hub)

type hubConfig struct {
	mailboxSize int
	sinkBuffer  int
	sendTimeout time.Duration
}

func defaultConfig() hubConfig {
	return hubConfig{
		mailboxSize: 1024,
		sinkBuffer:  256,
		sendTimeout: 500 * time.Millisecond,
	}
}

// WithMailboxSize sets the [BACKPRESSURE] threshold of each namespace cell.
// Records arriving while the mailbox is full are dropped for that namespace.
func WithMailboxSize(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.config.mailboxSize = size
		}
	}
}

// WithSinkBuffer sets how many records a single connection may have queued
// before sends start waiting.
func WithSinkBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.config.sinkBuffer = size
		}
	}
}

// WithSendTimeout bounds how long a cell waits on one saturated sink before
// treating it as failed and detaching it.
func WithSendTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.config.sendTimeout = d
		}
	}
}
