// Package broadcast fans out flow transitions and score events to the
// observers of one competition event.
package broadcast

import "github.com/craneyu/YILan-JJGAME/pkg/logger"

const defaultBuffer = 64

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithBuffer sets the per-subscriber channel buffer.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithLogger sets a custom logger for the hub.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}
