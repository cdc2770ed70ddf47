// Package timeout defines centralized timeout constants for chat
// operations.
package timeout

import "time"

const (
	// InvokeTimeout bounds a synchronous completion call.
	InvokeTimeout = 2 * time.Minute

	// StreamTimeout bounds an entire streamed turn.
	StreamTimeout = 5 * time.Minute

	// ProbeTimeout bounds a provider connection test.
	ProbeTimeout = 30 * time.Second
)
