package workflow

import "time"

// Transition records one attempted step change. Records are immutable
// once appended and are never deleted; the full history is retained for
// audit.
type Transition struct {
	FromStep  Step      `json:"from_step"`
	ToStep    Step      `json:"to_step"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Patch     `json:"-"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}
