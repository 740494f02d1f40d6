package scheduler

import (
	"context"
	"fmt"
	"time"
)

// Action runs a due event. Returning an error stops Run.
type Action func(ctx context.Context, s *Scheduler, ev Event) error

// Event is one pending timed action.
//
// Ordering: Due ascending, then Priority ascending (lower runs first), then
// registration order.
type Event struct {
	Name     string
	Due      time.Time
	Priority int
	Action   Action
	Payload  any

	seq uint64
}

// Handle identifies a registered event.
type Handle uint64

// ActionError reports an action that failed. It terminates Run.
type ActionError struct {
	Name string
	Due  time.Time
	Err  error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("event %q due %s: %v", e.Name, e.Due.Format(time.RFC3339), e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// EventInfo is a read-only view of a pending event.
type EventInfo struct {
	Name     string
	Due      time.Time
	Priority int
}

// Snapshot is a point-in-time view of the scheduler.
type Snapshot struct {
	Running bool
	Fired   uint64
	Pending []EventInfo
}
