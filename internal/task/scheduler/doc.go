// Package scheduler runs timed actions in due-time order.
//
// The scheduler is a single loop:
//   - wait until the earliest pending event is due
//   - pop it and run its action to completion
//   - repeat until nothing is pending
//
// Actions usually register their own successor, so in practice Run only
// returns on context cancellation or when an action fails.
package scheduler
