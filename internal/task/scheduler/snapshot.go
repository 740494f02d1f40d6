package scheduler

import "sort"

// Snapshot returns the pending events in run order.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	pending := make(eventHeap, len(s.queue))
	copy(pending, s.queue)
	snap := Snapshot{Running: s.running, Fired: s.fired}
	s.mu.Unlock()

	sort.Slice(pending, pending.Less)
	snap.Pending = make([]EventInfo, 0, len(pending))
	for _, e := range pending {
		snap.Pending = append(snap.Pending, EventInfo{Name: e.Name, Due: e.Due, Priority: e.Priority})
	}
	return snap
}
