package scheduler

import "container/heap"

// eventHeap implements container/heap.Interface, earliest event first.
type eventHeap []Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if !a.Due.Equal(b.Due) {
		return a.Due.Before(b.Due)
	}
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.seq < b.seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(Event))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = Event{}
	*h = old[:n-1]
	return x
}

func heapPush(h *eventHeap, e Event) { heap.Push(h, e) }

func heapPop(h *eventHeap) Event { return heap.Pop(h).(Event) }

// heapRemoveBySeq removes the event registered as seq.
// Returns the removed index, or -1 if it was not pending.
func heapRemoveBySeq(h *eventHeap, seq uint64) int {
	for i, e := range *h {
		if e.seq == seq {
			heap.Remove(h, i)
			return i
		}
	}
	return -1
}
