package systemd

import (
	"context"
	"sync"
	"testing"
	"time"

	logx "shipsbell/pkg/logx"
)

type states struct {
	mu  sync.Mutex
	got []string
}

func (s *states) notify(state string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, state)
	return true, nil
}

func (s *states) list() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.got...)
}

func TestDisabledSendsNothing(t *testing.T) {
	t.Parallel()
	st := &states{}
	n := NewNotifier(false, logx.Nop())
	n.notify = st.notify
	n.Ready()
	n.Status("x")
	n.Watchdog(context.Background())
	if len(st.list()) != 0 {
		t.Fatalf("sent %v", st.list())
	}
}

func TestLifecycleStates(t *testing.T) {
	t.Parallel()
	st := &states{}
	n := NewNotifier(true, logx.Nop())
	n.notify = st.notify
	n.Ready()
	n.Status("next: 8 bells at 00:00")
	n.Stopping()
	want := []string{"READY=1", "STATUS=next: 8 bells at 00:00", "STOPPING=1"}
	got := st.list()
	if len(got) != len(want) {
		t.Fatalf("states = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("states = %v, want %v", got, want)
		}
	}
}

func TestWatchdogPings(t *testing.T) {
	t.Parallel()
	st := &states{}
	n := NewNotifier(true, logx.Nop())
	n.notify = st.notify
	n.interval = func() (time.Duration, error) { return 10 * time.Millisecond, nil }

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	n.Watchdog(ctx)
	got := st.list()
	if len(got) < 2 || got[0] != "WATCHDOG=1" {
		t.Fatalf("pings = %v", got)
	}
}
