package shipclock

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"shipsbell/internal/bells"
	"shipsbell/internal/clock"
	"shipsbell/internal/eventbus"
	"shipsbell/internal/logbook"
	"shipsbell/internal/task/scheduler"
	"shipsbell/internal/watch"
	logx "shipsbell/pkg/logx"
)

type fakePlayer struct {
	mu     sync.Mutex
	counts []int
	err    error
}

func (p *fakePlayer) PlayBells(_ context.Context, n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.counts = append(p.counts, n)
	return nil
}

// fakeAnnouncer cancels the run once n watches have been announced.
type fakeAnnouncer struct {
	mu     sync.Mutex
	names  []string
	n      int
	cancel context.CancelFunc
}

func (a *fakeAnnouncer) Announce(_ context.Context, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.names = append(a.names, name)
	if len(a.names) >= a.n && a.cancel != nil {
		a.cancel()
	}
	return nil
}

func TestFirstBoundary(t *testing.T) {
	t.Parallel()
	day := func(h, m, s int) time.Time { return time.Date(2024, 6, 1, h, m, s, 0, time.UTC) }
	cases := []struct {
		now, want time.Time
	}{
		{day(12, 0, 0), day(12, 30, 0)},
		{day(12, 10, 0), day(12, 30, 0)},
		{day(12, 29, 49), day(12, 30, 0)},
		{day(12, 29, 50), day(13, 0, 0)},
		{day(12, 30, 0), day(13, 0, 0)},
		{day(12, 45, 0), day(13, 0, 0)},
		{day(23, 59, 55), time.Date(2024, 6, 2, 0, 30, 0, 0, time.UTC)},
		{day(23, 40, 0), time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got := FirstBoundary(tc.now, DefaultStartupMargin)
		if !got.Equal(tc.want) {
			t.Fatalf("FirstBoundary(%v) = %v, want %v", tc.now, got, tc.want)
		}
		if !got.After(tc.now) || got.Second() != 0 || got.Nanosecond() != 0 || got.Minute()%30 != 0 {
			t.Fatalf("FirstBoundary(%v) = %v is not a future :00/:30", tc.now, got)
		}
	}
}

func TestFirstBoundaryKeepsLocation(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("NPT", 5*3600+45*60)
	now := time.Date(2024, 6, 1, 10, 5, 0, 0, loc)
	got := FirstBoundary(now, 0)
	if got.Location() != loc || got.Hour() != 10 || got.Minute() != 30 {
		t.Fatalf("FirstBoundary = %v, want 10:30 NPT", got)
	}
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()
	start := time.Date(2024, 6, 1, 23, 59, 40, 0, time.UTC)
	clk := clock.NewFake(start)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	player := &fakePlayer{}
	ann := &fakeAnnouncer{n: 4, cancel: cancel}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(64)
	defer unsub()

	d := New(Config{}, clk, player, ann, bus, logx.Nop())
	if err := d.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if want := []int{8, 1, 2, 3}; !reflect.DeepEqual(player.counts, want) {
		t.Fatalf("chimes = %v, want %v", player.counts, want)
	}
	want := []string{"middle watch", "middle watch", "middle watch", "middle watch"}
	if !reflect.DeepEqual(ann.names, want) {
		t.Fatalf("announcements = %v, want %v", ann.names, want)
	}

	var types []string
	for len(events) > 0 {
		types = append(types, (<-events).Type)
	}
	wantTypes := []string{eventbus.TypeClockStarted}
	for i := 0; i < 4; i++ {
		wantTypes = append(wantTypes, eventbus.TypeBellStruck, eventbus.TypeWatchAnnounced)
	}
	if !reflect.DeepEqual(types, wantTypes) {
		t.Fatalf("events = %v, want %v", types, wantTypes)
	}
}

func TestDogWatchWithheld(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake(time.Date(2024, 6, 1, 19, 0, 0, 0, time.UTC))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	player := &fakePlayer{}
	ann := &fakeAnnouncer{n: 3, cancel: cancel}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(64)
	defer unsub()

	cfg := Config{Policy: bells.Policy{NoEightBellsInDogWatch: true}}
	if err := New(cfg, clk, player, ann, bus, logx.Nop()).Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 19:30, 20:00 (silent), 20:30.
	if want := []int{7, 1}; !reflect.DeepEqual(player.counts, want) {
		t.Fatalf("chimes = %v, want %v", player.counts, want)
	}
	if want := []string{"last dog watch", "first watch", "first watch"}; !reflect.DeepEqual(ann.names, want) {
		t.Fatalf("announcements = %v, want %v", ann.names, want)
	}

	var withheld []logbook.Entry
	for len(events) > 0 {
		if e := <-events; e.Type == eventbus.TypeBellWithheld {
			withheld = append(withheld, e.Data.(logbook.Entry))
		}
	}
	if len(withheld) != 1 || withheld[0].Due.Hour() != 20 || withheld[0].Chimes != 8 {
		t.Fatalf("withheld = %+v", withheld)
	}
}

// lateClock wakes every sleeper 31 minutes after it asked, like a host that
// keeps getting suspended. It cancels the run once past until.
type lateClock struct {
	mu     sync.Mutex
	now    time.Time
	until  time.Time
	cancel context.CancelFunc
}

func (c *lateClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *lateClock) SleepUntil(ctx context.Context, t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.now) {
		c.now = t
	}
	c.now = c.now.Add(31 * time.Minute)
	if c.now.After(c.until) {
		c.cancel()
		return ctx.Err()
	}
	return nil
}

func TestOverdueTicksAreSkipped(t *testing.T) {
	t.Parallel()
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clk := &lateClock{now: start, until: start.Add(6 * time.Hour), cancel: cancel}

	player := &fakePlayer{}
	ann := &fakeAnnouncer{}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(256)
	defer unsub()

	d := New(Config{}, clk, player, ann, bus, logx.Nop())
	if err := d.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(player.counts) != 0 || len(ann.names) != 0 {
		t.Fatalf("overdue ticks ran: chimes=%v watches=%v", player.counts, ann.names)
	}

	var overdue []logbook.Entry
	for len(events) > 0 {
		if e := <-events; e.Type == eventbus.TypeOverdue {
			overdue = append(overdue, e.Data.(logbook.Entry))
		}
	}
	if len(overdue) < 4 {
		t.Fatalf("overdue reports = %d, want at least 4", len(overdue))
	}
	for _, e := range overdue {
		if e.LateMS <= (30 * time.Minute).Milliseconds() {
			t.Fatalf("entry %+v reported overdue within grace", e)
		}
	}
	// The chain continues on the half-hour grid.
	pending := d.Scheduler().Snapshot().Pending
	if len(pending) != 2 {
		t.Fatalf("pending = %+v, want bell and watch", pending)
	}
	for _, p := range pending {
		if p.Due.Sub(start)%(30*time.Minute) != 0 {
			t.Fatalf("pending %s due %v is off the grid", p.Name, p.Due)
		}
	}
}

func TestPlayerFailureStopsClock(t *testing.T) {
	t.Parallel()
	boom := errors.New("no audio device")
	clk := clock.NewFake(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))
	d := New(Config{}, clk, &fakePlayer{err: boom}, &fakeAnnouncer{}, nil, logx.Nop())

	err := d.Run(context.Background())
	var ae *scheduler.ActionError
	if !errors.As(err, &ae) || ae.Name != "bell" || !errors.Is(err, boom) {
		t.Fatalf("Run error = %v", err)
	}
}

func TestCustomWatchTable(t *testing.T) {
	t.Parallel()
	table, err := watch.New([]watch.Range{{Start: 0, End: 24, Name: "all day"}})
	if err != nil {
		t.Fatal(err)
	}
	clk := clock.NewFake(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ann := &fakeAnnouncer{n: 1, cancel: cancel}
	if err := New(Config{Watches: table}, clk, &fakePlayer{}, ann, nil, logx.Nop()).Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !reflect.DeepEqual(ann.names, []string{"all day"}) {
		t.Fatalf("announcements = %v", ann.names)
	}
}

func TestNextChime(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 6, 1, 19, 45, 0, 0, time.UTC)
	c, err := NextChime(now, bells.Policy{NoEightBellsInDogWatch: true}, watch.Default())
	if err != nil {
		t.Fatal(err)
	}
	want := Chime{At: time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC), Count: 8, Withheld: true, Watch: "first watch"}
	if c != want {
		t.Fatalf("NextChime = %+v, want %+v", c, want)
	}
}
