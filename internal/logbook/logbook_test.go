package logbook

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"shipsbell/internal/eventbus"
	logx "shipsbell/pkg/logx"
)

var t0 = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func sampleEntries(n int) []Entry {
	out := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		due := t0.Add(time.Duration(i) * 30 * time.Minute)
		out = append(out, Entry{At: due.Add(time.Second), Due: due, Kind: KindBell, Event: "bell", Chimes: (i+7)%8 + 1})
	}
	return out
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, d := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: d}, logx.Nop())
		if st != nil || err != nil {
			t.Fatalf("Open(%q) = %v, %v; want nil, nil", d, st, err)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "postgres", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()
	for _, d := range []string{"file", "sqlite"} {
		if _, err := Open(Config{Driver: d}, logx.Nop()); err == nil {
			t.Fatalf("%s: expected error without path", d)
		}
	}
}

func TestStores(t *testing.T) {
	t.Parallel()
	cases := []struct {
		driver string
		file   string
	}{
		{"file", "log/shipsbell.jsonl"},
		{"sqlite", "log/shipsbell.db"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.driver, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), tc.file)
			st, err := Open(Config{Driver: tc.driver, Path: path, BusyTimeout: time.Second}, logx.Nop())
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer st.Close()

			ctx := context.Background()
			all := sampleEntries(5)
			all = append(all, Entry{At: t0.Add(3 * time.Hour), Due: t0.Add(2 * time.Hour), Kind: KindOverdue, Event: "watch", LateMS: 3600000})
			all = append(all, Entry{At: t0.Add(4 * time.Hour), Due: t0.Add(4 * time.Hour), Kind: KindWatch, Watch: "first"})
			for _, e := range all {
				if err := st.Append(ctx, e); err != nil {
					t.Fatalf("Append: %v", err)
				}
			}

			got, err := st.Recent(ctx, 3)
			if err != nil {
				t.Fatalf("Recent: %v", err)
			}
			want := all[len(all)-3:]
			if len(got) != len(want) {
				t.Fatalf("Recent returned %d entries, want %d", len(got), len(want))
			}
			for i := range want {
				if !got[i].At.Equal(want[i].At) || !got[i].Due.Equal(want[i].Due) {
					t.Fatalf("entry %d times = %v/%v, want %v/%v", i, got[i].At, got[i].Due, want[i].At, want[i].Due)
				}
				got[i].At, got[i].Due = want[i].At, want[i].Due
				if !reflect.DeepEqual(got[i], want[i]) {
					t.Fatalf("entry %d = %+v, want %+v", i, got[i], want[i])
				}
			}

			if got, _ := st.Recent(ctx, 100); len(got) != len(all) {
				t.Fatalf("Recent(100) = %d entries, want %d", len(got), len(all))
			}
			if got, _ := st.Recent(ctx, 0); got != nil {
				t.Fatalf("Recent(0) = %v", got)
			}
			if _, err := os.Stat(path); err != nil {
				t.Fatalf("store file missing: %v", err)
			}
		})
	}
}

func TestFileSkipsMalformedLines(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "book.jsonl")
	if err := os.WriteFile(path, []byte("not json\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()
	if err := st.Append(context.Background(), sampleEntries(1)[0]); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, err := st.Recent(context.Background(), 10)
	if err != nil || len(got) != 1 {
		t.Fatalf("Recent = %v, %v", got, err)
	}
}

func TestFileClosed(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "b.jsonl")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}
	if err := st.Append(context.Background(), Entry{}); err != ErrClosed {
		t.Fatalf("Append after Close = %v", err)
	}
}

func TestRecorder(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "b.jsonl")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	bus := eventbus.New()
	ch, unsub := bus.Subscribe(16)
	done := make(chan struct{})
	go func() {
		NewRecorder(st, logx.Nop()).Run(context.Background(), ch)
		close(done)
	}()

	bus.Publish(eventbus.Event{Type: eventbus.TypeClockStarted, Time: t0})
	bus.Publish(eventbus.Event{Type: eventbus.TypeBellStruck, Time: t0.Add(time.Second), Data: Entry{Due: t0, Kind: KindBell, Chimes: 8}})
	unsub()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("recorder did not stop when the channel closed")
	}

	got, err := st.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Chimes != 8 || !got[0].At.Equal(t0.Add(time.Second)) {
		t.Fatalf("recorded %+v", got)
	}
}
