package bells

import (
	"reflect"
	"testing"
	"time"
)

func TestChimeCountRangeAndEightBells(t *testing.T) {
	t.Parallel()
	for h := 0; h < 24; h++ {
		for m := 0; m < 60; m++ {
			n := ChimeCount(h, m)
			if n < 1 || n > 8 {
				t.Fatalf("ChimeCount(%d,%d) = %d, out of [1,8]", h, m, n)
			}
			wantEight := h%4 == 0 && m < 30
			if (n == 8) != wantEight {
				t.Fatalf("ChimeCount(%d,%d) = %d, eight bells expected: %v", h, m, n, wantEight)
			}
		}
	}
}

func TestChimeCountPeriodic(t *testing.T) {
	t.Parallel()
	for h := 0; h < 20; h++ {
		for _, m := range []int{0, 15, 29, 30, 59} {
			if a, b := ChimeCount(h, m), ChimeCount(h+4, m); a != b {
				t.Fatalf("ChimeCount(%d,%d)=%d != ChimeCount(%d,%d)=%d", h, m, a, h+4, m, b)
			}
		}
	}
}

func TestChimeCountWatchCycle(t *testing.T) {
	t.Parallel()
	var got []int
	for half := 0; half < 8; half++ {
		got = append(got, ChimeCount(half/2, (half%2)*30))
	}
	want := []int{8, 1, 2, 3, 4, 5, 6, 7}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("cycle = %v, want %v", got, want)
	}
}

func TestPolicyDogWatchException(t *testing.T) {
	t.Parallel()
	p := Policy{NoEightBellsInDogWatch: true}
	if _, ok := p.Chimes(20, 0); ok {
		t.Fatal("expected 20:00 to be skipped")
	}
	if n, ok := p.Chimes(16, 0); !ok || n != 8 {
		t.Fatalf("Chimes(16,0) = %d,%v want 8,true", n, ok)
	}
	if n, ok := p.Chimes(20, 30); !ok || n != 1 {
		t.Fatalf("Chimes(20,30) = %d,%v want 1,true", n, ok)
	}
	if n, ok := (Policy{}).Chimes(20, 0); !ok || n != 8 {
		t.Fatalf("default policy Chimes(20,0) = %d,%v want 8,true", n, ok)
	}
}

func TestSequences(t *testing.T) {
	t.Parallel()
	gap := 100 * time.Millisecond

	ind := Sequences(Individual, gap)
	if len(ind) != MaxChimes {
		t.Fatalf("individual table has %d entries", len(ind))
	}
	if !reflect.DeepEqual(ind[5], []Strike{{Sound: 5}}) {
		t.Fatalf("individual[5] = %v", ind[5])
	}

	comp := Sequences(Composite, gap)
	d, s := Strike{Sound: 2, Hold: gap}, Strike{Sound: 1, Hold: gap}
	tests := map[int][]Strike{
		1: {s},
		2: {d},
		5: {d, d, s},
		8: {d, d, d, d},
	}
	for n, want := range tests {
		if !reflect.DeepEqual(comp[n], want) {
			t.Fatalf("composite[%d] = %v, want %v", n, comp[n], want)
		}
	}
	if Sequence(Composite, 0, gap) != nil {
		t.Fatal("zero bells should produce no strikes")
	}
}

func TestParseComposition(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]Composition{"": Individual, "Composite": Composite, " individual ": Individual} {
		got, err := ParseComposition(in)
		if err != nil || got != want {
			t.Fatalf("ParseComposition(%q) = %q,%v want %q", in, got, err, want)
		}
	}
	if _, err := ParseComposition("chord"); err == nil {
		t.Fatal("expected error for unknown composition")
	}
	if got := Sounds(Composite); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Fatalf("Sounds(composite) = %v", got)
	}
	if got := Sounds(Individual); len(got) != MaxChimes {
		t.Fatalf("Sounds(individual) = %v", got)
	}
}
