// Package bells maps a time of day to the number of bells struck and to the
// strike sequence a player renders for that number.
package bells

import (
	"fmt"
	"strings"
	"time"
)

// ChimeCount returns the bells struck at hour:minute, in [1,8].
//
// The count climbs by one every half hour and wraps every four hours;
// the turnover itself is eight bells, never zero.
func ChimeCount(hour, minute int) int {
	n := 2 * (hour % 4)
	if minute >= 30 {
		n++
	}
	if n == 0 {
		return 8
	}
	return n
}

// Policy holds optional exceptions to the plain chime count.
type Policy struct {
	// NoEightBellsInDogWatch keeps the bell silent at 20:00, the end of the
	// last dog watch.
	NoEightBellsInDogWatch bool
}

// Chimes returns the count to strike at hour:minute. ok is false when the
// policy says to skip this mark.
func (p Policy) Chimes(hour, minute int) (count int, ok bool) {
	if p.NoEightBellsInDogWatch && hour == 20 && minute == 0 {
		return 0, false
	}
	return ChimeCount(hour, minute), true
}

// Composition selects how a chime count is rendered from recordings.
type Composition string

const (
	// Individual uses one ready-made recording per count.
	Individual Composition = "individual"
	// Composite builds each count from double and single strike recordings.
	Composite Composition = "composite"
)

func ParseComposition(s string) (Composition, error) {
	switch Composition(strings.ToLower(strings.TrimSpace(s))) {
	case "", Individual:
		return Individual, nil
	case Composite:
		return Composite, nil
	default:
		return "", fmt.Errorf("unknown bell composition %q", s)
	}
}

// Strike is one step of a playback sequence.
type Strike struct {
	// Sound names a recording by the number of strikes it holds.
	Sound int
	// Hold is the pause after the recording finishes.
	Hold time.Duration
}

// MaxChimes is the largest count ever struck.
const MaxChimes = 8

// Sequences returns the strike sequence for every count in [1,MaxChimes].
func Sequences(mode Composition, gap time.Duration) map[int][]Strike {
	out := make(map[int][]Strike, MaxChimes)
	for n := 1; n <= MaxChimes; n++ {
		out[n] = Sequence(mode, n, gap)
	}
	return out
}

// Sequence returns the strikes for n bells.
func Sequence(mode Composition, n int, gap time.Duration) []Strike {
	if n <= 0 {
		return nil
	}
	if mode != Composite {
		return []Strike{{Sound: n}}
	}
	seq := make([]Strike, 0, n/2+1)
	for i := 0; i < n/2; i++ {
		seq = append(seq, Strike{Sound: 2, Hold: gap})
	}
	if n%2 == 1 {
		seq = append(seq, Strike{Sound: 1, Hold: gap})
	}
	return seq
}

// Sounds lists the recordings a composition needs.
func Sounds(mode Composition) []int {
	if mode == Composite {
		return []int{1, 2}
	}
	out := make([]int, 0, MaxChimes)
	for n := 1; n <= MaxChimes; n++ {
		out = append(out, n)
	}
	return out
}
