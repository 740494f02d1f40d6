package shipclock

import (
	"time"

	"github.com/robfig/cron/v3"

	"shipsbell/internal/bells"
)

// halfHours fires on every :00 and :30 in the location of the time passed to
// Next.
var halfHours = mustParse("0,30 * * * *")

func mustParse(expr string) cron.Schedule {
	p := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	s, err := p.Parse(expr)
	if err != nil {
		panic(err)
	}
	return s
}

// FirstBoundary returns the first :00 or :30 strictly after now+margin.
func FirstBoundary(now time.Time, margin time.Duration) time.Time {
	return halfHours.Next(now.Add(margin))
}

// Chime describes what the clock will do at a boundary.
type Chime struct {
	At       time.Time
	Count    int
	Withheld bool
	Watch    string
}

// NextChime reports the next boundary after now and what happens there.
func NextChime(now time.Time, policy bells.Policy, table interface{ For(int) (string, error) }) (Chime, error) {
	at := FirstBoundary(now, 0)
	n, ok := policy.Chimes(at.Hour(), at.Minute())
	if !ok {
		n = bells.ChimeCount(at.Hour(), at.Minute())
	}
	name, err := table.For(at.Hour())
	if err != nil {
		return Chime{}, err
	}
	return Chime{At: at, Count: n, Withheld: !ok, Watch: name}, nil
}
