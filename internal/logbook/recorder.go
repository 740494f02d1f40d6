package logbook

import (
	"context"
	"time"

	"shipsbell/internal/eventbus"
	logx "shipsbell/pkg/logx"
)

const appendTimeout = 2 * time.Second

// Recorder drains clock events into a Store.
type Recorder struct {
	store Store
	log   logx.Logger
}

func NewRecorder(store Store, log logx.Logger) *Recorder {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Recorder{store: store, log: log.With(logx.String("comp", "logbook"))}
}

// Run appends every event carrying an Entry until ctx is done or events is
// closed. Write failures are logged and do not stop the loop.
func (r *Recorder) Run(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e, ok := ev.Data.(Entry)
			if !ok {
				r.log.Debug("event", logx.String("type", ev.Type), logx.Time("time", ev.Time))
				continue
			}
			if e.At.IsZero() {
				e.At = ev.Time
			}
			actx, cancel := context.WithTimeout(context.Background(), appendTimeout)
			if err := r.store.Append(actx, e); err != nil {
				r.log.Warn("logbook append failed", logx.String("kind", e.Kind), logx.Err(err))
			}
			cancel()
		}
	}
}
