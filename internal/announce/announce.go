// Package announce tells the crew which watch is on. The console announcer is
// the primary one; network announcers are best effort.
package announce

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	logx "shipsbell/pkg/logx"
)

type Announcer interface {
	Announce(ctx context.Context, watch string) error
}

// Config selects the announcers to fan out to.
type Config struct {
	Console  bool
	Out      io.Writer // console output; defaults to stdout
	MQTT     MQTTConfig
	Telegram TelegramConfig
}

// New builds a Multi from cfg. Network announcers that fail to connect are an
// error; once running, their failures are only logged.
func New(cfg Config, log logx.Logger) (*Multi, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "announce"))

	m := &Multi{}
	if cfg.Console {
		m.Add(NewConsole(cfg.Out))
	}
	if cfg.MQTT.Enabled {
		a, err := NewMQTT(cfg.MQTT, log)
		if err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("mqtt announcer: %w", err)
		}
		m.Add(BestEffort("mqtt", a, log))
	}
	if cfg.Telegram.Enabled {
		a, err := NewTelegram(cfg.Telegram, log)
		if err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("telegram announcer: %w", err)
		}
		m.Add(BestEffort("telegram", a, log))
	}
	return m, nil
}

// Console prints the watch name, one per line.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out}
}

func (c *Console) Announce(_ context.Context, watch string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.out, watch)
	return err
}

// Multi announces on every member in order. All members are tried; their
// errors are joined.
type Multi struct {
	members []Announcer
}

func (m *Multi) Add(a Announcer) { m.members = append(m.members, a) }

func (m *Multi) Len() int { return len(m.members) }

func (m *Multi) Announce(ctx context.Context, watch string) error {
	var errs []error
	for _, a := range m.members {
		if err := a.Announce(ctx, watch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every member that holds a connection.
func (m *Multi) Close() error {
	var errs []error
	for _, a := range m.members {
		if c, ok := a.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

type bestEffort struct {
	name string
	a    Announcer
	log  logx.Logger
}

// BestEffort logs a's failures instead of returning them, so a flaky network
// never stops the clock.
func BestEffort(name string, a Announcer, log logx.Logger) Announcer {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &bestEffort{name: name, a: a, log: log}
}

func (b *bestEffort) Announce(ctx context.Context, watch string) error {
	start := time.Now()
	if err := b.a.Announce(ctx, watch); err != nil {
		b.log.Warn("announce failed",
			logx.String("via", b.name),
			logx.String("watch", watch),
			logx.Duration("took", time.Since(start)),
			logx.Err(err),
		)
	}
	return nil
}

func (b *bestEffort) Close() error {
	if c, ok := b.a.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
