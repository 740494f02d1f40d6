// Package audio renders a chime count as sound or as pulses on a bell striker.
package audio

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/afero"

	"shipsbell/internal/bells"
	logx "shipsbell/pkg/logx"
)

// Player strikes n bells and returns once the sequence has finished.
type Player interface {
	PlayBells(ctx context.Context, count int) error
	Close() error
}

// Config selects and configures a player.
type Config struct {
	// Player is one of "log", "exec", "gpio" or "none".
	Player      string
	Composition bells.Composition
	SoundDir    string
	// SoundName is a fmt pattern taking the recording's strike count.
	SoundName string
	Gap       time.Duration
	Command   []string
	GPIO      GPIOConfig
}

const (
	DefaultSoundName = "%dbells.ogg"
	DefaultGap       = 100 * time.Millisecond
)

// New builds the configured player. Exec players check their recordings on
// the real filesystem.
func New(cfg Config, log logx.Logger) (Player, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "audio"))

	switch strings.ToLower(strings.TrimSpace(cfg.Player)) {
	case "", "log":
		return NewLog(cfg.Composition, cfg.Gap, log), nil
	case "none":
		return Nop{}, nil
	case "exec":
		return NewExec(cfg, afero.NewOsFs(), log)
	case "gpio":
		return NewStriker(cfg.GPIO, log)
	default:
		return nil, fmt.Errorf("unknown bell player %q", cfg.Player)
	}
}

// Nop plays nothing.
type Nop struct{}

func (Nop) PlayBells(context.Context, int) error { return nil }
func (Nop) Close() error                          { return nil }

// Log writes the strike sequence to the log instead of playing it.
type Log struct {
	log  logx.Logger
	seqs map[int][]bells.Strike
}

func NewLog(mode bells.Composition, gap time.Duration, log logx.Logger) *Log {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Log{log: log, seqs: bells.Sequences(mode, gap)}
}

func (l *Log) PlayBells(ctx context.Context, n int) error {
	seq, err := sequenceFor(l.seqs, n)
	if err != nil {
		return err
	}
	sounds := make([]int, 0, len(seq))
	for _, s := range seq {
		sounds = append(sounds, s.Sound)
	}
	l.log.Info(strings.TrimSpace(strings.Repeat("ding ", n)), logx.Int("bells", n), logx.Any("strikes", sounds))
	return ctx.Err()
}

func (l *Log) Close() error { return nil }

func sequenceFor(seqs map[int][]bells.Strike, n int) ([]bells.Strike, error) {
	seq, ok := seqs[n]
	if !ok || len(seq) == 0 {
		return nil, fmt.Errorf("no strike sequence for %d bells", n)
	}
	return seq, nil
}

// pause waits d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
