package audio

import (
	"context"
	"errors"
	"fmt"
	"time"

	logx "shipsbell/pkg/logx"
)

// GPIOConfig drives a solenoid bell striker from one output line.
type GPIOConfig struct {
	Chip  string
	Line  int
	Pulse time.Duration
	// Gap separates pairs of strikes; DoubleGap separates the two strikes
	// of a pair.
	Gap       time.Duration
	DoubleGap time.Duration
}

const (
	DefaultChip      = "gpiochip0"
	DefaultPulse     = 80 * time.Millisecond
	DefaultStrikeGap = 600 * time.Millisecond
	DefaultDoubleGap = 250 * time.Millisecond
)

// outputLine is the part of a GPIO line the striker drives.
type outputLine interface {
	SetValue(v int) error
	Close() error
}

// Striker pulses a GPIO line once per bell, grouping strikes in pairs.
type Striker struct {
	cfg  GPIOConfig
	line outputLine
	log  logx.Logger
}

// NewStriker requests the configured line as an output, initially low.
func NewStriker(cfg GPIOConfig, log logx.Logger) (*Striker, error) {
	cfg = cfg.withDefaults()
	line, err := openOutput(cfg.Chip, cfg.Line)
	if err != nil {
		return nil, err
	}
	return newStriker(cfg, line, log), nil
}

func newStriker(cfg GPIOConfig, line outputLine, log logx.Logger) *Striker {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Striker{cfg: cfg.withDefaults(), line: line, log: log}
}

func (c GPIOConfig) withDefaults() GPIOConfig {
	if c.Chip == "" {
		c.Chip = DefaultChip
	}
	if c.Pulse <= 0 {
		c.Pulse = DefaultPulse
	}
	if c.Gap <= 0 {
		c.Gap = DefaultStrikeGap
	}
	if c.DoubleGap <= 0 {
		c.DoubleGap = DefaultDoubleGap
	}
	return c
}

func (s *Striker) PlayBells(ctx context.Context, n int) error {
	if n <= 0 {
		return fmt.Errorf("no strike sequence for %d bells", n)
	}
	s.log.Debug("striking", logx.Int("bells", n), logx.String("chip", s.cfg.Chip), logx.Int("line", s.cfg.Line))
	for i := 0; i < n; i++ {
		if err := s.strike(ctx); err != nil {
			return err
		}
		if i == n-1 {
			break
		}
		wait := s.cfg.Gap
		if i%2 == 0 {
			wait = s.cfg.DoubleGap
		}
		if err := pause(ctx, wait); err != nil {
			return err
		}
	}
	return nil
}

func (s *Striker) strike(ctx context.Context) error {
	if err := s.line.SetValue(1); err != nil {
		return fmt.Errorf("gpio set high: %w", err)
	}
	perr := pause(ctx, s.cfg.Pulse)
	// The solenoid must never be left energized.
	if err := s.line.SetValue(0); err != nil {
		return errors.Join(perr, fmt.Errorf("gpio set low: %w", err))
	}
	return perr
}

func (s *Striker) Close() error {
	if s.line == nil {
		return nil
	}
	return s.line.Close()
}
