package config

import (
	"errors"
	"fmt"
	"strings"

	"shipsbell/internal/bells"
	"shipsbell/internal/watch"
	logx "shipsbell/pkg/logx"
)

// Validate reports every problem in cfg at once. A broken watch table is
// returned as a *watch.ConfigError inside the joined error.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	durations := []struct{ path, raw string }{
		{"clock.startup_margin", cfg.Clock.StartupMargin},
		{"clock.overdue_after", cfg.Clock.OverdueAfter},
		{"bells.gap", cfg.Bells.Gap},
		{"bells.gpio.pulse", cfg.Bells.GPIO.Pulse},
		{"bells.gpio.gap", cfg.Bells.GPIO.Gap},
		{"bells.gpio.double_gap", cfg.Bells.GPIO.DoubleGap},
		{"logbook.busy_timeout", cfg.Logbook.BusyTimeout},
	}
	for _, d := range durations {
		_, err := ParseDurationField(d.path, d.raw)
		add(err)
	}

	if _, err := cfg.WatchTable(); err != nil {
		add(fmt.Errorf("watches: %w", err))
	}

	switch p := strings.ToLower(strings.TrimSpace(cfg.Bells.Player)); p {
	case "", "log", "none", "gpio":
	case "exec":
		if len(cfg.Bells.Command) == 0 || strings.TrimSpace(cfg.Bells.Command[0]) == "" {
			add(errors.New("bells.command: required for the exec player"))
		}
		if !strings.Contains(cfg.Bells.SoundName, "%d") {
			add(fmt.Errorf("bells.sound_name: %q must contain %%d", cfg.Bells.SoundName))
		}
	default:
		add(fmt.Errorf("bells.player: unknown player %q", cfg.Bells.Player))
	}
	if _, err := bells.ParseComposition(cfg.Bells.Composition); err != nil {
		add(fmt.Errorf("bells.composition: %w", err))
	}
	if cfg.Bells.GPIO.Line < 0 {
		add(errors.New("bells.gpio.line: must be >= 0"))
	}

	if m := cfg.Announce.MQTT; m.Enabled {
		if strings.TrimSpace(m.Broker) == "" {
			add(errors.New("announce.mqtt.broker: required when enabled"))
		}
		if m.QoS < 0 || m.QoS > 2 {
			add(fmt.Errorf("announce.mqtt.qos: %d not in [0,2]", m.QoS))
		}
	}
	if tg := cfg.Announce.Telegram; tg.Enabled {
		if strings.TrimSpace(tg.Token) == "" {
			add(errors.New("announce.telegram.token: required when enabled"))
		}
		if tg.ChatID == 0 {
			add(errors.New("announce.telegram.chat_id: required when enabled"))
		}
	}
	if cfg.Announce.Telegram.RatePerSec < 0 {
		add(errors.New("announce.telegram.rate_per_sec: must be >= 0"))
	}

	switch d := strings.ToLower(strings.TrimSpace(cfg.Logbook.Driver)); d {
	case "", "none":
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Logbook.Path) == "" {
			add(fmt.Errorf("logbook.path: required for driver %q", d))
		}
	default:
		add(fmt.Errorf("logbook.driver: unknown driver %q", cfg.Logbook.Driver))
	}

	if !logx.ValidLevel(cfg.Logging.Level) {
		add(fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}

	return errors.Join(errs...)
}

// WatchTable builds the configured table, or the default one when no
// watches are listed.
func (c *Config) WatchTable() (watch.Table, error) {
	if len(c.Watches) == 0 {
		return watch.Default(), nil
	}
	ranges := make([]watch.Range, 0, len(c.Watches))
	for _, w := range c.Watches {
		ranges = append(ranges, watch.Range{Start: w.Start, End: w.End, Name: strings.TrimSpace(w.Name)})
	}
	return watch.New(ranges)
}
