package app

import (
	"fmt"
	"strings"

	"shipsbell/internal/announce"
	"shipsbell/internal/audio"
	"shipsbell/internal/bells"
	"shipsbell/internal/config"
	"shipsbell/internal/logbook"
	"shipsbell/internal/shipclock"
	"shipsbell/internal/task/recurrence"
	logx "shipsbell/pkg/logx"
)

// The mappers assume cfg passed config.Validate.

func LoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func ClockConfig(cfg *config.Config) (shipclock.Config, error) {
	table, err := cfg.WatchTable()
	if err != nil {
		return shipclock.Config{}, err
	}
	margin, err := config.ParseDurationOrDefault("clock.startup_margin", cfg.Clock.StartupMargin, shipclock.DefaultStartupMargin)
	if err != nil {
		return shipclock.Config{}, err
	}
	overdue, err := config.ParseDurationOrDefault("clock.overdue_after", cfg.Clock.OverdueAfter, recurrence.DefaultGrace)
	if err != nil {
		return shipclock.Config{}, err
	}
	return shipclock.Config{
		StartupMargin: margin,
		OverdueAfter:  overdue,
		Policy:        bells.Policy{NoEightBellsInDogWatch: cfg.Clock.NoEightBellsInDogWatch},
		Watches:       table,
	}, nil
}

func AudioConfig(cfg *config.Config) (audio.Config, error) {
	b := cfg.Bells
	mode, err := bells.ParseComposition(b.Composition)
	if err != nil {
		return audio.Config{}, err
	}
	return audio.Config{
		Player:      b.Player,
		Composition: mode,
		SoundDir:    b.SoundDir,
		SoundName:   b.SoundName,
		Gap:         config.MustDuration(b.Gap, audio.DefaultGap),
		Command:     b.Command,
		GPIO: audio.GPIOConfig{
			Chip:      b.GPIO.Chip,
			Line:      b.GPIO.Line,
			Pulse:     config.MustDuration(b.GPIO.Pulse, audio.DefaultPulse),
			Gap:       config.MustDuration(b.GPIO.Gap, audio.DefaultStrikeGap),
			DoubleGap: config.MustDuration(b.GPIO.DoubleGap, audio.DefaultDoubleGap),
		},
	}, nil
}

func AnnounceConfig(cfg *config.Config) announce.Config {
	a := cfg.Announce
	return announce.Config{
		Console: a.Console,
		MQTT: announce.MQTTConfig{
			Enabled:  a.MQTT.Enabled,
			Broker:   a.MQTT.Broker,
			Topic:    a.MQTT.Topic,
			ClientID: a.MQTT.ClientID,
			QoS:      byte(a.MQTT.QoS),
			Retained: a.MQTT.Retained,
		},
		Telegram: announce.TelegramConfig{
			Enabled:    a.Telegram.Enabled,
			Token:      a.Telegram.Token,
			ChatID:     a.Telegram.ChatID,
			ThreadID:   a.Telegram.ThreadID,
			RatePerSec: a.Telegram.RatePerSec,
		},
	}
}

// LogbookConfig reports enabled=false for driver none or empty.
func LogbookConfig(cfg *config.Config) (logbook.Config, bool, error) {
	lb := cfg.Logbook
	driver := strings.ToLower(strings.TrimSpace(lb.Driver))
	switch driver {
	case "", "none":
		return logbook.Config{}, false, nil
	case "file", "sqlite", "sqlite3":
	default:
		return logbook.Config{}, false, fmt.Errorf("unknown logbook.driver: %s", lb.Driver)
	}
	busy, err := config.ParseDurationOrDefault("logbook.busy_timeout", lb.BusyTimeout, 0)
	if err != nil {
		return logbook.Config{}, false, err
	}
	return logbook.Config{Driver: driver, Path: strings.TrimSpace(lb.Path), BusyTimeout: busy}, true, nil
}
