package config

import (
	"reflect"
	"strings"

	logx "shipsbell/pkg/logx"
)

// LiveSections are applied without a restart.
var LiveSections = map[string]bool{"logging": true}

// SummarizeConfigChange returns the changed top-level sections and safe
// attrs for logging. Tokens are never included.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	sections := []struct {
		name     string
		old, new any
	}{
		{"clock", oldCfg.Clock, newCfg.Clock},
		{"watches", oldCfg.Watches, newCfg.Watches},
		{"bells", oldCfg.Bells, newCfg.Bells},
		{"announce", oldCfg.Announce, newCfg.Announce},
		{"logbook", oldCfg.Logbook, newCfg.Logbook},
		{"logging", oldCfg.Logging, newCfg.Logging},
		{"systemd", oldCfg.Systemd, newCfg.Systemd},
	}

	var changed []string
	var attrs []logx.Field
	for _, s := range sections {
		if reflect.DeepEqual(s.old, s.new) {
			continue
		}
		changed = append(changed, s.name)
		switch s.name {
		case "logging":
			attrs = append(attrs,
				logx.String("logging.level", newCfg.Logging.Level),
				logx.Bool("logging.console", newCfg.Logging.Console),
				logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			)
		case "bells":
			attrs = append(attrs,
				logx.String("bells.player", newCfg.Bells.Player),
				logx.String("bells.composition", newCfg.Bells.Composition),
			)
		case "announce":
			attrs = append(attrs,
				logx.Bool("announce.mqtt", newCfg.Announce.MQTT.Enabled),
				logx.Bool("announce.telegram", newCfg.Announce.Telegram.Enabled),
				logx.Bool("announce.telegram_token_set", strings.TrimSpace(newCfg.Announce.Telegram.Token) != ""),
			)
		}
	}
	return changed, attrs
}

// RestartRequired filters sections down to those that only take effect on
// restart.
func RestartRequired(sections []string) []string {
	var out []string
	for _, s := range sections {
		if !LiveSections[s] {
			out = append(out, s)
		}
	}
	return out
}
