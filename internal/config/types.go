package config

// Config is the on-disk configuration. Durations are Go duration strings
// ("10s", "30m") and are checked by Validate.
type Config struct {
	Clock    ClockConfig    `json:"clock"`
	Watches  []WatchConfig  `json:"watches,omitempty"`
	Bells    BellsConfig    `json:"bells"`
	Announce AnnounceConfig `json:"announce"`
	Logbook  LogbookConfig  `json:"logbook"`
	Logging  LoggingConfig  `json:"logging"`
	Systemd  SystemdConfig  `json:"systemd"`
}

type ClockConfig struct {
	StartupMargin string `json:"startup_margin,omitempty"`
	OverdueAfter  string `json:"overdue_after,omitempty"`

	// NoEightBellsInDogWatch silences the bell at 20:00.
	NoEightBellsInDogWatch bool `json:"no_eight_bells_in_dog_watch,omitempty"`
}

// WatchConfig is one row of the watch table: hours [start,end).
type WatchConfig struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Name  string `json:"name"`
}

type BellsConfig struct {
	// Player is one of log, exec, gpio, none.
	Player      string     `json:"player"`
	Composition string     `json:"composition,omitempty"`
	SoundDir    string     `json:"sound_dir,omitempty"`
	SoundName   string     `json:"sound_name,omitempty"`
	Gap         string     `json:"gap,omitempty"`
	Command     []string   `json:"command,omitempty"`
	GPIO        GPIOConfig `json:"gpio"`
}

type GPIOConfig struct {
	Chip      string `json:"chip,omitempty"`
	Line      int    `json:"line"`
	Pulse     string `json:"pulse,omitempty"`
	Gap       string `json:"gap,omitempty"`
	DoubleGap string `json:"double_gap,omitempty"`
}

type AnnounceConfig struct {
	Console  bool                   `json:"console"`
	MQTT     MQTTAnnounceConfig     `json:"mqtt"`
	Telegram TelegramAnnounceConfig `json:"telegram"`
}

type MQTTAnnounceConfig struct {
	Enabled  bool   `json:"enabled"`
	Broker   string `json:"broker,omitempty"`
	Topic    string `json:"topic,omitempty"`
	ClientID string `json:"client_id,omitempty"`
	QoS      int    `json:"qos,omitempty"`
	Retained bool   `json:"retained,omitempty"`
}

type TelegramAnnounceConfig struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token,omitempty"` // never logged
	ChatID     int64  `json:"chat_id,omitempty"`
	ThreadID   int    `json:"thread_id,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// LogbookConfig: driver is file, sqlite or none.
type LogbookConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type SystemdConfig struct {
	Notify bool `json:"notify"`
}

// Default returns the configuration used for every key a file leaves out.
func Default() *Config {
	return &Config{
		Clock: ClockConfig{StartupMargin: "10s", OverdueAfter: "30m"},
		Bells: BellsConfig{
			Player:      "log",
			Composition: "individual",
			SoundDir:    "sounds",
			SoundName:   "%dbells.ogg",
			Gap:         "100ms",
			Command:     []string{"paplay"},
			GPIO: GPIOConfig{
				Chip:      "gpiochip0",
				Line:      17,
				Pulse:     "80ms",
				Gap:       "600ms",
				DoubleGap: "250ms",
			},
		},
		Announce: AnnounceConfig{
			Console:  true,
			MQTT:     MQTTAnnounceConfig{Topic: "shipsbell/watch", ClientID: "shipsbell"},
			Telegram: TelegramAnnounceConfig{RatePerSec: 1},
		},
		Logbook: LogbookConfig{Driver: "file", Path: "./logbook.jsonl", BusyTimeout: "1s"},
		Logging: LoggingConfig{Level: "info", Console: true, File: LoggingFile{Path: "./shipsbell.log"}},
		Systemd: SystemdConfig{Notify: true},
	}
}
