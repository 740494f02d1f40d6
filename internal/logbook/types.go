package logbook

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "shipsbell/pkg/logx"
)

var ErrClosed = errors.New("logbook closed")

// Entry kinds.
const (
	KindBell     = "bell"
	KindWithheld = "withheld"
	KindWatch    = "watch"
	KindOverdue  = "overdue"
)

// Entry is one line in the logbook. Keep it compact and schema-stable.
type Entry struct {
	At     time.Time `json:"at"`
	Due    time.Time `json:"due"`
	Kind   string    `json:"kind"`
	Event  string    `json:"event,omitempty"`
	Chimes int       `json:"chimes,omitempty"`
	Watch  string    `json:"watch,omitempty"`
	LateMS int64     `json:"late_ms,omitempty"`
}

// Config configures the logbook.
//
// If Driver is empty or "none", the logbook is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

type Store interface {
	Append(ctx context.Context, e Entry) error
	// Recent returns up to n entries, oldest first.
	Recent(ctx context.Context, n int) ([]Entry, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if the logbook is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown logbook driver: " + driver)
	}
}
