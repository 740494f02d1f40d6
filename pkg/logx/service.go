package logx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const defaultLogFile = "./shipsbell.log"

type Config struct {
	Level   string
	Console bool
	File    FileConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

// Service owns the process log sinks. Loggers it hands out pick up a new
// level or sink set as soon as Apply returns.
type Service struct {
	mu   sync.Mutex // serializes Apply and Close
	file *os.File
	// retired is the file replaced by the last Apply. Loggers loaded before
	// that swap may still write to it, so it stays open one more round.
	retired *os.File

	root atomic.Pointer[zerolog.Logger]
}

// New builds the service from cfg. A log file that cannot be opened is
// reported on the console logger and otherwise ignored.
func New(cfg Config) (*Service, Logger) {
	setGlobals()
	s := &Service{}
	if err := s.Apply(cfg); err != nil {
		s.Logger().Warn("log file disabled", Err(err))
	}
	return s, s.Logger()
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

func (s *Service) current() *zerolog.Logger {
	if zl := s.root.Load(); zl != nil {
		return zl
	}
	return &disabled
}

// Apply swaps level and sinks. If the log file cannot be opened the console
// still gets the new level and the error is returned.
func (s *Service) Apply(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		writers []io.Writer
		file    *os.File
		fileErr error
	)
	if cfg.Console {
		writers = append(writers, newConsoleWriter(Stderr()))
	}
	if cfg.File.Enabled {
		file, fileErr = openLogFile(cfg.File.Path)
		if fileErr == nil {
			writers = append(writers, zerolog.SyncWriter(file))
		}
	}
	if len(writers) == 0 {
		writers = append(writers, newConsoleWriter(Stderr()))
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(parseLevel(cfg.Level, zerolog.InfoLevel)).
		With().Timestamp().Logger()
	s.root.Store(&zl)

	if s.retired != nil {
		_ = s.retired.Close()
	}
	s.retired, s.file = s.file, file
	return fileErr
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, f := range []*os.File{s.retired, s.file} {
		if f != nil {
			errs = append(errs, f.Close())
		}
	}
	s.retired, s.file = nil, nil
	return errors.Join(errs...)
}

func openLogFile(path string) (*os.File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultLogFile
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("log dir %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

func newConsoleWriter(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: consoleTimeFormat,
		// Caller is already short (file:line).
		FormatCaller: func(i any) string {
			s, _ := i.(string)
			return s
		},
	}
}

// Stderr is where console sinks write.
func Stderr() io.Writer { return os.Stderr }
