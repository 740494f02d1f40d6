package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"shipsbell/internal/bells"
	logx "shipsbell/pkg/logx"
)

type runFunc func(ctx context.Context, name string, args ...string) error

// Exec plays recordings by running an external command (paplay, aplay, afplay)
// with the recording's path as the last argument.
type Exec struct {
	command []string
	dir     string
	name    string
	seqs    map[int][]bells.Strike
	log     logx.Logger
	run     runFunc
}

// NewExec checks that every recording the composition needs exists on fs.
func NewExec(cfg Config, fs afero.Fs, log logx.Logger) (*Exec, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if len(cfg.Command) == 0 || strings.TrimSpace(cfg.Command[0]) == "" {
		return nil, errors.New("exec player: command is required")
	}
	name := cfg.SoundName
	if strings.TrimSpace(name) == "" {
		name = DefaultSoundName
	}
	if !strings.Contains(name, "%d") {
		return nil, fmt.Errorf("exec player: sound_name %q must contain %%d", name)
	}
	gap := cfg.Gap
	if gap <= 0 {
		gap = DefaultGap
	}
	e := &Exec{
		command: append([]string(nil), cfg.Command...),
		dir:     cfg.SoundDir,
		name:    name,
		seqs:    bells.Sequences(cfg.Composition, gap),
		log:     log,
		run:     runCommand,
	}
	if err := e.validate(fs, bells.Sounds(cfg.Composition)); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Exec) path(sound int) string {
	return filepath.Join(e.dir, fmt.Sprintf(e.name, sound))
}

func (e *Exec) validate(fs afero.Fs, sounds []int) error {
	var missing []string
	for _, s := range sounds {
		p := e.path(s)
		ok, err := afero.Exists(fs, p)
		if err != nil {
			return fmt.Errorf("exec player: stat %s: %w", p, err)
		}
		if !ok {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("exec player: missing recordings: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (e *Exec) PlayBells(ctx context.Context, n int) error {
	seq, err := sequenceFor(e.seqs, n)
	if err != nil {
		return err
	}
	for i, s := range seq {
		args := append(append([]string(nil), e.command[1:]...), e.path(s.Sound))
		e.log.Debug("play", logx.String("cmd", e.command[0]), logx.String("file", args[len(args)-1]))
		if err := e.run(ctx, e.command[0], args...); err != nil {
			return fmt.Errorf("play %s: %w", e.path(s.Sound), err)
		}
		if i < len(seq)-1 {
			if err := pause(ctx, s.Hold); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Exec) Close() error { return nil }

func runCommand(ctx context.Context, name string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
