//go:build linux

package audio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

type cdevLine struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

func openOutput(chipName string, offset int) (outputLine, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}
	line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request gpio line %d: %w", offset, err)
	}
	return &cdevLine{chip: chip, line: line}, nil
}

func (l *cdevLine) SetValue(v int) error { return l.line.SetValue(v) }

// Close drops the line back to an input with pull-down before releasing it.
func (l *cdevLine) Close() error {
	var errs []error
	if l.line != nil {
		if err := l.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line: %w", err))
		}
		if err := l.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line: %w", err))
		}
	}
	if l.chip != nil {
		if err := l.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
