//go:build !linux

package audio

import "errors"

func openOutput(string, int) (outputLine, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}
