package quiz

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrEmptyRoster is returned when no peer could be found in the directory.
	ErrEmptyRoster = errors.New("no peers found")
	// ErrUnknownTransition means a broadcast carried a tag this peer does not
	// understand, most likely because the sender runs another protocol version.
	ErrUnknownTransition = errors.New("unknown transition")
	// ErrMalformedInput is returned for question or answer input that is not an integer.
	ErrMalformedInput = errors.New("malformed input")
)

// ParseAnswer parses a numeric answer typed by a player.
func ParseAnswer(text string) (int64, error) {
	text = strings.TrimSpace(text)
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrMalformedInput, text)
	}
	return n, nil
}
