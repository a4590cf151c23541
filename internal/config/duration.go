package config

import (
	"fmt"
	"time"

	"github.com/conn-castle/dextctl/internal/messages"
)

// Duration is a time.Duration that decodes from TOML strings such as "90s" or "5m".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf(messages.ConfigInvalidDurationFmt, string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText renders the duration in Go syntax.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
