package market

import (
	"errors"
	"fmt"
	"time"
)

// ErrInsufficientData marks an expected transient condition: not enough assets
// for the requested tier count, or a rolling window that has not filled yet.
// Callers suppress signal emission but keep the run going.
var ErrInsufficientData = errors.New("insufficient data")

// ValidationError reports a malformed snapshot. The offending snapshot is
// skipped and logged; the run continues with the next one.
type ValidationError struct {
	Timestamp time.Time
	Field     string
	Reason    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid snapshot at %s: %s: %s",
		e.Timestamp.Format(time.RFC3339), e.Field, e.Reason)
}

// ConfigError reports an invalid run configuration. Fatal at startup, before
// any snapshot is processed.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a snapshot validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
