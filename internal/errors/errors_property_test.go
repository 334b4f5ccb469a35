package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestTimeoutClassificationProperty checks that timeout wrapping survives
// arbitrary message content and further wrapping layers.
func TestTimeoutClassificationProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("NewTimeoutf is always a timeout", prop.ForAll(
		func(message string) bool {
			err := NewTimeoutf("%s", message)
			return IsTimeout(err) && IsTransient(err)
		},
		gen.AlphaString(),
	))

	properties.Property("wrapping preserves timeout detection", prop.ForAll(
		func(message string, layers int) bool {
			err := NewTimeoutf("%s", message)
			for i := 0; i < layers; i++ {
				err = fmt.Errorf("layer %d: %w", i, err)
			}
			return IsTimeout(err)
		},
		gen.AlphaString(),
		gen.IntRange(0, 5),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// TestClassificationExclusivityProperty checks that transient and permanent
// markings never both hold for the same constructed error.
func TestClassificationExclusivityProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("transient and permanent are mutually exclusive", prop.ForAll(
		func(message string, transient bool) bool {
			var err error
			if transient {
				err = NewTransientf("%s", message)
			} else {
				err = NewPermanentf("%s", message)
			}
			return IsTransient(err) != IsPermanent(err)
		},
		gen.AlphaString(),
		gen.Bool(),
	))

	properties.Property("nil constructors return nil", prop.ForAll(
		func() bool {
			return NewTransient(nil) == nil && NewPermanent(nil) == nil
		},
	))

	properties.Property("cause is recoverable via Unwrap", prop.ForAll(
		func(message string) bool {
			cause := errors.New(message)
			return errors.Unwrap(NewTransient(cause)) == cause &&
				errors.Unwrap(NewPermanent(cause)) == cause
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
