package config

import "fmt"

// Configuration sources, from the lowest to the highest precedence.
const (
	SourceDefaults = "defaults"
	SourcePerTest  = "per-test"
	SourceExternal = "external"
)

// Error is returned when a per-test or external configuration value cannot
// be coerced to the type of its field. It is fatal at setup time.
type Error struct {
	Source string
	Key    string
	Value  string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s configuration value %q for %q: %v", e.Source, e.Value, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
