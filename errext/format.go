// Package errext contains extensions for normal Go errors that are used in conductor.
package errext

import (
	"errors"
)

// Format formats the given error as a message (string) and a map of fields,
// ready to be passed to logrus' WithFields.
// In case of [HasHint], it adds the hint as a field.
// In case of [HasExitCode], it adds the exit code as a field too, so the
// cause of a non-zero exit shows up in the final log line.
func Format(err error) (string, map[string]interface{}) {
	if err == nil {
		return "", nil
	}

	fields := make(map[string]interface{})
	var herr HasHint
	if errors.As(err, &herr) {
		fields["hint"] = herr.Hint()
	}
	var ecerr HasExitCode
	if errors.As(err, &ecerr) {
		fields["exit_code"] = ecerr.ExitCode()
	}

	return err.Error(), fields
}
