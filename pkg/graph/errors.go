package graph

import (
	"fmt"
)

// ConfigurationError is returned when a connection parameter cannot be resolved
// or names something this build does not support.
type ConfigurationError struct {
	Param  string
	EnvVar string
	Msg    string
}

func (e *ConfigurationError) Error() string {
	if e.EnvVar != "" {
		return fmt.Sprintf("configuration error: %s: %s (pass it explicitly or set %s)", e.Param, e.Msg, e.EnvVar)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Param, e.Msg)
}

// QueryError wraps a backend rejection of a statement, such as a syntax error.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("generated statement is not valid\n%s\n%v", e.Query, e.Err)
}

// Cause returns the backend error, for github.com/pkg/errors
func (e *QueryError) Cause() error { return e.Err }

func (e *QueryError) Unwrap() error { return e.Err }
