package issue

import (
	"errors"
	"fmt"
)

// Exit statuses of the bankproc binary.
const (
	ExitOK                    = 0
	ExitFailure               = 1
	ExitInputNotFound         = 2
	ExitNoConfigsDiscovered   = 3
	ExitParameterParseFailure = 4
	ExitStreamReadFailure     = 5
)

// ErrNoConfigsDiscovered matches any *NoConfigsError.
var ErrNoConfigsDiscovered = errors.New("no configuration entries discovered")

type (
	// InputNotFoundError reports an input path that is neither a file nor a
	// directory.
	InputNotFoundError struct {
		Path string
	}

	// NoConfigsError reports that deduplication left no canonical entries.
	NoConfigsError struct {
		Archives int
	}

	// ParseFailureError reports a configuration entry the parameter parser
	// rejected.
	ParseFailureError struct {
		Entry   string
		Archive string
		Cause   error
	}

	// StreamReadError reports a configuration entry whose bytes could not be
	// read from its bank.
	StreamReadError struct {
		Entry   string
		Archive string
		Cause   error
	}

	// ConfigError reports an invalid run configuration.
	ConfigError struct {
		Cause error
	}
)

func (e *InputNotFoundError) Error() string {
	return fmt.Sprintf("input %q does not exist", e.Path)
}

func (e *NoConfigsError) Error() string {
	return fmt.Sprintf("%s in %d archive(s)", ErrNoConfigsDiscovered, e.Archives)
}

func (e *NoConfigsError) Is(target error) bool {
	return target == ErrNoConfigsDiscovered
}

func (e *ParseFailureError) Error() string {
	return fmt.Sprintf("failed to parse %s (in %s): %v", e.Entry, e.Archive, e.Cause)
}

func (e *ParseFailureError) Unwrap() error {
	return e.Cause
}

func (e *StreamReadError) Error() string {
	return fmt.Sprintf("failed to read %s (in %s): %v", e.Entry, e.Archive, e.Cause)
}

func (e *StreamReadError) Unwrap() error {
	return e.Cause
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %v", e.Cause)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// IdOf returns the issue matching the first taxonomy error in err's chain.
func IdOf(err error) (Id, bool) {
	var (
		notFound  *InputNotFoundError
		noConfigs *NoConfigsError
		parse     *ParseFailureError
		stream    *StreamReadError
		cfg       *ConfigError
	)
	switch {
	case errors.As(err, &notFound):
		return InputNotFoundId, true
	case errors.As(err, &noConfigs):
		return NoConfigsDiscoveredId, true
	case errors.As(err, &parse):
		return ParameterParseFailureId, true
	case errors.As(err, &stream):
		return StreamReadFailureId, true
	case errors.As(err, &cfg):
		return ConfigLoadFailedId, true
	}
	return 0, false
}

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	id, ok := IdOf(err)
	if !ok {
		return ExitFailure
	}
	switch id {
	case InputNotFoundId:
		return ExitInputNotFound
	case NoConfigsDiscoveredId:
		return ExitNoConfigsDiscovered
	case ParameterParseFailureId:
		return ExitParameterParseFailure
	case StreamReadFailureId:
		return ExitStreamReadFailure
	default:
		return ExitFailure
	}
}
