package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/hitwatch/internal/model"
)

// ErrUnavailable indicates that the source element or endpoint was missing
// or could not be parsed. The pipeline treats it as "zero records".
var ErrUnavailable = errors.New("extraction unavailable")

// AuthChallengeError indicates that the source answered with a sign-in or
// CAPTCHA page instead of task data.
type AuthChallengeError struct {
	Source string
	Marker string
}

func (e *AuthChallengeError) Error() string {
	return fmt.Sprintf("auth challenge (%s): matched %q", e.Source, e.Marker)
}

// IsAuthChallenge reports whether err (or any error in its chain) is an
// AuthChallengeError.
func IsAuthChallenge(err error) bool {
	var challenge *AuthChallengeError
	return errors.As(err, &challenge)
}

// Unavailable wraps a cause as ErrUnavailable.
func Unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, fmt.Sprintf(format, args...))
}

// Status is the outcome of one extraction, derived from its error.
type Status int

const (
	StatusOK Status = iota
	StatusUnavailable
	StatusBlocked
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnavailable:
		return "unavailable"
	case StatusBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Classify maps an extraction error onto a Status. Any error that is not an
// auth challenge counts as unavailable.
func Classify(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case IsAuthChallenge(err):
		return StatusBlocked
	default:
		return StatusUnavailable
	}
}

// Extractor defines the contract every task data source implements.
type Extractor interface {
	// Name identifies the extractor in logs and status text.
	Name() string

	// Extract reads the current source state and returns the records it
	// holds, in source order. It never panics on malformed input; failures
	// are returned as ErrUnavailable or *AuthChallengeError.
	Extract(ctx context.Context) ([]model.TaskRecord, error)
}

// AcceptedOnly returns the records whose state matches one of states.
// Order is preserved.
func AcceptedOnly(records []model.TaskRecord, states []string) []model.TaskRecord {
	out := make([]model.TaskRecord, 0, len(records))
	for _, r := range records {
		if r.HasState(states) {
			out = append(out, r)
		}
	}
	return out
}
