package domain

import (
	"errors"
	"fmt"
)

// Resolution stages, reported in per-item errors so callers can tell where a
// location string fell out of the pipeline.
const (
	StageParser       = "DirectionalParser"
	StageNameResolver = "NameResolver"
	StageGridFilter   = "SpatialGridFilter"
	StageAggregator   = "HierarchyAggregator"
)

// Failure reasons.
const (
	ReasonNoMatch           = "no_match"
	ReasonEmptyGeometry     = "empty_geometry"
	ReasonInvalidDirection  = "invalid_direction"
	ReasonOracleUnavailable = "oracle_unavailable"
)

// ResolutionError is a per-item failure. One bad location string never
// aborts the rest of the batch; these accumulate into the response's errors
// list instead.
type ResolutionError struct {
	Stage      string
	Reason     string
	Input      string
	Suggestion string // closest fuzzy near-miss, when available
	Err        error
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("%s: %s for %q", e.Stage, e.Reason, e.Input)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// NoMatch builds the error for a name that exhausted every resolution stage.
func NoMatch(input, suggestion string) *ResolutionError {
	return &ResolutionError{Stage: StageNameResolver, Reason: ReasonNoMatch, Input: input, Suggestion: suggestion}
}

// EmptyGeometry builds the error for a directional query over degenerate or
// missing base polygons. Callers recover by retrying name-only matching.
func EmptyGeometry(input string) *ResolutionError {
	return &ResolutionError{Stage: StageGridFilter, Reason: ReasonEmptyGeometry, Input: input}
}

// InvalidDirection builds the strict-mode error for a direction-like token
// that fails the closed vocabulary.
func InvalidDirection(token string) *ResolutionError {
	return &ResolutionError{Stage: StageParser, Reason: ReasonInvalidDirection, Input: token}
}

// IsEmptyGeometry reports whether err is an EmptyGeometry resolution error.
func IsEmptyGeometry(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re) && re.Reason == ReasonEmptyGeometry
}

// IsNoMatch reports whether err is a NoMatch resolution error.
func IsNoMatch(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re) && re.Reason == ReasonNoMatch
}
