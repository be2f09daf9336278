package routes

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is matched (errors.Is) by every ConfigurationError.
	ErrConfiguration = errors.New("invalid aggregator configuration")

	// ErrInvalidObservation is matched (errors.Is) by every InvalidObservationError.
	ErrInvalidObservation = errors.New("invalid observation")
)

// ConfigurationError reports an aggregator option that cannot be used.
// It is returned at construction (or merge) time and is never recovered internally.
type ConfigurationError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%v: %s=%g %s", ErrConfiguration, e.Field, e.Value, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// InvalidObservationError reports an observation whose position is outside
// the valid latitude/longitude ranges. The observation is skipped; the
// aggregator remains usable.
type InvalidObservationError struct {
	Latitude  float64
	Longitude float64
}

func (e *InvalidObservationError) Error() string {
	return fmt.Sprintf("%v: position (%g, %g) out of range", ErrInvalidObservation, e.Latitude, e.Longitude)
}

func (e *InvalidObservationError) Is(target error) bool {
	return target == ErrInvalidObservation
}
