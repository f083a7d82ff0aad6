package models

import (
	"fmt"
	"math"
	"time"
)

// MetricType is the kind of reading a monitoring driver produces
type MetricType string

const (
	MetricTemperature MetricType = "temperature"
	MetricMortality   MetricType = "mortality"
	MetricFeed        MetricType = "feed"
	MetricWater       MetricType = "water"
	MetricGrowth      MetricType = "growth"
)

// IsValid checks if the metric type is known
func (m MetricType) IsValid() bool {
	switch m {
	case MetricTemperature, MetricMortality, MetricFeed, MetricWater, MetricGrowth:
		return true
	default:
		return false
	}
}

// NeedsReference reports whether samples of this type are compared against Expected.
func (m MetricType) NeedsReference() bool {
	return m != MetricTemperature
}

// MetricSample is one ephemeral reading handed to the alert engine
type MetricSample struct {
	Type MetricType `json:"type"`

	// Value is the observed reading (°C, birds, kg, L or kg of live weight)
	Value float64 `json:"value"`

	// Expected is the reference the value is compared against: the average
	// daily mortality, the expected feed/water consumption or the expected weight.
	// Unused for temperature.
	Expected float64 `json:"expected,omitempty"`

	// Age is the flock age in days, only meaningful for growth samples
	Age int `json:"age,omitempty"`

	// Timestamp is when the reading was taken. It is informational: alerts
	// carry the engine's creation time.
	Timestamp time.Time `json:"timestamp"`
}

// Validate rejects samples the engine cannot evaluate meaningfully
func (s MetricSample) Validate() error {
	if !s.Type.IsValid() {
		return fmt.Errorf("%w: unknown metric type %q", ErrInvalidArgument, s.Type)
	}
	if !IsFinite(s.Value) {
		return fmt.Errorf("%w: %s value is not finite", ErrInvalidArgument, s.Type)
	}
	if s.Type.NeedsReference() {
		if !IsFinite(s.Expected) {
			return fmt.Errorf("%w: %s reference is not finite", ErrInvalidArgument, s.Type)
		}
		if s.Expected <= 0 {
			return fmt.Errorf("%w: %s reference must be positive", ErrInvalidArgument, s.Type)
		}
	}
	if s.Age < 0 {
		return fmt.Errorf("%w: age cannot be negative", ErrInvalidArgument)
	}
	return nil
}

// IsFinite reports whether v is neither NaN nor ±Inf
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
