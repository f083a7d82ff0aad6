package models

import (
	"fmt"
)

// Range is a closed numeric interval
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Impact holds the multipliers a scenario applies to projected outcomes
type Impact struct {
	Mortality       float64 `json:"mortality"`
	Weight          float64 `json:"weight"`
	FeedConsumption float64 `json:"feedConsumption"`
}

// Scenario is a named bundle of environmental assumptions and their effect on the flock.
// Scenarios are reference data and never mutated at runtime.
type Scenario struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Temperature Range  `json:"temperature"`
	Humidity    Range  `json:"humidity"`
	Ventilation string `json:"ventilation"`
	Impact      Impact `json:"impact"`
}

// Validate checks the scenario can be applied to a projection
func (s Scenario) Validate() error {
	if s.ID <= 0 {
		return fmt.Errorf("%w: scenario id must be positive", ErrInvalidArgument)
	}
	factors := map[string]float64{
		"mortality":        s.Impact.Mortality,
		"weight":           s.Impact.Weight,
		"feed consumption": s.Impact.FeedConsumption,
	}
	for name, f := range factors {
		if !IsFinite(f) || f <= 0 {
			return fmt.Errorf("%w: scenario %d %s factor must be a positive number", ErrInvalidArgument, s.ID, name)
		}
	}
	if s.Temperature.Min > s.Temperature.Max || s.Humidity.Min > s.Humidity.Max {
		return fmt.Errorf("%w: scenario %d has an inverted range", ErrInvalidArgument, s.ID)
	}
	return nil
}
