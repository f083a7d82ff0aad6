// Package monitor drives the alert engine with periodic simulated readings.
package monitor

import (
	"math"
	"math/rand"
	"sync"

	"flocktwin/internal/models"
)

// SampleSource produces the readings for one monitoring tick
type SampleSource interface {
	Next() []models.MetricSample
}

// SourceFunc adapts a function to SampleSource
type SourceFunc func() []models.MetricSample

func (f SourceFunc) Next() []models.MetricSample { return f() }

// Odds holds the per-tick probability that each non-temperature metric is sampled
type Odds struct {
	Mortality float64
	Feed      float64
	Water     float64
	Growth    float64
}

// DefaultOdds samples mortality 10%, feed 15%, water 12% and growth 8% of ticks
func DefaultOdds() Odds {
	return Odds{Mortality: 0.10, Feed: 0.15, Water: 0.12, Growth: 0.08}
}

// Reference values the simulated readings are compared against
const (
	AverageMortality = 8
	ExpectedFeed     = 200 // kg
	ExpectedWater    = 850 // litres
	ExpectedWeight   = 1.8 // kg
	FlockAge         = 42  // days
)

// RandomSource simulates a broiler house. Temperature is read on every tick,
// the other metrics only occasionally.
type RandomSource struct {
	odds Odds

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomSource draws readings from rnd
func NewRandomSource(rnd *rand.Rand, odds Odds) *RandomSource {
	return &RandomSource{odds: odds, rnd: rnd}
}

// NewSeededSource returns a RandomSource with DefaultOdds whose output is determined by seed
func NewSeededSource(seed int64) *RandomSource {
	return NewRandomSource(rand.New(rand.NewSource(seed)), DefaultOdds())
}

// Next implements SampleSource
func (s *RandomSource) Next() []models.MetricSample {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.MetricSample{{
		Type:  models.MetricTemperature,
		Value: round1(20 + s.rnd.Float64()*20),
	}}

	if s.rnd.Float64() < s.odds.Mortality {
		out = append(out, models.MetricSample{
			Type:     models.MetricMortality,
			Value:    math.Floor(s.rnd.Float64() * 25),
			Expected: AverageMortality,
		})
	}
	if s.rnd.Float64() < s.odds.Feed {
		out = append(out, models.MetricSample{
			Type:     models.MetricFeed,
			Value:    round1(180 + (s.rnd.Float64()-0.5)*60),
			Expected: ExpectedFeed,
		})
	}
	if s.rnd.Float64() < s.odds.Water {
		out = append(out, models.MetricSample{
			Type:     models.MetricWater,
			Value:    round1(800 + (s.rnd.Float64()-0.5)*200),
			Expected: ExpectedWater,
		})
	}
	if s.rnd.Float64() < s.odds.Growth {
		out = append(out, models.MetricSample{
			Type:     models.MetricGrowth,
			Value:    math.Round((1.5+s.rnd.Float64()*0.8)*100) / 100,
			Expected: ExpectedWeight,
			Age:      FlockAge,
		})
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
