package projection

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"flocktwin/internal/logger"
	"flocktwin/internal/metrics"
	"flocktwin/internal/models"
)

// Projection is a scenario applied to the base cycle from a pivot day on
type Projection struct {
	Scenario models.Scenario          `json:"scenario"`
	PivotDay int                      `json:"pivotDay"`
	Current  models.ProjectionPoint   `json:"current"` // base values at the pivot day
	Series   []models.ProjectionPoint `json:"series"`
	Weekly   []models.WeekSummary     `json:"weekly"`
}

// ScenarioSeries pairs a scenario with its projected series
type ScenarioSeries struct {
	Scenario models.Scenario          `json:"scenario"`
	Series   []models.ProjectionPoint `json:"series"`
}

// Comparison holds the base series next to every scenario's projection
type Comparison struct {
	PivotDay  int                      `json:"pivotDay"`
	Base      []models.ProjectionPoint `json:"base"`
	Scenarios []ScenarioSeries         `json:"scenarios"`
}

// Simulator answers projection requests against one generated base cycle.
// The base cycle is generated once and reused until Regenerate is called, so
// every scenario is compared against the same noise.
type Simulator struct {
	gen     *Generator
	catalog *Catalog
	days    int
	log     zerolog.Logger

	mu   sync.RWMutex
	base []models.ProjectionPoint
}

// NewSimulator generates the base cycle of days days
func NewSimulator(gen *Generator, catalog *Catalog, days int) (*Simulator, error) {
	if gen == nil || catalog == nil {
		return nil, fmt.Errorf("%w: generator and catalog are required", models.ErrInvalidArgument)
	}
	s := &Simulator{
		gen:     gen,
		catalog: catalog,
		days:    days,
		log:     logger.WithComponent("simulator"),
	}
	if err := s.Regenerate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Regenerate draws a fresh base cycle
func (s *Simulator) Regenerate() error {
	base, err := s.gen.BaseSeries(s.days)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.base = base
	s.mu.Unlock()

	s.log.Info().Int("days", s.days).Msg("base cycle generated")
	return nil
}

// Days returns the cycle length
func (s *Simulator) Days() int {
	return s.days
}

// Base returns a copy of the base cycle
func (s *Simulator) Base() []models.ProjectionPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CloneSeries(s.base)
}

// Scenarios returns the catalog ordered by id
func (s *Simulator) Scenarios() []models.Scenario {
	return s.catalog.All()
}

// ApplyScenario looks up scenarioID and applies it to series from pivotDay on
func (s *Simulator) ApplyScenario(series []models.ProjectionPoint, scenarioID, pivotDay int) ([]models.ProjectionPoint, error) {
	scenario, err := s.catalog.Lookup(scenarioID)
	if err != nil {
		return nil, err
	}
	return ApplyScenario(series, scenario, pivotDay)
}

// Project applies scenarioID to the base cycle from pivotDay on and summarizes it by week
func (s *Simulator) Project(scenarioID, pivotDay int) (*Projection, error) {
	start := time.Now()
	p, err := s.project(scenarioID, pivotDay)
	metrics.ProjectionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProjectionRequestsTotal.WithLabelValues("project", "invalid").Inc()
		s.log.Debug().Err(err).Int("scenario", scenarioID).Int("pivot_day", pivotDay).Msg("projection rejected")
		return nil, err
	}
	metrics.ProjectionRequestsTotal.WithLabelValues("project", "ok").Inc()
	return p, nil
}

func (s *Simulator) project(scenarioID, pivotDay int) (*Projection, error) {
	scenario, err := s.catalog.Lookup(scenarioID)
	if err != nil {
		return nil, err
	}
	base := s.Base()
	series, err := ApplyScenario(base, scenario, pivotDay)
	if err != nil {
		return nil, err
	}
	weekly, err := WeeklySummary(series)
	if err != nil {
		return nil, err
	}
	return &Projection{
		Scenario: scenario,
		PivotDay: pivotDay,
		Current:  base[pivotDay-1],
		Series:   series,
		Weekly:   weekly,
	}, nil
}

// Compare projects every scenario in the catalog from pivotDay on
func (s *Simulator) Compare(pivotDay int) (*Comparison, error) {
	base := s.Base()
	cmp := &Comparison{PivotDay: pivotDay, Base: base}
	for _, scenario := range s.catalog.All() {
		series, err := ApplyScenario(base, scenario, pivotDay)
		if err != nil {
			metrics.ProjectionRequestsTotal.WithLabelValues("compare", "invalid").Inc()
			return nil, err
		}
		cmp.Scenarios = append(cmp.Scenarios, ScenarioSeries{Scenario: scenario, Series: series})
	}
	metrics.ProjectionRequestsTotal.WithLabelValues("compare", "ok").Inc()
	return cmp, nil
}

// Reference returns the noise-free point for day, the yardstick the dashboard
// shows next to the simulated values
func (s *Simulator) Reference(day int) (models.ProjectionPoint, error) {
	if day < 1 || day > s.days {
		return models.ProjectionPoint{}, fmt.Errorf("%w: day %d outside [1, %d]", models.ErrInvalidArgument, day, s.days)
	}
	return s.gen.ExpectedPoint(day), nil
}

// ExpectedWeightKg is the noise-free weight at day in kilograms, the unit growth samples use
func (s *Simulator) ExpectedWeightKg(day int) float64 {
	return round2(s.gen.Model().ExpectedWeight(day) / 1000)
}
