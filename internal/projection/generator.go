package projection

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"flocktwin/internal/models"
)

// Generator produces base series from a growth model plus bounded measurement noise.
// The random source is injected so series can be reproduced from a seed.
type Generator struct {
	model GrowthModel

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewGenerator creates a generator drawing noise from rnd
func NewGenerator(model GrowthModel, rnd *rand.Rand) (*Generator, error) {
	if err := model.Validate(); err != nil {
		return nil, err
	}
	if rnd == nil {
		return nil, fmt.Errorf("%w: random source is required", models.ErrInvalidArgument)
	}
	return &Generator{model: model, rnd: rnd}, nil
}

// NewSeededGenerator creates a generator whose output is fully determined by seed
func NewSeededGenerator(model GrowthModel, seed int64) (*Generator, error) {
	return NewGenerator(model, rand.New(rand.NewSource(seed)))
}

// Model returns the growth model in use
func (g *Generator) Model() GrowthModel {
	return g.model
}

// BaseSeries returns days points for days 1..days.
//
// Every quantity carries independent noise: weight and feed ±5%, mortality
// and electric usage ±10%, water 1.8–2.0 litres per unit of feed.
func (g *Generator) BaseSeries(days int) ([]models.ProjectionPoint, error) {
	if days < 1 {
		return nil, fmt.Errorf("%w: days must be at least 1, got %d", models.ErrInvalidArgument, days)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	series := make([]models.ProjectionPoint, 0, days)
	for day := 1; day <= days; day++ {
		weight := math.Round(g.model.ExpectedWeight(day) * g.uniform(0.95, 1.05))
		mortality := math.Round(5 + float64(day)*0.8*g.uniform(0.9, 1.1))
		feed := round2(math.Round(baseFeed(day)) * g.uniform(0.95, 1.05))
		water := round2(feed * g.uniform(1.8, 2.0))
		electric := round2(180 + float64(day)*2*g.uniform(0.9, 1.1))

		series = append(series, models.ProjectionPoint{
			Day:              day,
			Weight:           weight,
			Mortality:        mortality,
			FeedConsumption:  feed,
			WaterConsumption: water,
			Temperature:      baseTemperature(day),
			ElectricUsage:    electric,
			FCR:              feedConversion(feed, weight),
		})
	}
	return series, nil
}

// ExpectedPoint returns the noise-free point for day
func (g *Generator) ExpectedPoint(day int) models.ProjectionPoint {
	weight := math.Round(g.model.ExpectedWeight(day))
	feed := baseFeed(day)
	return models.ProjectionPoint{
		Day:              day,
		Weight:           weight,
		Mortality:        math.Round(baseMortality(day)),
		FeedConsumption:  feed,
		WaterConsumption: round2(feed * 1.9),
		Temperature:      baseTemperature(day),
		ElectricUsage:    baseElectricUsage(day),
		FCR:              feedConversion(feed, weight),
	}
}

// uniform draws from [lo, hi). Caller holds g.mu.
func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rnd.Float64()*(hi-lo)
}
