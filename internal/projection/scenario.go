package projection

import (
	"fmt"
	"math"
	"sort"

	"flocktwin/internal/models"
)

// DefaultScenarios returns the environmental scenarios offered to the digital twin.
func DefaultScenarios() []models.Scenario {
	return []models.Scenario{
		{
			ID:          1,
			Name:        "Óptimo",
			Description: "Condiciones ideales de temperatura y ventilación",
			Temperature: models.Range{Min: 20, Max: 24},
			Humidity:    models.Range{Min: 50, Max: 65},
			Ventilation: "Alta",
			Impact:      models.Impact{Mortality: 0.8, Weight: 1.05, FeedConsumption: 0.97},
		},
		{
			ID:          2,
			Name:        "Estrés por calor",
			Description: "Temperatura elevada prolongada",
			Temperature: models.Range{Min: 29, Max: 33},
			Humidity:    models.Range{Min: 60, Max: 75},
			Ventilation: "Máxima",
			Impact:      models.Impact{Mortality: 1.4, Weight: 0.92, FeedConsumption: 0.85},
		},
		{
			ID:          3,
			Name:        "Frío nocturno",
			Description: "Temperatura baja durante la noche",
			Temperature: models.Range{Min: 16, Max: 22},
			Humidity:    models.Range{Min: 45, Max: 55},
			Ventilation: "Baja",
			Impact:      models.Impact{Mortality: 1.1, Weight: 0.96, FeedConsumption: 1.08},
		},
	}
}

// Catalog is an immutable set of scenarios indexed by id
type Catalog struct {
	scenarios []models.Scenario
	byID      map[int]models.Scenario
}

// NewCatalog validates scenarios and rejects duplicate ids
func NewCatalog(scenarios ...models.Scenario) (*Catalog, error) {
	c := &Catalog{byID: make(map[int]models.Scenario, len(scenarios))}
	for _, s := range scenarios {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate scenario id %d", models.ErrInvalidArgument, s.ID)
		}
		c.byID[s.ID] = s
		c.scenarios = append(c.scenarios, s)
	}
	sort.Slice(c.scenarios, func(i, j int) bool { return c.scenarios[i].ID < c.scenarios[j].ID })
	return c, nil
}

// DefaultCatalog returns the catalog built from DefaultScenarios
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultScenarios()...)
	if err != nil {
		panic(err) // static data
	}
	return c
}

// Lookup returns the scenario with id
func (c *Catalog) Lookup(id int) (models.Scenario, error) {
	s, ok := c.byID[id]
	if !ok {
		return models.Scenario{}, fmt.Errorf("%w: unknown scenario id %d", models.ErrInvalidArgument, id)
	}
	return s, nil
}

// All returns the scenarios ordered by id
func (c *Catalog) All() []models.Scenario {
	out := make([]models.Scenario, len(c.scenarios))
	copy(out, c.scenarios)
	return out
}

// ApplyScenario returns a new series where every day >= pivotDay has its
// weight, mortality and feed consumption multiplied by the scenario's impact
// and rounded. Earlier days are copied unchanged. The input is not modified.
func ApplyScenario(series []models.ProjectionPoint, scenario models.Scenario, pivotDay int) ([]models.ProjectionPoint, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	if err := checkPivot(series, pivotDay); err != nil {
		return nil, err
	}

	out := models.CloneSeries(series)
	for i := range out {
		p := &out[i]
		if p.Day < pivotDay {
			continue
		}
		p.Weight = math.Round(p.Weight * scenario.Impact.Weight)
		p.Mortality = math.Round(p.Mortality * scenario.Impact.Mortality)
		p.FeedConsumption = math.Round(p.FeedConsumption * scenario.Impact.FeedConsumption)
		p.FCR = feedConversion(p.FeedConsumption, p.Weight)
	}
	return out, nil
}

func checkPivot(series []models.ProjectionPoint, pivotDay int) error {
	if len(series) == 0 {
		return fmt.Errorf("%w: series is empty", models.ErrInvalidArgument)
	}
	if pivotDay < 1 || pivotDay > len(series) {
		return fmt.Errorf("%w: pivot day %d outside [1, %d]", models.ErrInvalidArgument, pivotDay, len(series))
	}
	return nil
}
