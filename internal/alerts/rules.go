package alerts

import (
	"fmt"
	"math"
	"strconv"

	"flocktwin/internal/models"
)

// Thresholds holds every bound the rule table uses.
//
// Entry bounds are strict: a reading must exceed them to alert. The deviation
// escalation bounds (FeedHigh, WaterHigh, GrowthHigh) are inclusive, so a feed
// reading exactly 40% off target is already high.
type Thresholds struct {
	// Temperature in °C
	TemperatureHigh     float64 `mapstructure:"temperature_high"`
	TemperatureCritical float64 `mapstructure:"temperature_critical"`
	TemperatureLow      float64 `mapstructure:"temperature_low"`
	TemperatureFreezing float64 `mapstructure:"temperature_freezing"`

	// Mortality as a multiple of the average daily mortality
	MortalityFactor   float64 `mapstructure:"mortality_factor"`
	MortalityCritical float64 `mapstructure:"mortality_critical"`

	// Relative deviations from the expected value
	FeedDeviation   float64 `mapstructure:"feed_deviation"`
	FeedHigh        float64 `mapstructure:"feed_high"`
	WaterDeviation  float64 `mapstructure:"water_deviation"`
	WaterHigh       float64 `mapstructure:"water_high"`
	GrowthDeviation float64 `mapstructure:"growth_deviation"`
	GrowthHigh      float64 `mapstructure:"growth_high"`
}

// DefaultThresholds returns the standard broiler house rule table
func DefaultThresholds() Thresholds {
	return Thresholds{
		TemperatureHigh:     30,
		TemperatureCritical: 35,
		TemperatureLow:      18,
		TemperatureFreezing: 15,
		MortalityFactor:     1.5,
		MortalityCritical:   2.0,
		FeedDeviation:       0.20,
		FeedHigh:            0.40,
		WaterDeviation:      0.15,
		WaterHigh:           0.30,
		GrowthDeviation:     0.10,
		GrowthHigh:          0.20,
	}
}

// Validate checks that every tier is ordered and every bound finite
func (t Thresholds) Validate() error {
	pairs := []struct {
		name         string
		lower, upper float64
	}{
		{"temperature freezing/low", t.TemperatureFreezing, t.TemperatureLow},
		{"temperature low/high", t.TemperatureLow, t.TemperatureHigh},
		{"temperature high/critical", t.TemperatureHigh, t.TemperatureCritical},
		{"mortality factor/critical", t.MortalityFactor, t.MortalityCritical},
		{"feed deviation/high", t.FeedDeviation, t.FeedHigh},
		{"water deviation/high", t.WaterDeviation, t.WaterHigh},
		{"growth deviation/high", t.GrowthDeviation, t.GrowthHigh},
	}
	for _, p := range pairs {
		if !models.IsFinite(p.lower) || !models.IsFinite(p.upper) {
			return fmt.Errorf("%w: %s thresholds must be finite", models.ErrInvalidArgument, p.name)
		}
		if p.lower > p.upper {
			return fmt.Errorf("%w: %s thresholds are inverted", models.ErrInvalidArgument, p.name)
		}
	}
	if t.MortalityFactor <= 0 || t.FeedDeviation <= 0 || t.WaterDeviation <= 0 || t.GrowthDeviation <= 0 {
		return fmt.Errorf("%w: ratio thresholds must be positive", models.ErrInvalidArgument)
	}
	return nil
}

// Finding is the outcome of a rule that fired, before the engine turns it into an Alert
type Finding struct {
	Type     models.AlertType
	Severity models.Severity
	Title    string
	Message  string
}

// Check applies the rule for the sample's metric. The sample must already be valid.
func (t Thresholds) Check(s models.MetricSample) (Finding, bool) {
	switch s.Type {
	case models.MetricTemperature:
		return t.checkTemperature(s.Value)
	case models.MetricMortality:
		return t.checkMortality(s.Value, s.Expected)
	case models.MetricFeed:
		return t.checkFeed(s.Value, s.Expected)
	case models.MetricWater:
		return t.checkWater(s.Value, s.Expected)
	case models.MetricGrowth:
		return t.checkGrowth(s.Value, s.Expected, s.Age)
	default:
		return Finding{}, false
	}
}

func (t Thresholds) checkTemperature(temp float64) (Finding, bool) {
	switch {
	case temp > t.TemperatureHigh:
		sev := models.SeverityHigh
		if temp > t.TemperatureCritical {
			sev = models.SeverityCritical
		}
		return Finding{
			Type:     models.AlertTemperature,
			Severity: sev,
			Title:    "Alta Temperatura",
			Message:  fmt.Sprintf("Temperatura detectada: %s°C. Se requiere ventilación inmediata.", formatNumber(temp)),
		}, true
	case temp < t.TemperatureLow:
		sev := models.SeverityMedium
		if temp < t.TemperatureFreezing {
			sev = models.SeverityCritical
		}
		return Finding{
			Type:     models.AlertTemperature,
			Severity: sev,
			Title:    "Baja Temperatura",
			Message:  fmt.Sprintf("Temperatura detectada: %s°C. Se requiere calefacción.", formatNumber(temp)),
		}, true
	}
	return Finding{}, false
}

func (t Thresholds) checkMortality(daily, average float64) (Finding, bool) {
	if daily <= average*t.MortalityFactor {
		return Finding{}, false
	}
	sev := models.SeverityHigh
	if daily > average*t.MortalityCritical {
		sev = models.SeverityCritical
	}
	return Finding{
		Type:     models.AlertMortality,
		Severity: sev,
		Title:    "Alta Mortalidad",
		Message:  fmt.Sprintf("Mortalidad diaria: %s aves. Revisar condiciones sanitarias.", formatNumber(daily)),
	}, true
}

func (t Thresholds) checkFeed(consumption, expected float64) (Finding, bool) {
	dev := Deviation(consumption, expected)
	if dev <= t.FeedDeviation {
		return Finding{}, false
	}
	title := "Alto Consumo de Alimento"
	if consumption < expected {
		title = "Bajo Consumo de Alimento"
	}
	return Finding{
		Type:     models.AlertFeed,
		Severity: escalate(dev, t.FeedHigh),
		Title:    title,
		Message:  fmt.Sprintf("Consumo actual: %skg vs esperado: %skg", formatNumber(consumption), formatNumber(expected)),
	}, true
}

func (t Thresholds) checkWater(consumption, expected float64) (Finding, bool) {
	dev := Deviation(consumption, expected)
	if dev <= t.WaterDeviation {
		return Finding{}, false
	}
	title := "Alto Consumo de Agua"
	if consumption < expected {
		title = "Bajo Consumo de Agua"
	}
	return Finding{
		Type:     models.AlertWater,
		Severity: escalate(dev, t.WaterHigh),
		Title:    title,
		Message:  fmt.Sprintf("Consumo actual: %sL vs esperado: %sL", formatNumber(consumption), formatNumber(expected)),
	}, true
}

func (t Thresholds) checkGrowth(current, expected float64, age int) (Finding, bool) {
	dev := Deviation(current, expected)
	if dev <= t.GrowthDeviation {
		return Finding{}, false
	}
	title := "Crecimiento Acelerado"
	if current < expected {
		title = "Crecimiento Lento"
	}
	return Finding{
		Type:     models.AlertGrowth,
		Severity: escalate(dev, t.GrowthHigh),
		Title:    title,
		Message: fmt.Sprintf("Peso actual: %skg vs esperado: %skg (%d días)",
			formatNumber(current), formatNumber(expected), age),
	}, true
}

// Deviation is |actual - expected| / expected
func Deviation(actual, expected float64) float64 {
	return math.Abs(actual-expected) / expected
}

func escalate(dev, high float64) models.Severity {
	if dev >= high {
		return models.SeverityHigh
	}
	return models.SeverityMedium
}

// formatNumber prints at most two decimals and drops trailing zeros
func formatNumber(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
