// Package projection models a broiler production cycle and the effect of
// environmental scenarios on it.
package projection

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"flocktwin/internal/models"
)

// DefaultDays is the length of a full production cycle
const DefaultDays = 42

// GrowthModel parameterizes the logistic weight curve
// weight(day) = MaxWeight / (1 + exp(-GrowthRate * (day - Midpoint)))
type GrowthModel struct {
	MaxWeight  float64 `mapstructure:"max_weight"` // grams
	GrowthRate float64 `mapstructure:"growth_rate"`
	Midpoint   float64 `mapstructure:"midpoint"` // day of fastest growth
}

// DefaultGrowthModel is a Ross/Cobb-like broiler curve reaching ~2.8 kg
func DefaultGrowthModel() GrowthModel {
	return GrowthModel{MaxWeight: 2800, GrowthRate: 0.2, Midpoint: 21}
}

// Validate checks the curve is well formed
func (m GrowthModel) Validate() error {
	if !models.IsFinite(m.MaxWeight) || m.MaxWeight <= 0 {
		return fmt.Errorf("%w: max weight must be positive", models.ErrInvalidArgument)
	}
	if !models.IsFinite(m.GrowthRate) || m.GrowthRate <= 0 {
		return fmt.Errorf("%w: growth rate must be positive", models.ErrInvalidArgument)
	}
	if !models.IsFinite(m.Midpoint) {
		return fmt.Errorf("%w: midpoint must be finite", models.ErrInvalidArgument)
	}
	return nil
}

// ExpectedWeight is the noise-free weight in grams at day
func (m GrowthModel) ExpectedWeight(day int) float64 {
	return m.MaxWeight / (1 + math.Exp(-m.GrowthRate*(float64(day)-m.Midpoint)))
}

// The per-day formulas below are independent of each other and of earlier days.

func baseFeed(day int) float64 {
	if day < 5 {
		return float64(day * 40)
	}
	return float64(200 + day*18)
}

func baseMortality(day int) float64 {
	return 5 + float64(day)*0.8
}

func baseTemperature(day int) float64 {
	return math.Round((33-float64(day)*0.3)*10) / 10
}

func baseElectricUsage(day int) float64 {
	return 180 + float64(day)*2
}

// feedConversion returns feed/weight rounded to two decimals, 0 when weight is not positive
func feedConversion(feed, weight float64) float64 {
	if weight <= 0 {
		return 0
	}
	return decimal.NewFromFloat(feed).
		Div(decimal.NewFromFloat(weight)).
		Round(2).
		InexactFloat64()
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
