package projection

import (
	"fmt"

	"flocktwin/internal/models"
)

// WeeklySummary returns one entry per 7-day week, each taken from the last
// day of that week. A trailing partial week uses the final day of the series.
// A 42-day series yields 6 entries.
func WeeklySummary(series []models.ProjectionPoint) ([]models.WeekSummary, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: series is empty", models.ErrInvalidArgument)
	}

	weeks := (len(series) + 6) / 7
	out := make([]models.WeekSummary, 0, weeks)
	for week := 1; week <= weeks; week++ {
		last := min(week*7, len(series))
		p := series[last-1]
		out = append(out, models.WeekSummary{
			Week:      week,
			Day:       p.Day,
			Weight:    p.Weight,
			Mortality: p.Mortality,
			FCR:       p.FCR,
		})
	}
	return out, nil
}
