package models

// ProjectionPoint is one simulated day of a production cycle
type ProjectionPoint struct {
	Day int `json:"day"`

	// Weight is the average live weight in grams
	Weight float64 `json:"weight"`

	// Mortality is the accumulated number of dead birds
	Mortality float64 `json:"mortality"`

	FeedConsumption  float64 `json:"feedConsumption"`
	WaterConsumption float64 `json:"waterConsumption"`
	Temperature      float64 `json:"temperature"`
	ElectricUsage    float64 `json:"electricUsage"`

	// FCR is feed per unit of weight, two decimals
	FCR float64 `json:"fcr"`
}

// WeekSummary carries the last day of a week of a projection
type WeekSummary struct {
	Week      int     `json:"week"`
	Day       int     `json:"day"`
	Weight    float64 `json:"weight"`
	Mortality float64 `json:"mortality"`
	FCR       float64 `json:"fcr"`
}

// CloneSeries returns a copy of series that shares no backing array with the input.
func CloneSeries(series []ProjectionPoint) []ProjectionPoint {
	out := make([]ProjectionPoint, len(series))
	copy(out, series)
	return out
}
