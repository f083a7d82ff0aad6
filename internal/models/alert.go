package models

import (
	"time"
)

// AlertType identifies the farm subsystem an alert refers to
type AlertType string

const (
	AlertTemperature AlertType = "temperature"
	AlertMortality   AlertType = "mortality"
	AlertFeed        AlertType = "feed"
	AlertWater       AlertType = "water"
	AlertGrowth      AlertType = "growth"
	AlertSystem      AlertType = "system"
)

// IsValid checks if the alert type is known
func (t AlertType) IsValid() bool {
	switch t {
	case AlertTemperature, AlertMortality, AlertFeed, AlertWater, AlertGrowth, AlertSystem:
		return true
	default:
		return false
	}
}

// Severity is the ordinal urgency of an alert
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities low < medium < high < critical. Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// IsValid checks if the severity level is valid
func (s Severity) IsValid() bool {
	return s.Rank() > 0
}

// AtLeast reports whether s is as urgent as other or more.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// Alert is a single entry of the alert log.
//
// Alerts are created by the alert engine only. Every field is fixed at
// creation except IsRead, which moves from false to true and never back.
type Alert struct {
	ID        uint64    `json:"id"`
	Type      AlertType `json:"type"`
	Severity  Severity  `json:"severity"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	IsRead    bool      `json:"isRead"`
}

// CloneAlerts returns a copy of alerts that shares no backing array with the input.
func CloneAlerts(alerts []Alert) []Alert {
	out := make([]Alert, len(alerts))
	copy(out, alerts)
	return out
}
