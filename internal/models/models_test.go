package models_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flocktwin/internal/models"
)

func TestMetricSampleValidate(t *testing.T) {
	valid := func() models.MetricSample {
		return models.MetricSample{
			Type:      models.MetricFeed,
			Value:     180,
			Expected:  200,
			Timestamp: time.Now(),
		}
	}

	tests := []struct {
		name    string
		modify  func(*models.MetricSample)
		wantErr bool
	}{
		{"valid sample", func(s *models.MetricSample) {}, false},
		{"temperature needs no reference", func(s *models.MetricSample) { s.Type = models.MetricTemperature; s.Expected = 0 }, false},
		{"unknown type", func(s *models.MetricSample) { s.Type = "humidity" }, true},
		{"NaN value", func(s *models.MetricSample) { s.Value = math.NaN() }, true},
		{"infinite value", func(s *models.MetricSample) { s.Value = math.Inf(1) }, true},
		{"infinite reference", func(s *models.MetricSample) { s.Expected = math.Inf(-1) }, true},
		{"zero reference", func(s *models.MetricSample) { s.Expected = 0 }, true},
		{"negative age", func(s *models.MetricSample) { s.Type = models.MetricGrowth; s.Age = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.modify(&s)
			err := s.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, models.ErrInvalidArgument))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSeverityOrdering(t *testing.T) {
	ordered := []models.Severity{
		models.SeverityLow,
		models.SeverityMedium,
		models.SeverityHigh,
		models.SeverityCritical,
	}
	for i := 1; i < len(ordered); i++ {
		assert.Greater(t, ordered[i].Rank(), ordered[i-1].Rank())
		assert.True(t, ordered[i].AtLeast(ordered[i-1]))
		assert.False(t, ordered[i-1].AtLeast(ordered[i]))
	}
	assert.False(t, models.Severity("urgent").IsValid())
	assert.Equal(t, 0, models.Severity("").Rank())
}

func TestScenarioValidate(t *testing.T) {
	s := models.Scenario{
		ID:          1,
		Name:        "Óptimo",
		Temperature: models.Range{Min: 20, Max: 24},
		Humidity:    models.Range{Min: 50, Max: 65},
		Impact:      models.Impact{Mortality: 0.8, Weight: 1.05, FeedConsumption: 0.97},
	}
	require.NoError(t, s.Validate())

	negative := s
	negative.Impact.Mortality = -0.8
	assert.ErrorIs(t, negative.Validate(), models.ErrInvalidArgument)

	inverted := s
	inverted.Temperature = models.Range{Min: 30, Max: 20}
	assert.ErrorIs(t, inverted.Validate(), models.ErrInvalidArgument)

	noID := s
	noID.ID = 0
	assert.ErrorIs(t, noID.Validate(), models.ErrInvalidArgument)
}

func TestParseHelpers(t *testing.T) {
	m, err := models.ParseMetricType("  Temperature ")
	require.NoError(t, err)
	assert.Equal(t, models.MetricTemperature, m)

	sev, err := models.ParseSeverity("CRITICAL")
	require.NoError(t, err)
	assert.Equal(t, models.SeverityCritical, sev)

	at, err := models.ParseAlertType("System")
	require.NoError(t, err)
	assert.Equal(t, models.AlertSystem, at)

	_, err = models.ParseMetricType("humidity")
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
	_, err = models.ParseSeverity("")
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"RFC3339", "2024-01-15T10:30:00Z", false},
		{"RFC3339Nano", "2024-01-15T10:30:00.123456789Z", false},
		{"datetime with T", "2024-01-15T10:30:00", false},
		{"datetime with space", "2024-01-15 10:30:00", false},
		{"with whitespace", "  2024-01-15T10:30:00Z  ", false},
		{"invalid", "not-a-timestamp", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := models.ParseTimestamp(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrInvalidTimestamp)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, time.UTC, ts.Location())
		})
	}
}

func TestCloneAlertsIsIndependent(t *testing.T) {
	in := []models.Alert{{ID: 1}, {ID: 2}}
	out := models.CloneAlerts(in)
	out[0].IsRead = true
	assert.False(t, in[0].IsRead)
	assert.Len(t, out, 2)
}
