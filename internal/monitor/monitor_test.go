package monitor

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flocktwin/internal/alerts"
	"flocktwin/internal/models"
)

// recordingEvaluator keeps every sample it was given
type recordingEvaluator struct {
	mu      sync.Mutex
	samples []models.MetricSample
}

func (r *recordingEvaluator) Evaluate(_ context.Context, s models.MetricSample) (*models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
	return nil, s.Validate()
}

func (r *recordingEvaluator) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

func TestRandomSourceRanges(t *testing.T) {
	src := NewRandomSource(rand.New(rand.NewSource(1)), Odds{Mortality: 1, Feed: 1, Water: 1, Growth: 1})

	for i := 0; i < 500; i++ {
		samples := src.Next()
		require.Len(t, samples, 5)

		for _, s := range samples {
			require.NoError(t, s.Validate())
			switch s.Type {
			case models.MetricTemperature:
				assert.GreaterOrEqual(t, s.Value, 20.0)
				assert.LessOrEqual(t, s.Value, 40.0)
			case models.MetricMortality:
				assert.Equal(t, math.Floor(s.Value), s.Value)
				assert.Less(t, s.Value, 25.0)
				assert.Equal(t, 8.0, s.Expected)
			case models.MetricFeed:
				assert.InDelta(t, 180, s.Value, 30)
				assert.Equal(t, 200.0, s.Expected)
			case models.MetricWater:
				assert.InDelta(t, 800, s.Value, 100)
				assert.Equal(t, 850.0, s.Expected)
			case models.MetricGrowth:
				assert.GreaterOrEqual(t, s.Value, 1.5)
				assert.LessOrEqual(t, s.Value, 2.3)
				assert.Equal(t, 42, s.Age)
			}
		}
	}
}

func TestRandomSourceOdds(t *testing.T) {
	src := NewSeededSource(3)

	counts := map[models.MetricType]int{}
	const ticks = 20000
	for i := 0; i < ticks; i++ {
		for _, s := range src.Next() {
			counts[s.Type]++
		}
	}

	assert.Equal(t, ticks, counts[models.MetricTemperature])
	assert.InDelta(t, 0.10, float64(counts[models.MetricMortality])/ticks, 0.01)
	assert.InDelta(t, 0.15, float64(counts[models.MetricFeed])/ticks, 0.01)
	assert.InDelta(t, 0.12, float64(counts[models.MetricWater])/ticks, 0.01)
	assert.InDelta(t, 0.08, float64(counts[models.MetricGrowth])/ticks, 0.01)
}

func TestTickStampsAndEvaluates(t *testing.T) {
	eval := &recordingEvaluator{}
	stamp := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)
	d := NewDriver(Config{
		Evaluator: eval,
		Source: SourceFunc(func() []models.MetricSample {
			return []models.MetricSample{
				{Type: models.MetricTemperature, Value: 25},
				{Type: models.MetricFeed, Value: 100, Expected: 0},
			}
		}),
		Clock: func() time.Time { return stamp },
	})

	d.Tick(context.Background())

	require.Equal(t, 2, eval.count())
	assert.Equal(t, stamp, eval.samples[0].Timestamp)
	assert.Equal(t, Stats{Ticks: 1, Samples: 2, Rejected: 1}, d.Stats())
}

func TestTickRecoversFromPanic(t *testing.T) {
	calls := 0
	d := NewDriver(Config{
		Evaluator: &recordingEvaluator{},
		Source: SourceFunc(func() []models.MetricSample {
			calls++
			panic("sensor bus fault")
		}),
	})

	assert.NotPanics(t, func() { d.Tick(context.Background()) })
	assert.NotPanics(t, func() { d.Tick(context.Background()) })
	assert.Equal(t, 2, calls)
	assert.Equal(t, uint64(2), d.Stats().Ticks)
}

func TestDriverRunsOnInterval(t *testing.T) {
	eval := &recordingEvaluator{}
	d := NewDriver(Config{
		Evaluator: eval,
		Source:    NewSeededSource(1),
		Interval:  5 * time.Millisecond,
	})

	d.Start()
	d.Start()
	require.Eventually(t, func() bool { return d.Stats().Ticks >= 3 }, time.Second, 5*time.Millisecond)
	d.Stop()
	d.Stop()

	ticks := d.Stats().Ticks
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, ticks, d.Stats().Ticks, "no ticks after Stop")
	assert.GreaterOrEqual(t, eval.count(), int(ticks))
}

func TestTriggersRaiseDemoAlerts(t *testing.T) {
	engine := alerts.NewEngine()
	d := NewDriver(Config{Evaluator: engine, Source: NewSeededSource(1)})
	ctx := context.Background()

	temp, err := d.TriggerTemperature(ctx)
	require.NoError(t, err)
	require.NotNil(t, temp)
	assert.Equal(t, models.SeverityCritical, temp.Severity)

	mort, err := d.TriggerMortality(ctx)
	require.NoError(t, err)
	require.NotNil(t, mort)
	assert.Equal(t, models.SeverityCritical, mort.Severity)

	feed, err := d.TriggerFeed(ctx)
	require.NoError(t, err)
	require.NotNil(t, feed)
	assert.Equal(t, models.SeverityHigh, feed.Severity)
	assert.Equal(t, "Bajo Consumo de Alimento", feed.Title)

	assert.Equal(t, 3, engine.UnreadCount())
	assert.Equal(t, uint64(3), d.Stats().Alerts)

	_, err = d.Trigger(ctx, models.MetricWater)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}
