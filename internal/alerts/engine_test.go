package alerts

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flocktwin/internal/models"
)

// fakeClock returns scripted instants, repeating the last one when exhausted
type fakeClock struct {
	mu    sync.Mutex
	times []time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.times[0]
	if len(c.times) > 1 {
		c.times = c.times[1:]
	}
	return t
}

// recordingNotifier keeps every notice it receives
type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
	err     error
}

func (r *recordingNotifier) Notify(_ context.Context, n Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return r.err
}

func (r *recordingNotifier) all() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

func TestEvaluateTemperatureSeverities(t *testing.T) {
	tests := []struct {
		temp    float64
		want    models.Severity
		wantHit bool
	}{
		{40, models.SeverityCritical, true},
		{35.01, models.SeverityCritical, true},
		{35, models.SeverityHigh, true},
		{30.5, models.SeverityHigh, true},
		{30, "", false},
		{24, "", false},
		{18, "", false},
		{17.9, models.SeverityMedium, true},
		{15, models.SeverityMedium, true},
		{14.9, models.SeverityCritical, true},
		{-5, models.SeverityCritical, true},
	}

	for _, tt := range tests {
		e := NewEngine()
		alert, err := e.EvaluateTemperature(context.Background(), tt.temp)
		require.NoError(t, err)
		if !tt.wantHit {
			assert.Nil(t, alert, "temp %v", tt.temp)
			assert.Empty(t, e.Alerts())
			continue
		}
		require.NotNil(t, alert, "temp %v", tt.temp)
		assert.Equal(t, tt.want, alert.Severity, "temp %v", tt.temp)
		assert.Equal(t, models.AlertTemperature, alert.Type)
		assert.Len(t, e.Alerts(), 1)
	}
}

func TestTemperatureTitles(t *testing.T) {
	e := NewEngine()
	hot, err := e.EvaluateTemperature(context.Background(), 36)
	require.NoError(t, err)
	assert.Equal(t, "Alta Temperatura", hot.Title)
	assert.Equal(t, "Temperatura detectada: 36°C. Se requiere ventilación inmediata.", hot.Message)

	cold, err := e.EvaluateTemperature(context.Background(), 16.25)
	require.NoError(t, err)
	assert.Equal(t, "Baja Temperatura", cold.Title)
	assert.Equal(t, "Temperatura detectada: 16.25°C. Se requiere calefacción.", cold.Message)
}

func TestEvaluateMortality(t *testing.T) {
	e := NewEngine()
	ctx := context.Background()

	a, err := e.EvaluateMortality(ctx, 12, 8)
	require.NoError(t, err)
	assert.Nil(t, a, "exactly 1.5x does not alert")

	a, err = e.EvaluateMortality(ctx, 13, 8)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, models.SeverityHigh, a.Severity)
	assert.Equal(t, "Alta Mortalidad", a.Title)

	a, err = e.EvaluateMortality(ctx, 20, 8)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, models.SeverityCritical, a.Severity)
	assert.Equal(t, "Mortalidad diaria: 20 aves. Revisar condiciones sanitarias.", a.Message)
}

func TestEvaluateFeedLowConsumption(t *testing.T) {
	e := NewEngine()
	a, err := e.EvaluateFeed(context.Background(), 120, 200)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, models.AlertFeed, a.Type)
	assert.Equal(t, models.SeverityHigh, a.Severity)
	assert.Equal(t, "Bajo Consumo de Alimento", a.Title)
	assert.Equal(t, "Consumo actual: 120kg vs esperado: 200kg", a.Message)
}

func TestEvaluateConsumptionAndGrowth(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name      string
		eval      func(e *Engine) (*models.Alert, error)
		wantTitle string
		wantSev   models.Severity
	}{
		{"feed within band", func(e *Engine) (*models.Alert, error) { return e.EvaluateFeed(ctx, 190, 200) }, "", ""},
		{"feed high medium", func(e *Engine) (*models.Alert, error) { return e.EvaluateFeed(ctx, 250, 200) }, "Alto Consumo de Alimento", models.SeverityMedium},
		{"water within band", func(e *Engine) (*models.Alert, error) { return e.EvaluateWater(ctx, 800, 850) }, "", ""},
		{"water low medium", func(e *Engine) (*models.Alert, error) { return e.EvaluateWater(ctx, 700, 850) }, "Bajo Consumo de Agua", models.SeverityMedium},
		{"water high high", func(e *Engine) (*models.Alert, error) { return e.EvaluateWater(ctx, 1200, 850) }, "Alto Consumo de Agua", models.SeverityHigh},
		{"growth within band", func(e *Engine) (*models.Alert, error) { return e.EvaluateGrowth(ctx, 1.7, 1.8, 42) }, "", ""},
		{"growth slow medium", func(e *Engine) (*models.Alert, error) { return e.EvaluateGrowth(ctx, 1.55, 1.8, 42) }, "Crecimiento Lento", models.SeverityMedium},
		{"growth slow high", func(e *Engine) (*models.Alert, error) { return e.EvaluateGrowth(ctx, 1.3, 1.8, 42) }, "Crecimiento Lento", models.SeverityHigh},
		{"growth fast medium", func(e *Engine) (*models.Alert, error) { return e.EvaluateGrowth(ctx, 2.05, 1.8, 42) }, "Crecimiento Acelerado", models.SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine()
			a, err := tt.eval(e)
			require.NoError(t, err)
			if tt.wantTitle == "" {
				assert.Nil(t, a)
				return
			}
			require.NotNil(t, a)
			assert.Equal(t, tt.wantTitle, a.Title)
			assert.Equal(t, tt.wantSev, a.Severity)
		})
	}
}

func TestGrowthMessageCarriesAge(t *testing.T) {
	e := NewEngine()
	a, err := e.EvaluateGrowth(context.Background(), 1.5, 1.8, 35)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "Peso actual: 1.5kg vs esperado: 1.8kg (35 días)", a.Message)
}

func TestEvaluateRejectsNonFiniteInput(t *testing.T) {
	rec := &recordingNotifier{}
	e := NewEngine(WithNotifier(rec))
	ctx := context.Background()

	var calls int
	e.Subscribe(func(Snapshot) { calls++ })

	_, err := e.EvaluateTemperature(ctx, math.NaN())
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
	_, err = e.EvaluateFeed(ctx, math.Inf(1), 200)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
	_, err = e.EvaluateWater(ctx, 100, 0)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
	_, err = e.Evaluate(ctx, models.MetricSample{Type: "humidity", Value: 50})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	assert.Empty(t, e.Alerts())
	assert.Zero(t, calls)
	assert.Empty(t, rec.all())
}

func TestRepeatedConditionAlertsEveryTime(t *testing.T) {
	e := NewEngine()
	for i := 0; i < 3; i++ {
		_, err := e.EvaluateTemperature(context.Background(), 36)
		require.NoError(t, err)
	}
	assert.Len(t, e.Alerts(), 3)
	assert.Equal(t, 3, e.UnreadCount())
}

func TestAlertsNewestFirstWithMonotonicIDs(t *testing.T) {
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	clock := &fakeClock{times: []time.Time{base, base.Add(time.Second), base.Add(2 * time.Second)}}
	e := NewEngine(WithClock(clock.Now))

	_, err := e.EvaluateTemperature(context.Background(), 31)
	require.NoError(t, err)
	_, err = e.EvaluateMortality(context.Background(), 20, 8)
	require.NoError(t, err)

	got := e.Alerts()
	require.Len(t, got, 2)
	assert.Equal(t, uint64(2), got[0].ID)
	assert.Equal(t, models.AlertMortality, got[0].Type)
	assert.Equal(t, uint64(1), got[1].ID)
	assert.False(t, got[0].Timestamp.Before(got[1].Timestamp))
}

func TestTimestampsNeverGoBackwards(t *testing.T) {
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	clock := &fakeClock{times: []time.Time{base, base.Add(-time.Hour)}}
	e := NewEngine(WithClock(clock.Now))

	_, err := e.Evaluate(context.Background(), models.MetricSample{Type: models.MetricTemperature, Value: 36})
	require.NoError(t, err)
	_, err = e.Evaluate(context.Background(), models.MetricSample{Type: models.MetricTemperature, Value: 37})
	require.NoError(t, err)

	got := e.Alerts()
	require.Len(t, got, 2)
	assert.Equal(t, base, got[0].Timestamp)
	assert.Equal(t, base, got[1].Timestamp)
}

func TestAlertUsesEngineClockNotSampleTime(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	clock := &fakeClock{times: []time.Time{now}}
	e := NewEngine(WithClock(clock.Now))

	alert, err := e.Evaluate(context.Background(), models.MetricSample{
		Type:      models.MetricTemperature,
		Value:     36,
		Timestamp: now.Add(-6 * time.Hour),
	})
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, now, alert.Timestamp)
}

func TestAlertsReturnsCopy(t *testing.T) {
	e := NewEngine()
	_, err := e.EvaluateTemperature(context.Background(), 36)
	require.NoError(t, err)

	got := e.Alerts()
	got[0].IsRead = true
	got[0].Title = "changed"

	again := e.Alerts()
	assert.False(t, again[0].IsRead)
	assert.Equal(t, "Alta Temperatura", again[0].Title)
	assert.Equal(t, 1, e.UnreadCount())
}

func TestMarkAsRead(t *testing.T) {
	e := NewEngine()
	ctx := context.Background()
	first, _ := e.EvaluateTemperature(ctx, 36)
	_, _ = e.EvaluateTemperature(ctx, 10)
	require.Equal(t, 2, e.UnreadCount())

	assert.True(t, e.MarkAsRead(first.ID))
	assert.Equal(t, 1, e.UnreadCount())

	// already read
	assert.True(t, e.MarkAsRead(first.ID))
	assert.Equal(t, 1, e.UnreadCount())

	for _, a := range e.Alerts() {
		if a.ID == first.ID {
			assert.True(t, a.IsRead)
		} else {
			assert.False(t, a.IsRead)
		}
	}
}

func TestMarkAsReadUnknownIDIsNoop(t *testing.T) {
	e := NewEngine()
	_, _ = e.EvaluateTemperature(context.Background(), 36)

	var calls int
	e.Subscribe(func(Snapshot) { calls++ })

	before := e.UnreadCount()
	assert.False(t, e.MarkAsRead(999))
	assert.False(t, e.MarkAsRead(0))
	assert.Equal(t, before, e.UnreadCount())
	assert.Zero(t, calls)
}

func TestMarkAllAsRead(t *testing.T) {
	e := NewEngine()
	ctx := context.Background()
	for _, temp := range []float64{36, 31, 10, 17} {
		_, err := e.EvaluateTemperature(ctx, temp)
		require.NoError(t, err)
	}
	_, _ = e.EvaluateFeed(ctx, 120, 200)
	require.Equal(t, 5, e.UnreadCount())

	e.MarkAllAsRead()
	assert.Zero(t, e.UnreadCount())
	for _, a := range e.Alerts() {
		assert.True(t, a.IsRead)
	}

	// empty log as well
	empty := NewEngine()
	empty.MarkAllAsRead()
	assert.Zero(t, empty.UnreadCount())
}

func TestSubscribeReceivesOneSnapshotPerAlert(t *testing.T) {
	e := NewEngine()
	ctx := context.Background()
	_, _ = e.EvaluateTemperature(ctx, 36)
	before := len(e.Alerts())

	var got []Snapshot
	sub := e.Subscribe(func(s Snapshot) { got = append(got, s) })

	_, err := e.EvaluateTemperature(ctx, 36)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Alerts, before+1)
	assert.Equal(t, 2, got[0].Unread)

	sub.Unsubscribe()
	_, _ = e.EvaluateTemperature(ctx, 36)
	assert.Len(t, got, 1)

	// second unsubscribe is harmless
	sub.Unsubscribe()
	e.Unsubscribe(sub.Token())
}

func TestSubscriptionsAreIndependent(t *testing.T) {
	e := NewEngine()
	var a, b int
	subA := e.Subscribe(func(Snapshot) { a++ })
	e.Subscribe(func(Snapshot) { b++ })
	assert.NotEqual(t, subA.Token(), uint64(0))

	_, _ = e.EvaluateTemperature(context.Background(), 36)
	subA.Unsubscribe()
	_, _ = e.EvaluateTemperature(context.Background(), 36)

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func TestSubscriberMayUnsubscribeDuringNotify(t *testing.T) {
	e := NewEngine()
	var calls int
	var sub *Subscription
	sub = e.Subscribe(func(Snapshot) {
		calls++
		sub.Unsubscribe()
		_ = e.UnreadCount()
	})

	_, _ = e.EvaluateTemperature(context.Background(), 36)
	_, _ = e.EvaluateTemperature(context.Background(), 36)
	assert.Equal(t, 1, calls)
}

func TestSubscriberSnapshotsAreIsolated(t *testing.T) {
	e := NewEngine()
	var first, second Snapshot
	e.Subscribe(func(s Snapshot) {
		s.Alerts[0].Title = "mutated"
		first = s
	})
	e.Subscribe(func(s Snapshot) { second = s })

	_, _ = e.EvaluateTemperature(context.Background(), 36)
	assert.Equal(t, "Alta Temperatura", e.Alerts()[0].Title)
	require.Len(t, second.Alerts, 1)
	assert.Equal(t, first.Revision, second.Revision)
}

func TestSubscriberPanicDoesNotBreakEngine(t *testing.T) {
	e := NewEngine()
	var calls int
	e.Subscribe(func(Snapshot) { panic("boom") })
	e.Subscribe(func(Snapshot) { calls++ })

	a, err := e.EvaluateTemperature(context.Background(), 36)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, 1, calls)
	assert.Len(t, e.Alerts(), 1)
}

func TestMarkAsReadNotifiesSubscribers(t *testing.T) {
	e := NewEngine()
	a, _ := e.EvaluateTemperature(context.Background(), 36)

	var snaps []Snapshot
	e.Subscribe(func(s Snapshot) { snaps = append(snaps, s) })

	e.MarkAsRead(a.ID)
	e.MarkAllAsRead()
	require.Len(t, snaps, 2)
	assert.Zero(t, snaps[0].Unread)
	assert.True(t, snaps[0].Alerts[0].IsRead)
	assert.Greater(t, snaps[1].Revision, snaps[0].Revision)
}

func TestNoticeUrgencyMirrorsSeverity(t *testing.T) {
	rec := &recordingNotifier{}
	e := NewEngine(WithNotifier(rec))
	ctx := context.Background()

	_, _ = e.EvaluateTemperature(ctx, 36) // critical
	_, _ = e.EvaluateTemperature(ctx, 31) // high
	_, _ = e.EvaluateTemperature(ctx, 17) // medium
	_, _ = e.EvaluateFeed(ctx, 150, 200)  // medium
	_, _ = e.EvaluateTemperature(ctx, 22) // none

	notices := rec.all()
	require.Len(t, notices, 4)
	assert.Equal(t, UrgencyProminent, notices[0].Urgency)
	assert.Equal(t, UrgencyProminent, notices[1].Urgency)
	assert.Equal(t, UrgencyNeutral, notices[2].Urgency)
	assert.Equal(t, UrgencyNeutral, notices[3].Urgency)
	assert.Equal(t, "Alta Temperatura", notices[0].Title)
	assert.Equal(t, uint64(1), notices[0].AlertID)
}

func TestNotifierFailureDoesNotAffectState(t *testing.T) {
	failing := &recordingNotifier{err: errors.New("display unavailable")}
	panicking := NotifierFunc(func(context.Context, Notice) error { panic("sink crashed") })
	healthy := &recordingNotifier{}
	e := NewEngine(WithNotifier(failing, panicking, healthy))

	a, err := e.EvaluateTemperature(context.Background(), 36)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Len(t, e.Alerts(), 1)
	assert.Len(t, failing.all(), 1)
	assert.Len(t, healthy.all(), 1)
}

func TestConcurrentEvaluationsKeepIDsUnique(t *testing.T) {
	e := NewEngine()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_, _ = e.EvaluateTemperature(context.Background(), 36)
				_ = e.UnreadCount()
			}
		}()
	}
	wg.Wait()

	got := e.Alerts()
	require.Len(t, got, 200)
	seen := make(map[uint64]bool, len(got))
	for i, a := range got {
		assert.False(t, seen[a.ID])
		seen[a.ID] = true
		if i > 0 {
			assert.Less(t, a.ID, got[i-1].ID)
			assert.False(t, a.Timestamp.After(got[i-1].Timestamp))
		}
	}
	assert.Equal(t, 200, e.UnreadCount())
}
