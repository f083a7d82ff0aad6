package alerts

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"flocktwin/internal/logger"
	"flocktwin/internal/metrics"
	"flocktwin/internal/models"
)

// Snapshot is the full alert log as delivered to subscribers
type Snapshot struct {
	// Revision increases with every mutation; subscribers receiving snapshots
	// from concurrent mutations can drop the older one.
	Revision uint64         `json:"revision"`
	Alerts   []models.Alert `json:"alerts"` // newest first
	Unread   int            `json:"unread"`
}

// Handler receives a snapshot after every mutation of the alert log.
// Each call gets its own copy of the alerts.
type Handler func(Snapshot)

// Engine evaluates metric samples against the rule table, keeps the alert log
// and fans every change out to subscribers.
//
// The engine is safe for concurrent use. Subscribers and notifiers run outside
// the engine lock, so they may call back into the engine.
type Engine struct {
	mu          sync.Mutex
	thresholds  Thresholds
	now         func() time.Time
	notifier    Notifier
	log         zerolog.Logger
	alerts      []models.Alert // oldest first; alerts[i].ID == i+1
	unread      int
	revision    uint64
	lastStamp   time.Time
	subscribers map[uint64]Handler
	nextToken   uint64
}

// Option configures an Engine
type Option func(*Engine)

// WithThresholds replaces the default rule table
func WithThresholds(t Thresholds) Option {
	return func(e *Engine) { e.thresholds = t }
}

// WithClock sets the time source used to stamp alerts
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithNotifier adds notice sinks. Each sink is isolated from the others.
func WithNotifier(sinks ...Notifier) Option {
	return func(e *Engine) {
		multi, _ := e.notifier.(MultiNotifier)
		e.notifier = append(multi, sinks...)
	}
}

// WithLogger sets the engine logger
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine creates an engine with an empty alert log
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		thresholds:  DefaultThresholds(),
		now:         time.Now,
		log:         logger.WithComponent("alert_engine"),
		subscribers: make(map[uint64]Handler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Thresholds returns the rule table in use
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// EvaluateTemperature checks a temperature reading in °C
func (e *Engine) EvaluateTemperature(ctx context.Context, celsius float64) (*models.Alert, error) {
	return e.Evaluate(ctx, models.MetricSample{Type: models.MetricTemperature, Value: celsius, Timestamp: e.now()})
}

// EvaluateMortality checks the daily mortality against the average daily mortality
func (e *Engine) EvaluateMortality(ctx context.Context, daily, average float64) (*models.Alert, error) {
	return e.Evaluate(ctx, models.MetricSample{Type: models.MetricMortality, Value: daily, Expected: average, Timestamp: e.now()})
}

// EvaluateFeed checks feed consumption in kg against the expected consumption
func (e *Engine) EvaluateFeed(ctx context.Context, consumption, expected float64) (*models.Alert, error) {
	return e.Evaluate(ctx, models.MetricSample{Type: models.MetricFeed, Value: consumption, Expected: expected, Timestamp: e.now()})
}

// EvaluateWater checks water consumption in litres against the expected consumption
func (e *Engine) EvaluateWater(ctx context.Context, consumption, expected float64) (*models.Alert, error) {
	return e.Evaluate(ctx, models.MetricSample{Type: models.MetricWater, Value: consumption, Expected: expected, Timestamp: e.now()})
}

// EvaluateGrowth checks the average weight in kg against the expected weight at age days
func (e *Engine) EvaluateGrowth(ctx context.Context, current, expected float64, age int) (*models.Alert, error) {
	return e.Evaluate(ctx, models.MetricSample{Type: models.MetricGrowth, Value: current, Expected: expected, Age: age, Timestamp: e.now()})
}

// Evaluate applies the rule for sample.Type. It returns the created alert, or
// nil when the rule did not fire. Invalid samples are rejected with
// models.ErrInvalidArgument and leave the log untouched.
//
// There is no debouncing: a condition that holds on every call produces one
// alert per call. The alert is stamped with the engine clock; the sample's own
// timestamp is only logged as sampled_at.
func (e *Engine) Evaluate(ctx context.Context, sample models.MetricSample) (*models.Alert, error) {
	metric := string(sample.Type)
	if err := sample.Validate(); err != nil {
		metrics.EvaluationsTotal.WithLabelValues(metric, "rejected").Inc()
		e.log.Warn().Err(err).Str("metric", metric).Msg("sample rejected")
		return nil, err
	}

	finding, fired := e.thresholds.Check(sample)
	if !fired {
		metrics.EvaluationsTotal.WithLabelValues(metric, "ok").Inc()
		return nil, nil
	}
	metrics.EvaluationsTotal.WithLabelValues(metric, "alert").Inc()

	alert := e.record(finding, sample.Timestamp)
	e.notify(ctx, alert)
	return &alert, nil
}

// Alerts returns a copy of the alert log, newest first
func (e *Engine) Alerts() []models.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.newestFirstLocked()
}

// UnreadCount returns the number of alerts not yet marked read
func (e *Engine) UnreadCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unread
}

// Len returns the number of alerts in the log
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.alerts)
}

// MarkAsRead flags one alert as read. Unknown ids are ignored. It reports
// whether an alert with that id exists.
func (e *Engine) MarkAsRead(id uint64) bool {
	e.mu.Lock()
	if id == 0 || id > uint64(len(e.alerts)) {
		e.mu.Unlock()
		return false
	}
	a := &e.alerts[id-1]
	if a.IsRead {
		e.mu.Unlock()
		return true
	}
	a.IsRead = true
	e.unread--
	snap, handlers := e.snapshotLocked()
	e.mu.Unlock()

	e.broadcast(snap, handlers)
	return true
}

// MarkAllAsRead flags every alert as read
func (e *Engine) MarkAllAsRead() {
	e.mu.Lock()
	for i := range e.alerts {
		e.alerts[i].IsRead = true
	}
	e.unread = 0
	snap, handlers := e.snapshotLocked()
	e.mu.Unlock()

	e.broadcast(snap, handlers)
}

// Subscription is the handle returned by Subscribe
type Subscription struct {
	engine *Engine
	token  uint64
	once   sync.Once
}

// Token identifies the subscription for Engine.Unsubscribe
func (s *Subscription) Token() uint64 { return s.token }

// Unsubscribe removes the handler. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() { s.engine.Unsubscribe(s.token) })
}

// Subscribe registers h to receive a snapshot after every mutation
func (e *Engine) Subscribe(h Handler) *Subscription {
	e.mu.Lock()
	e.nextToken++
	token := e.nextToken
	e.subscribers[token] = h
	n := len(e.subscribers)
	e.mu.Unlock()

	metrics.SubscribersActive.Set(float64(n))
	e.log.Debug().Uint64("token", token).Int("subscribers", n).Msg("subscriber added")
	return &Subscription{engine: e, token: token}
}

// Unsubscribe removes the handler registered under token. Unknown tokens are ignored.
func (e *Engine) Unsubscribe(token uint64) {
	e.mu.Lock()
	delete(e.subscribers, token)
	n := len(e.subscribers)
	e.mu.Unlock()

	metrics.SubscribersActive.Set(float64(n))
}

// Snapshot returns the current state without waiting for a mutation
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{Revision: e.revision, Alerts: e.newestFirstLocked(), Unread: e.unread}
}

// record appends a new alert and broadcasts the updated log
func (e *Engine) record(f Finding, sampledAt time.Time) models.Alert {
	e.mu.Lock()
	ts := e.now()
	// keep insertion order and timestamp order aligned if the clock steps back
	if ts.Before(e.lastStamp) {
		ts = e.lastStamp
	}
	e.lastStamp = ts

	alert := models.Alert{
		ID:        uint64(len(e.alerts)) + 1,
		Type:      f.Type,
		Severity:  f.Severity,
		Title:     f.Title,
		Message:   f.Message,
		Timestamp: ts,
	}
	e.alerts = append(e.alerts, alert)
	e.unread++
	snap, handlers := e.snapshotLocked()
	e.mu.Unlock()

	metrics.AlertsCreatedTotal.WithLabelValues(string(alert.Type), string(alert.Severity)).Inc()
	metrics.AlertLogSize.Set(float64(len(snap.Alerts)))
	ev := e.log.Info().
		Uint64("alert_id", alert.ID).
		Str("type", string(alert.Type)).
		Str("severity", string(alert.Severity)).
		Str("title", alert.Title)
	if !sampledAt.IsZero() {
		ev = ev.Time("sampled_at", sampledAt)
	}
	ev.Msg("alert created")

	e.broadcast(snap, handlers)
	return alert
}

// snapshotLocked bumps the revision and copies state and handlers. Caller holds e.mu.
func (e *Engine) snapshotLocked() (Snapshot, []Handler) {
	e.revision++
	handlers := make([]Handler, 0, len(e.subscribers))
	for _, h := range e.subscribers {
		handlers = append(handlers, h)
	}
	return Snapshot{Revision: e.revision, Alerts: e.newestFirstLocked(), Unread: e.unread}, handlers
}

func (e *Engine) newestFirstLocked() []models.Alert {
	out := make([]models.Alert, len(e.alerts))
	for i, a := range e.alerts {
		out[len(e.alerts)-1-i] = a
	}
	return out
}

func (e *Engine) broadcast(snap Snapshot, handlers []Handler) {
	metrics.AlertsUnread.Set(float64(snap.Unread))
	for _, h := range handlers {
		own := snap
		own.Alerts = models.CloneAlerts(snap.Alerts)
		e.invoke(h, own)
	}
}

func (e *Engine) invoke(h Handler, snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("subscriber panic recovered")
			metrics.PanicsRecovered.WithLabelValues("alert_subscriber").Inc()
		}
	}()
	h(snap)
}

// notify hands the notice to the sinks. Failures never reach the caller.
func (e *Engine) notify(ctx context.Context, alert models.Alert) {
	if e.notifier == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := deliver(ctx, e.notifier, NewNotice(alert)); err != nil {
		e.log.Warn().Err(err).Uint64("alert_id", alert.ID).Msg("notice delivery failed")
	}
}
