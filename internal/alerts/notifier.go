package alerts

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"flocktwin/internal/logger"
	"flocktwin/internal/metrics"
	"flocktwin/internal/models"
)

// Urgency is how loudly a notice should be displayed
type Urgency string

const (
	UrgencyProminent Urgency = "prominent"
	UrgencyNeutral   Urgency = "neutral"
)

// UrgencyFor maps severities to display urgency: high and critical are prominent
func UrgencyFor(s models.Severity) Urgency {
	if s.AtLeast(models.SeverityHigh) {
		return UrgencyProminent
	}
	return UrgencyNeutral
}

// Notice is the transient user-facing message emitted for every new alert
type Notice struct {
	AlertID   uint64           `json:"alert_id"`
	Type      models.AlertType `json:"type"`
	Severity  models.Severity  `json:"severity"`
	Urgency   Urgency          `json:"urgency"`
	Title     string           `json:"title"`
	Text      string           `json:"text"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewNotice builds the notice for alert
func NewNotice(alert models.Alert) Notice {
	return Notice{
		AlertID:   alert.ID,
		Type:      alert.Type,
		Severity:  alert.Severity,
		Urgency:   UrgencyFor(alert.Severity),
		Title:     alert.Title,
		Text:      alert.Message,
		Timestamp: alert.Timestamp,
	}
}

// Notifier is a best-effort sink for notices. Errors are reported to the
// caller for logging only.
type Notifier interface {
	Notify(ctx context.Context, notice Notice) error
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, notice Notice) error

// Notify calls f
func (f NotifierFunc) Notify(ctx context.Context, notice Notice) error { return f(ctx, notice) }

// Named is implemented by sinks that want their own label in failure metrics
type Named interface {
	Name() string
}

// MultiNotifier delivers a notice to every sink, isolating failures and panics per sink
type MultiNotifier []Notifier

// Notify delivers to all sinks and joins their errors
func (m MultiNotifier) Notify(ctx context.Context, notice Notice) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := deliver(ctx, n, notice); err != nil {
			metrics.NoticeFailuresTotal.WithLabelValues(sinkName(n)).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", sinkName(n), err))
		}
	}
	return errors.Join(errs...)
}

func deliver(ctx context.Context, n Notifier, notice Notice) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log := logger.WithComponent("notifier")
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Str("sink", sinkName(n)).
				Msg("notifier panic recovered")
			metrics.PanicsRecovered.WithLabelValues("notifier").Inc()
			err = fmt.Errorf("notifier panic: %v", r)
		}
	}()
	return n.Notify(ctx, notice)
}

func sinkName(n Notifier) string {
	if named, ok := n.(Named); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T", n)
}

// LogNotifier writes notices to the structured log
type LogNotifier struct{}

// Name implements Named
func (LogNotifier) Name() string { return "log" }

// Notify implements Notifier
func (LogNotifier) Notify(_ context.Context, notice Notice) error {
	log := logger.WithComponent("notice")
	ev := log.Info()
	if notice.Urgency == UrgencyProminent {
		ev = log.Warn()
	}
	ev.Uint64("alert_id", notice.AlertID).
		Str("type", string(notice.Type)).
		Str("severity", string(notice.Severity)).
		Str("title", notice.Title).
		Msg(notice.Text)
	return nil
}
