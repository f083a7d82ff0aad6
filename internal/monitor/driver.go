package monitor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"flocktwin/internal/logger"
	"flocktwin/internal/metrics"
	"flocktwin/internal/models"
)

// DefaultInterval is the time between monitoring ticks
const DefaultInterval = 10 * time.Second

// Evaluator is the part of the alert engine the driver feeds
type Evaluator interface {
	Evaluate(ctx context.Context, sample models.MetricSample) (*models.Alert, error)
}

// Driver periodically pulls readings from a SampleSource and evaluates them
type Driver struct {
	eval     Evaluator
	source   SampleSource
	interval time.Duration
	now      func() time.Time
	log      zerolog.Logger

	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	stopOnce  sync.Once

	ticks    atomic.Uint64
	samples  atomic.Uint64
	alerts   atomic.Uint64
	rejected atomic.Uint64
}

// Config holds driver configuration
type Config struct {
	Evaluator Evaluator
	Source    SampleSource
	Interval  time.Duration
	Clock     func() time.Time
}

// NewDriver creates a stopped driver
func NewDriver(cfg Config) *Driver {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Driver{
		eval:     cfg.Evaluator,
		source:   cfg.Source,
		interval: cfg.Interval,
		now:      cfg.Clock,
		log:      logger.WithComponent("monitor"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins ticking. Calling it more than once has no effect.
func (d *Driver) Start() {
	d.startOnce.Do(func() {
		d.log.Info().Dur("interval", d.interval).Msg("starting monitoring driver")
		d.wg.Add(1)
		go d.run()
	})
}

// Stop halts the ticker and waits for an in-flight tick to finish
func (d *Driver) Stop() {
	d.stopOnce.Do(func() {
		d.cancel()
		d.wg.Wait()
		d.log.Info().Msg("monitoring driver stopped")
	})
}

func (d *Driver) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.Tick(d.ctx)
		}
	}
}

// Tick evaluates one round of readings. A panic in the source or the
// evaluator is recovered so the next tick still runs.
func (d *Driver) Tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("monitor tick panic recovered")
			metrics.PanicsRecovered.WithLabelValues("monitor").Inc()
		}
	}()

	d.ticks.Add(1)
	metrics.MonitorTicksTotal.Inc()

	for _, sample := range d.source.Next() {
		if sample.Timestamp.IsZero() {
			sample.Timestamp = d.now()
		}
		d.evaluate(ctx, sample)
	}
}

func (d *Driver) evaluate(ctx context.Context, sample models.MetricSample) (*models.Alert, error) {
	d.samples.Add(1)
	metrics.MonitorSamplesTotal.WithLabelValues(string(sample.Type)).Inc()

	alert, err := d.eval.Evaluate(ctx, sample)
	if err != nil {
		d.rejected.Add(1)
		d.log.Warn().Err(err).Str("metric", string(sample.Type)).Float64("value", sample.Value).Msg("reading rejected")
		return nil, err
	}
	if alert != nil {
		d.alerts.Add(1)
	}
	return alert, nil
}

// Demo readings used by the manual triggers
var triggerSamples = map[models.MetricType]models.MetricSample{
	models.MetricTemperature: {Type: models.MetricTemperature, Value: 36},
	models.MetricMortality:   {Type: models.MetricMortality, Value: 20, Expected: AverageMortality},
	models.MetricFeed:        {Type: models.MetricFeed, Value: 120, Expected: ExpectedFeed},
}

// Trigger evaluates the demo reading for metric. Only temperature, mortality
// and feed have one.
func (d *Driver) Trigger(ctx context.Context, metric models.MetricType) (*models.Alert, error) {
	sample, ok := triggerSamples[metric]
	if !ok {
		return nil, fmt.Errorf("%w: no trigger for metric %q", models.ErrInvalidArgument, metric)
	}
	sample.Timestamp = d.now()
	d.log.Info().Str("metric", string(metric)).Msg("manual trigger")
	return d.evaluate(ctx, sample)
}

// TriggerTemperature evaluates a 36 °C reading
func (d *Driver) TriggerTemperature(ctx context.Context) (*models.Alert, error) {
	return d.Trigger(ctx, models.MetricTemperature)
}

// TriggerMortality evaluates 20 deaths against an average of 8
func (d *Driver) TriggerMortality(ctx context.Context) (*models.Alert, error) {
	return d.Trigger(ctx, models.MetricMortality)
}

// TriggerFeed evaluates 120 kg of feed against 200 kg expected
func (d *Driver) TriggerFeed(ctx context.Context) (*models.Alert, error) {
	return d.Trigger(ctx, models.MetricFeed)
}

// Stats holds driver counters
type Stats struct {
	Ticks    uint64 `json:"ticks"`
	Samples  uint64 `json:"samples"`
	Alerts   uint64 `json:"alerts"`
	Rejected uint64 `json:"rejected"`
}

// Stats returns driver counters
func (d *Driver) Stats() Stats {
	return Stats{
		Ticks:    d.ticks.Load(),
		Samples:  d.samples.Load(),
		Alerts:   d.alerts.Load(),
		Rejected: d.rejected.Load(),
	}
}
