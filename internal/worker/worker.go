package worker

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"flocktwin/internal/alerts"
	"flocktwin/internal/logger"
	"flocktwin/internal/metrics"
)

// Publisher defines the interface for publishing notices
type Publisher interface {
	Publish(ctx context.Context, notice alerts.Notice) error
	PublishBatch(ctx context.Context, notices []alerts.Notice) error
}

// Pool manages a pool of workers that drain a notice queue into a Publisher.
// Enqueue never blocks, so the alert engine is not slowed down by a slow sink.
type Pool struct {
	publisher      Publisher
	queue          chan alerts.Notice
	workers        int
	batchSize      int
	batchTimeout   time.Duration
	publishTimeout time.Duration

	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	stopOnce  sync.Once
	stopped   atomic.Bool

	// Metrics
	processed atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// Config holds worker pool configuration
type Config struct {
	Publisher      Publisher
	QueueSize      int
	Workers        int
	BatchSize      int
	BatchTimeout   time.Duration
	PublishTimeout time.Duration
}

// NewPool creates a new worker pool
func NewPool(cfg Config) *Pool {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 100 * time.Millisecond
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		publisher:      cfg.Publisher,
		queue:          make(chan alerts.Notice, cfg.QueueSize),
		workers:        cfg.Workers,
		batchSize:      cfg.BatchSize,
		batchTimeout:   cfg.BatchTimeout,
		publishTimeout: cfg.PublishTimeout,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Enqueue hands a notice to the workers. It reports false when the queue is
// full or the pool has been stopped.
func (p *Pool) Enqueue(notice alerts.Notice) bool {
	if p.stopped.Load() {
		return false
	}
	select {
	case p.queue <- notice:
		return true
	default:
		p.dropped.Add(1)
		metrics.WorkerQueueDropped.Inc()
		return false
	}
}

// Start begins processing notices
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		log := logger.WithComponent("worker_pool")
		log.Info().
			Int("workers", p.workers).
			Int("batch_size", p.batchSize).
			Dur("batch_timeout", p.batchTimeout).
			Msg("starting worker pool")

		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
	})
}

// Stop stops accepting notices, flushes what is queued and waits for the workers
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		log := logger.WithComponent("worker_pool")
		log.Info().Msg("stopping worker pool")
		p.stopped.Store(true)
		p.cancel()
		p.wg.Wait()
		log.Info().Msg("worker pool stopped")
	})
}

// worker processes notices from the queue
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	log := logger.WithComponent("worker").With().Int("worker_id", id).Logger()

	// Panic recovery
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("worker panic recovered")
			metrics.PanicsRecovered.WithLabelValues("worker").Inc()
		}
	}()

	log.Debug().Msg("worker started")
	defer log.Debug().Msg("worker stopped")

	batch := make([]alerts.Notice, 0, p.batchSize)
	timer := time.NewTimer(p.batchTimeout)
	defer timer.Stop()

	for {
		select {
		case <-p.ctx.Done():
			// Drain whatever is still queued before exiting
		drain:
			for {
				select {
				case notice := <-p.queue:
					batch = append(batch, notice)
					if len(batch) >= p.batchSize {
						p.publishBatch(batch)
						batch = batch[:0]
					}
				default:
					break drain
				}
			}
			if len(batch) > 0 {
				p.publishBatch(batch)
			}
			return

		case notice := <-p.queue:
			batch = append(batch, notice)

			// Publish when batch is full
			if len(batch) >= p.batchSize {
				p.publishBatch(batch)
				batch = batch[:0]
				timer.Reset(p.batchTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				p.publishBatch(batch)
				batch = batch[:0]
			}
			timer.Reset(p.batchTimeout)
		}
	}
}

// publishBatch publishes a batch of notices. It runs on its own timeout
// context so the final flush still works after Stop cancelled the pool.
func (p *Pool) publishBatch(batch []alerts.Notice) {
	if len(batch) == 0 {
		return
	}

	log := logger.WithComponent("worker")
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), p.publishTimeout)
	defer cancel()

	err := p.publisher.PublishBatch(ctx, batch)
	duration := time.Since(start)

	metrics.WorkerBatchPublishDuration.Observe(duration.Seconds())

	if err != nil {
		log.Error().
			Err(err).
			Int("batch_size", len(batch)).
			Dur("duration", duration).
			Msg("failed to publish batch")

		p.failed.Add(uint64(len(batch)))
		metrics.WorkerFailedTotal.Add(float64(len(batch)))

		// Fallback: try publishing individually
		p.publishIndividually(batch)
		return
	}

	log.Debug().
		Int("batch_size", len(batch)).
		Dur("duration", duration).
		Msg("batch published")

	p.processed.Add(uint64(len(batch)))
	metrics.WorkerProcessedTotal.Add(float64(len(batch)))
}

// publishIndividually tries to publish each notice separately (fallback)
func (p *Pool) publishIndividually(batch []alerts.Notice) {
	log := logger.WithComponent("worker")
	log.Warn().Int("count", len(batch)).Msg("attempting individual publish for failed batch")

	for _, notice := range batch {
		ctx, cancel := context.WithTimeout(context.Background(), p.publishTimeout/2)
		err := p.publisher.Publish(ctx, notice)
		cancel()

		if err != nil {
			log.Error().
				Err(err).
				Uint64("alert_id", notice.AlertID).
				Str("type", string(notice.Type)).
				Msg("failed to publish notice individually")
			continue
		}

		// Don't count twice - subtract from failed, add to processed
		p.failed.Add(^uint64(0))
		p.processed.Add(1)
	}
}

// Stats returns worker pool statistics
func (p *Pool) Stats() Stats {
	return Stats{
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.dropped.Load(),
		Queued:    len(p.queue),
	}
}

// Stats holds worker pool metrics
type Stats struct {
	Processed uint64 `json:"processed"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
	Queued    int    `json:"queued"`
}
