package kafka

import (
	"context"
	"errors"

	"flocktwin/internal/alerts"
	"flocktwin/internal/config"
	"flocktwin/internal/logger"
	"flocktwin/internal/worker"
)

// ErrQueueFull is returned by Notify when the publish queue cannot take another notice
var ErrQueueFull = errors.New("kafka notice queue is full")

// NoticePublisher is an alerts.Notifier that forwards notices to a Kafka topic.
// Notify only enqueues; a worker pool batches notices into the producer.
type NoticePublisher struct {
	producer *Producer
	pool     *worker.Pool
}

// NewNoticePublisher builds the producer and its worker pool from cfg.
// Call Start before use and Close on shutdown.
func NewNoticePublisher(cfg config.KafkaConfig, opts ...ProducerOption) (*NoticePublisher, error) {
	producer, err := NewProducer(cfg.Brokers, cfg.Topic, cfg.Producer, opts...)
	if err != nil {
		return nil, err
	}

	pool := worker.NewPool(worker.Config{
		Publisher:      producer,
		QueueSize:      cfg.QueueSize,
		Workers:        cfg.Workers,
		BatchSize:      cfg.Producer.BatchSize,
		BatchTimeout:   cfg.Producer.BatchTimeout,
		PublishTimeout: cfg.Producer.WriteTimeout,
	})

	log := logger.WithComponent("kafka_publisher")
	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("kafka notice publisher initialized")

	return &NoticePublisher{producer: producer, pool: pool}, nil
}

// Name implements alerts.Named
func (*NoticePublisher) Name() string { return "kafka" }

// Notify implements alerts.Notifier
func (n *NoticePublisher) Notify(_ context.Context, notice alerts.Notice) error {
	if !n.pool.Enqueue(notice) {
		return ErrQueueFull
	}
	return nil
}

// Start launches the publish workers
func (n *NoticePublisher) Start() {
	n.pool.Start()
}

// Close flushes queued notices and closes the producer
func (n *NoticePublisher) Close() error {
	n.pool.Stop()
	return n.producer.Close()
}

// HealthCheck reports producer availability
func (n *NoticePublisher) HealthCheck(ctx context.Context) error {
	return n.producer.HealthCheck(ctx)
}

// PublisherStats combines queue and producer statistics
type PublisherStats struct {
	Queue    worker.Stats  `json:"queue"`
	Producer ProducerStats `json:"producer"`
}

// Stats returns queue and producer statistics
func (n *NoticePublisher) Stats() PublisherStats {
	return PublisherStats{Queue: n.pool.Stats(), Producer: n.producer.Stats()}
}
