package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"flocktwin/internal/alerts"
	"flocktwin/internal/config"
	"flocktwin/internal/handlers"
	"flocktwin/internal/kafka"
	"flocktwin/internal/logger"
	"flocktwin/internal/monitor"
	"flocktwin/internal/projection"
	"flocktwin/internal/stream"
)

// Server is the high-level coordinator: it wires the alert engine, the
// monitoring driver, the projection simulator and the HTTP surface, and owns
// their lifecycle.
type Server struct {
	cfg        *config.Config
	engine     *alerts.Engine
	simulator  *projection.Simulator
	driver     *monitor.Driver
	hub        *stream.Hub
	publisher  *kafka.NoticePublisher
	handler    http.Handler
	httpServer *http.Server
	wg         sync.WaitGroup

	listen func(network, address string) (net.Listener, error)
	ready  chan struct{}
	addr   net.Addr
}

// Stats is the payload of /stats
type Stats struct {
	Alerts  int                   `json:"alerts"`
	Unread  int                   `json:"unread"`
	Monitor monitor.Stats         `json:"monitor"`
	Kafka   *kafka.PublisherStats `json:"kafka,omitempty"`
}

// New builds every component from cfg without starting anything.
func New(cfg *config.Config, opts ...kafka.ProducerOption) (*Server, error) {
	log := logger.WithComponent("server")
	s := &Server{cfg: cfg, listen: net.Listen, ready: make(chan struct{})}

	sinks := []alerts.Notifier{alerts.LogNotifier{}}
	if cfg.Kafka.Enabled() {
		publisher, err := kafka.NewNoticePublisher(cfg.Kafka, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize kafka publisher: %w", err)
		}
		s.publisher = publisher
		sinks = append(sinks, publisher)
	}

	s.engine = alerts.NewEngine(
		alerts.WithThresholds(cfg.Alerts),
		alerts.WithNotifier(sinks...),
	)

	gen, err := projection.NewSeededGenerator(cfg.Projection.Model, seedOrNow(cfg.Projection.Seed))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize projection generator: %w", err)
	}
	s.simulator, err = projection.NewSimulator(gen, projection.DefaultCatalog(), cfg.Projection.Days)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize simulator: %w", err)
	}

	s.driver = monitor.NewDriver(monitor.Config{
		Evaluator: s.engine,
		Source:    monitor.NewSeededSource(seedOrNow(cfg.Monitor.Seed)),
		Interval:  cfg.Monitor.Interval,
	})

	s.hub = stream.NewHub()
	s.hub.Attach(s.engine)

	checks := map[string]handlers.HealthCheck{}
	if s.publisher != nil {
		checks["kafka"] = s.publisher.HealthCheck
	}
	s.handler = handlers.New(handlers.Deps{
		Engine:    s.engine,
		Triggers:  s.driver,
		Simulator: s.simulator,
		Hub:       s.hub,
		Checks:    checks,
		Stats:     func() any { return s.Stats() },
	}).Routes()

	log.Info().
		Bool("kafka", s.publisher != nil).
		Bool("monitor", cfg.Monitor.Enabled).
		Int("projection_days", cfg.Projection.Days).
		Msg("server initialized")
	return s, nil
}

func seedOrNow(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	return time.Now().UnixNano()
}

// Handler returns the HTTP router
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Engine returns the alert engine
func (s *Server) Engine() *alerts.Engine {
	return s.engine
}

// Ready is closed once the HTTP listener is bound
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound listener address; valid after Ready is closed
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Stats collects counters from every component
func (s *Server) Stats() Stats {
	st := Stats{
		Alerts:  s.engine.Len(),
		Unread:  s.engine.UnreadCount(),
		Monitor: s.driver.Stats(),
	}
	if s.publisher != nil {
		ps := s.publisher.Stats()
		st.Kafka = &ps
	}
	return st
}

// Run starts background goroutines and blocks until ctx is cancelled or the
// HTTP server fails. Either way it shuts everything down before returning.
func (s *Server) Run(ctx context.Context) error {
	log := logger.WithComponent("server")
	log.Info().Msg("server starting")

	ln, err := s.listen("tcp", s.cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.HTTP.Addr, err)
	}
	s.addr = ln.Addr()

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()

	if s.publisher != nil {
		s.publisher.Start()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Run(hubCtx)
	}()

	if s.cfg.Monitor.Enabled {
		s.driver.Start()
	}

	s.httpServer = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.HTTP.ReadTimeout,
		WriteTimeout: s.cfg.HTTP.WriteTimeout,
		IdleTimeout:  s.cfg.HTTP.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Info().Str("addr", s.addr.String()).Msg("starting HTTP server")
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
			serveErr <- err
		}
	}()
	close(s.ready)

	// cancelled on either exit path so reportStats never outlives Run
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.reportStats(runCtx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case runErr = <-serveErr:
	}

	cancelRun()
	s.shutdown(stopHub)
	return runErr
}

// shutdown stops components in dependency order
func (s *Server) shutdown(stopHub context.CancelFunc) {
	log := logger.WithComponent("server")
	log.Info().Msg("initiating graceful shutdown")

	// 1. Stop producing new alerts
	s.driver.Stop()

	// 2. Stop accepting new HTTP requests
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 3. Close websocket clients
	stopHub()

	// 4. Flush queued notices and close the producer
	if s.publisher != nil {
		done := make(chan error, 1)
		go func() { done <- s.publisher.Close() }()
		select {
		case err := <-done:
			if err != nil {
				log.Error().Err(err).Msg("kafka publisher close error")
			}
		case <-shutdownCtx.Done():
			log.Warn().Msg("kafka publisher shutdown timeout - forcing exit")
		}
	}

	// 5. Wait for all goroutines
	s.wg.Wait()

	log.Info().Msg("server stopped gracefully")
}

// reportStats periodically logs statistics
func (s *Server) reportStats(ctx context.Context) {
	log := logger.WithComponent("server")
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := s.Stats()
			ev := log.Info().
				Int("alerts", st.Alerts).
				Int("unread", st.Unread).
				Uint64("monitor_ticks", st.Monitor.Ticks).
				Uint64("monitor_rejected", st.Monitor.Rejected)
			if st.Kafka != nil {
				ev = ev.
					Uint64("kafka_sent", st.Kafka.Producer.MessagesSent).
					Uint64("kafka_failed", st.Kafka.Producer.MessagesFailed).
					Uint64("kafka_dropped", st.Kafka.Queue.Dropped)
			}
			ev.Msg("stats")
		}
	}
}
