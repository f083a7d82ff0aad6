package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"flocktwin/internal/alerts"
	"flocktwin/internal/logger"
	"flocktwin/internal/middleware"
	"flocktwin/internal/models"
	"flocktwin/internal/projection"
	"flocktwin/internal/stream"
)

// maxBodySize bounds request bodies; samples are tiny
const maxBodySize = 64 * 1024

// Triggerer fires the demo readings
type Triggerer interface {
	Trigger(ctx context.Context, metric models.MetricType) (*models.Alert, error)
}

// HealthCheck is an optional dependency probe reported by /health
type HealthCheck func(ctx context.Context) error

// Deps are the collaborators the API serves
type Deps struct {
	Engine    *alerts.Engine
	Triggers  Triggerer
	Simulator *projection.Simulator
	Hub       *stream.Hub
	Checks    map[string]HealthCheck
	Stats     func() any
}

// API serves the dashboard's HTTP surface
type API struct {
	engine   *alerts.Engine
	triggers Triggerer
	sim      *projection.Simulator
	hub      *stream.Hub
	checks   map[string]HealthCheck
	stats    func() any
	log      zerolog.Logger
}

// New creates the API. Engine and Simulator are required.
func New(d Deps) *API {
	return &API{
		engine:   d.Engine,
		triggers: d.Triggers,
		sim:      d.Simulator,
		hub:      d.Hub,
		checks:   d.Checks,
		stats:    d.Stats,
		log:      logger.WithComponent("http_api"),
	}
}

// Routes builds the router
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)

	r.Route("/api", func(r chi.Router) {
		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", a.listAlerts)
			r.Get("/unread", a.unreadCount)
			r.Post("/read-all", a.markAllAsRead)
			r.Post("/{id}/read", a.markAsRead)
		})

		r.Post("/samples", a.evaluateSample)
		r.Post("/triggers/{metric}", a.trigger)

		r.Get("/scenarios", a.listScenarios)
		r.Route("/projection", func(r chi.Router) {
			r.Get("/", a.project)
			r.Get("/base", a.baseSeries)
			r.Get("/reference", a.reference)
			r.Get("/compare", a.compare)
			r.Get("/export", a.export)
			r.Post("/regenerate", a.regenerate)
		})
	})

	if a.hub != nil {
		r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
			stream.ServeWS(a.hub, w, req)
		})
	}
	r.Get("/health", a.health)
	if a.stats != nil {
		r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, a.stats())
		})
	}
	r.Handle("/metrics", promhttp.Handler())

	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log := logger.WithComponent("http_api")
		log.Debug().Err(err).Msg("failed to write response")
	}
}

// writeError maps invalid input to 400 and everything else to 500
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, models.ErrInvalidArgument) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	a.log.Error().Err(err).Str("request_id", middleware.RequestID(r.Context())).Msg("request failed")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "healthy", Timestamp: time.Now().UTC()}
	status := http.StatusOK
	if len(a.checks) > 0 {
		resp.Checks = make(map[string]string, len(a.checks))
		for name, check := range a.checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "unhealthy"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
	}
	writeJSON(w, status, resp)
}
