package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"flocktwin/internal/models"
)

type alertsResponse struct {
	Revision uint64         `json:"revision"`
	Alerts   []models.Alert `json:"alerts"`
	Unread   int            `json:"unread"`
}

// listAlerts accepts ?type= and ?severity= (minimum severity) filters.
// Unread always counts the whole log.
func (a *API) listAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		alertType   models.AlertType
		minSeverity models.Severity
		err         error
	)
	if raw := q.Get("type"); raw != "" {
		if alertType, err = models.ParseAlertType(raw); err != nil {
			a.writeError(w, r, err)
			return
		}
	}
	if raw := q.Get("severity"); raw != "" {
		if minSeverity, err = models.ParseSeverity(raw); err != nil {
			a.writeError(w, r, err)
			return
		}
	}

	snap := a.engine.Snapshot()
	list := snap.Alerts
	if alertType != "" || minSeverity != "" {
		list = make([]models.Alert, 0, len(snap.Alerts))
		for _, alert := range snap.Alerts {
			if alertType != "" && alert.Type != alertType {
				continue
			}
			if minSeverity != "" && !alert.Severity.AtLeast(minSeverity) {
				continue
			}
			list = append(list, alert)
		}
	}
	writeJSON(w, http.StatusOK, alertsResponse{Revision: snap.Revision, Alerts: list, Unread: snap.Unread})
}

func (a *API) unreadCount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"unread": a.engine.UnreadCount()})
}

// markAsRead answers 204 for unknown ids too; only a malformed id is an error
func (a *API) markAsRead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		a.writeError(w, r, fmt.Errorf("%w: alert id must be a positive integer", models.ErrInvalidArgument))
		return
	}
	a.engine.MarkAsRead(id)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) markAllAsRead(w http.ResponseWriter, r *http.Request) {
	a.engine.MarkAllAsRead()
	w.WriteHeader(http.StatusNoContent)
}

// sampleRequest is the JSON body of POST /api/samples
type sampleRequest struct {
	Type     string   `json:"type"`
	Value    *float64 `json:"value"`
	Expected float64  `json:"expected"`
	Age      int      `json:"age"`

	// Timestamp is when the reading was taken; defaults to now
	Timestamp string `json:"timestamp"`
}

func (a *API) evaluateSample(w http.ResponseWriter, r *http.Request) {
	var req sampleRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		a.writeError(w, r, fmt.Errorf("%w: malformed sample: %v", models.ErrInvalidArgument, err))
		return
	}

	metric, err := models.ParseMetricType(req.Type)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.Value == nil {
		a.writeError(w, r, fmt.Errorf("%w: value is required", models.ErrInvalidArgument))
		return
	}

	sampledAt := time.Now().UTC()
	if req.Timestamp != "" {
		if sampledAt, err = models.ParseTimestamp(req.Timestamp); err != nil {
			a.writeError(w, r, fmt.Errorf("%w: %v", models.ErrInvalidArgument, err))
			return
		}
	}

	sample := models.MetricSample{Type: metric, Value: *req.Value, Expected: req.Expected, Age: req.Age, Timestamp: sampledAt}
	// growth readings without a reference are compared with the growth curve
	if metric == models.MetricGrowth && sample.Expected == 0 && sample.Age > 0 {
		sample.Expected = a.sim.ExpectedWeightKg(sample.Age)
	}

	alert, err := a.engine.Evaluate(r.Context(), sample)
	a.respondAlert(w, r, alert, err)
}

func (a *API) trigger(w http.ResponseWriter, r *http.Request) {
	if a.triggers == nil {
		http.NotFound(w, r)
		return
	}
	metric, err := models.ParseMetricType(chi.URLParam(r, "metric"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	alert, err := a.triggers.Trigger(r.Context(), metric)
	a.respondAlert(w, r, alert, err)
}

// respondAlert writes 201 with the alert, 204 when no rule fired
func (a *API) respondAlert(w http.ResponseWriter, r *http.Request, alert *models.Alert, err error) {
	switch {
	case err != nil:
		a.writeError(w, r, err)
	case alert == nil:
		w.WriteHeader(http.StatusNoContent)
	default:
		writeJSON(w, http.StatusCreated, alert)
	}
}
