package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"flocktwin/internal/models"
	"flocktwin/internal/projection"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// intParam reads a positive integer query parameter, falling back to def when absent
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", models.ErrInvalidArgument, name, raw)
	}
	return v, nil
}

// projectionParams reads scenario (default 1) and day (default 1)
func projectionParams(r *http.Request) (scenario, day int, err error) {
	if scenario, err = intParam(r, "scenario", 1); err != nil {
		return 0, 0, err
	}
	if day, err = intParam(r, "day", 1); err != nil {
		return 0, 0, err
	}
	return scenario, day, nil
}

func (a *API) listScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.sim.Scenarios())
}

func (a *API) baseSeries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.sim.Base())
}

func (a *API) reference(w http.ResponseWriter, r *http.Request) {
	day, err := intParam(r, "day", 1)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	point, err := a.sim.Reference(day)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, point)
}

func (a *API) project(w http.ResponseWriter, r *http.Request) {
	scenario, day, err := projectionParams(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	p, err := a.sim.Project(scenario, day)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) compare(w http.ResponseWriter, r *http.Request) {
	day, err := intParam(r, "day", 1)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	cmp, err := a.sim.Compare(day)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

func (a *API) export(w http.ResponseWriter, r *http.Request) {
	scenario, day, err := projectionParams(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	p, err := a.sim.Project(scenario, day)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	// buffer so a failed export can still answer with an error status
	var buf bytes.Buffer
	if err := projection.WriteXLSX(&buf, p); err != nil {
		a.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="proyeccion-escenario-%d-dia-%d.xlsx"`, scenario, day))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (a *API) regenerate(w http.ResponseWriter, r *http.Request) {
	if err := a.sim.Regenerate(); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.sim.Base())
}
