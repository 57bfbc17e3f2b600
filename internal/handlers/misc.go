package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"cdrpulse/internal/catalog"
)

func (a *API) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Ping(r.Context()); err != nil {
		a.logger.Warn().Err(err).Msg("readiness check failed")
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.store.RunStats(r.Context())
	if err != nil {
		respondError(w, r, err, msgRunNotFound)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// applicationView decorates a catalog entry with its resolved rendering hints.
type applicationView struct {
	catalog.Application
	Glyph string `json:"glyph"`
	Hex   string `json:"hex"`
}

func viewOf(app catalog.Application) applicationView {
	return applicationView{
		Application: app,
		Glyph:       catalog.IconFor(app.Icon).Glyph,
		Hex:         catalog.ColorFor(app.Color),
	}
}

func (a *API) handleListApplications(w http.ResponseWriter, r *http.Request) {
	apps := a.catalog.Search(r.URL.Query().Get("q"))
	items := make([]applicationView, 0, len(apps))
	for _, app := range apps {
		items = append(items, viewOf(app))
	}
	respondJSON(w, http.StatusOK, items)
}

func (a *API) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	app, ok := a.catalog.Lookup(chi.URLParam(r, "appId"))
	if !ok {
		respondJSON(w, http.StatusNotFound, errorBody{Error: "Application not found"})
		return
	}
	respondJSON(w, http.StatusOK, viewOf(app))
}
