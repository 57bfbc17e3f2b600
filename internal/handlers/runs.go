package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"cdrpulse/internal/models"
	"cdrpulse/internal/results"
	"cdrpulse/internal/schema"
)

func (a *API) handleListRuns(w http.ResponseWriter, r *http.Request) {
	def, ceiling := a.store.Limits()
	limit, err := schema.ParseLimit(r.URL.Query().Get("limit"), def, ceiling)
	if err != nil {
		respondError(w, r, err, msgRunNotFound)
		return
	}

	runs, err := a.store.ListRuns(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, msgRunNotFound)
		return
	}
	respondJSON(w, http.StatusOK, runs)
}

func (a *API) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := a.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, msgRunNotFound)
		return
	}
	respondJSON(w, http.StatusOK, run)
}

func (a *API) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		respondError(w, r, err, msgRunNotFound)
		return
	}
	in, err := schema.DecodeRunCreate(body)
	if err != nil {
		respondError(w, r, err, msgRunNotFound)
		return
	}

	run, err := a.store.CreateRun(r.Context(), in)
	if err != nil {
		respondError(w, r, err, msgRunNotFound)
		return
	}

	a.metrics.RunCreated(run.Status)
	a.events.RunCreated(r.Context(), run)
	if run.Status == models.RunCompleted {
		a.archiveRun(r, run)
	}
	respondJSON(w, http.StatusCreated, run)
}

func (a *API) handleUpdateRun(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		respondError(w, r, err, msgRunNotFound)
		return
	}
	in, err := schema.DecodeRunUpdate(body)
	if err != nil {
		respondError(w, r, err, msgRunNotFound)
		return
	}

	run, previous, err := a.store.UpdateRun(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		respondError(w, r, err, msgRunNotFound)
		return
	}

	a.metrics.RunTransition(previous, run.Status)
	a.events.RunUpdated(r.Context(), run, previous)
	if run.Status == models.RunCompleted && (previous != models.RunCompleted || in.Has("results")) {
		a.archiveRun(r, run)
	}
	respondJSON(w, http.StatusOK, run)
}

// archiveRun writes a completed run to the object store. Failures are logged
// and counted but never change the response.
func (a *API) archiveRun(r *http.Request, run models.TestRun) {
	if !a.archive.Enabled() {
		return
	}
	logger := hlog.FromRequest(r)
	ctx := context.WithoutCancel(r.Context())

	cfg, err := a.store.GetConfiguration(ctx, run.TestConfigurationID)
	if err != nil {
		a.metrics.ArchiveFailed()
		logger.Warn().Err(err).Str("run_id", run.ID).Msg("archive run: load configuration")
		return
	}
	key, err := a.archive.Archive(ctx, cfg, run)
	if err != nil {
		a.metrics.ArchiveFailed()
		logger.Warn().Err(err).Str("run_id", run.ID).Msg("archive run")
		return
	}
	logger.Debug().Str("run_id", run.ID).Str("key", key).Msg("run archived")
}

// loadReport fetches a run with its configuration and summarizes it. It
// writes the error response itself and reports whether the caller may proceed.
func (a *API) loadReport(w http.ResponseWriter, r *http.Request) (results.Report, bool) {
	run, err := a.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, msgRunNotFound)
		return results.Report{}, false
	}
	cfg, err := a.store.GetConfiguration(r.Context(), run.TestConfigurationID)
	if err != nil {
		respondError(w, r, err, msgConfigurationNotFound)
		return results.Report{}, false
	}
	report, err := results.NewReport(cfg, run)
	if errors.Is(err, results.ErrNoResults) {
		respondJSON(w, http.StatusConflict, errorBody{Error: "Test run has no results"})
		return results.Report{}, false
	}
	if err != nil {
		respondError(w, r, err, msgRunNotFound)
		return results.Report{}, false
	}
	return report, true
}

func (a *API) handleRunSummary(w http.ResponseWriter, r *http.Request) {
	report, ok := a.loadReport(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, report.Summary)
}

func (a *API) handleRunReport(w http.ResponseWriter, r *http.Request) {
	report, ok := a.loadReport(w, r)
	if !ok {
		return
	}
	out, err := a.renderer.Render(results.ReportTemplate, report)
	if err != nil {
		respondError(w, r, err, msgRunNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out))
}

// handleRunArchive redirects to a presigned download of an archived run.
func (a *API) handleRunArchive(w http.ResponseWriter, r *http.Request) {
	if !a.archive.Enabled() {
		respondJSON(w, http.StatusNotFound, errorBody{Error: "Run archive is not configured"})
		return
	}
	run, err := a.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, msgRunNotFound)
		return
	}
	if run.Status != models.RunCompleted {
		respondJSON(w, http.StatusConflict, errorBody{Error: "Test run has no results"})
		return
	}
	link, err := a.archive.URL(r.Context(), run, archiveURLExpiry)
	if err != nil {
		respondError(w, r, err, msgRunNotFound)
		return
	}
	http.Redirect(w, r, link, http.StatusTemporaryRedirect)
}
