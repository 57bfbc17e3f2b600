package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"cdrpulse/internal/schema"
)

func (a *API) handleListConfigurations(w http.ResponseWriter, r *http.Request) {
	items, err := a.store.ListConfigurations(r.Context())
	if err != nil {
		respondError(w, r, err, msgConfigurationNotFound)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (a *API) handleGetConfiguration(w http.ResponseWriter, r *http.Request) {
	cfg, err := a.store.GetConfiguration(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, msgConfigurationNotFound)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

func (a *API) handleCreateConfiguration(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		respondError(w, r, err, msgConfigurationNotFound)
		return
	}
	in, err := schema.DecodeConfigurationCreate(body)
	if err != nil {
		respondError(w, r, err, msgConfigurationNotFound)
		return
	}

	cfg, err := a.store.CreateConfiguration(r.Context(), in)
	if err != nil {
		respondError(w, r, err, msgConfigurationNotFound)
		return
	}

	a.metrics.ConfigurationCreated()
	a.events.ConfigurationCreated(r.Context(), cfg)
	respondJSON(w, http.StatusCreated, cfg)
}

func (a *API) handleUpdateConfiguration(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		respondError(w, r, err, msgConfigurationNotFound)
		return
	}
	in, err := schema.DecodeConfigurationUpdate(body)
	if err != nil {
		respondError(w, r, err, msgConfigurationNotFound)
		return
	}

	cfg, err := a.store.UpdateConfiguration(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		respondError(w, r, err, msgConfigurationNotFound)
		return
	}

	a.events.ConfigurationUpdated(r.Context(), cfg)
	respondJSON(w, http.StatusOK, cfg)
}

// handleDeleteConfiguration answers 204 whether or not the id existed.
func (a *API) handleDeleteConfiguration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deleted, err := a.store.DeleteConfiguration(r.Context(), id)
	if err != nil {
		respondError(w, r, err, msgConfigurationNotFound)
		return
	}

	if deleted {
		a.metrics.ConfigurationDeleted()
		a.events.ConfigurationDeleted(r.Context(), id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListRunsForConfiguration(w http.ResponseWriter, r *http.Request) {
	runs, err := a.store.ListRunsForConfiguration(r.Context(), chi.URLParam(r, "configId"))
	if err != nil {
		respondError(w, r, err, msgRunNotFound)
		return
	}
	respondJSON(w, http.StatusOK, runs)
}
