// Itemforge - Behavioral Signal Fusion and Live Index Publishing
// Copyright 2026 Itemforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itemforge/itemforge

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/itemforge/itemforge/internal/publish"
	"github.com/itemforge/itemforge/internal/trainer"
)

// Retirer is the slice of the publisher the API needs.
type Retirer interface {
	Status() (publish.Phase, string, []string)
	LastPublished() time.Time
	RetireStale(ctx context.Context) error
}

// Handler carries the handler dependencies.
type Handler struct {
	trainer *trainer.Trainer
	pub     Retirer
	logger  zerolog.Logger
}

// NewHandler creates the handler set.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewHandler(t *trainer.Trainer, pub Retirer, logger zerolog.Logger) *Handler {
	return &Handler{trainer: t, pub: pub, logger: logger}
}

type statusResponse struct {
	Phase         string     `json:"phase"`
	LiveIndex     string     `json:"live_index,omitempty"`
	StaleIndexes  []string   `json:"stale_indexes,omitempty"`
	LastPublished *time.Time `json:"last_published,omitempty"`
	Training      bool       `json:"training"`
	LastRun       *runInfo   `json:"last_run,omitempty"`
	LastRunError  string     `json:"last_run_error,omitempty"`
}

type runInfo struct {
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
	Events    int       `json:"events"`
	Records   int       `json:"records"`
	Index     string    `json:"index,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthReady reports readiness: the service is ready once a dataset is
// live under the alias.
func (h *Handler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	_, live, _ := h.pub.Status()
	if live == "" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no dataset published"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "live_index": live})
}

// Status reports the publish phase and the last training run.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	phase, live, stale := h.pub.Status()
	resp := statusResponse{
		Phase:        string(phase),
		LiveIndex:    live,
		StaleIndexes: stale,
		Training:     h.trainer.Running(),
	}
	if last := h.pub.LastPublished(); !last.IsZero() {
		resp.LastPublished = &last
	}
	if run, err := h.trainer.LastRun(); run != nil || err != nil {
		if run != nil {
			resp.LastRun = &runInfo{
				StartedAt: run.StartedAt,
				Duration:  run.Duration.String(),
				Events:    run.Events,
				Records:   run.Records,
				Index:     run.Index,
			}
		}
		if err != nil {
			resp.LastRunError = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Train triggers a training run synchronously. A run already in flight
// yields 409.
func (h *Handler) Train(w http.ResponseWriter, r *http.Request) {
	run, err := h.trainer.Train(r.Context())
	switch {
	case errors.Is(err, trainer.ErrTrainInProgress):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case err != nil:
		h.logger.Error().Err(err).Msg("manual training run failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, runInfo{
			StartedAt: run.StartedAt,
			Duration:  run.Duration.String(),
			Events:    run.Events,
			Records:   run.Records,
			Index:     run.Index,
		})
	}
}

// Retire retries retirement of a stale index left behind by an earlier
// publish.
func (h *Handler) Retire(w http.ResponseWriter, r *http.Request) {
	if err := h.pub.RetireStale(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("stale index retirement failed")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
