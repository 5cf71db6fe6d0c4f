// Package api exposes the read-only dashboard surface: current sensor
// snapshots with display classification, broker status, and alert state.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"vigil/internal/alert"
	"vigil/internal/dispatch"
	"vigil/internal/models"
)

// SnapshotProvider is the capability the handler needs from a source adapter.
type SnapshotProvider interface {
	Name() string
	Snapshot() models.Document
}

// Handler serves the engine's HTTP API.
type Handler struct {
	providers       []SnapshotProvider
	alerter         *alert.Alerter
	dispatcher      *dispatch.Dispatcher
	brokerConnected func() bool
	brokers         []string
}

// Config holds the handler's collaborators.
type Config struct {
	Providers       []SnapshotProvider
	Alerter         *alert.Alerter
	Dispatcher      *dispatch.Dispatcher
	BrokerConnected func() bool
	Brokers         []string
}

func NewHandler(cfg Config) *Handler {
	return &Handler{
		providers:       cfg.Providers,
		alerter:         cfg.Alerter,
		dispatcher:      cfg.Dispatcher,
		brokerConnected: cfg.BrokerConnected,
		brokers:         cfg.Brokers,
	}
}

// SensorView is one classified reading as rendered by observers.
type SensorView struct {
	alert.DisplayStatus
	Raw       map[string]any `json:"raw,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// DocumentView builds the per-sensor display classification for a document.
// The classification reuses the evaluator's thresholds so the display path and
// the alerting path can never disagree.
func DocumentView(eval *alert.Evaluator, doc models.Document) map[models.SensorKind]SensorView {
	view := make(map[models.SensorKind]SensorView, len(doc))
	for kind, r := range doc {
		view[kind] = SensorView{
			DisplayStatus: eval.Classify(kind, r.Value),
			Raw:           r.Raw,
			Timestamp:     r.Timestamp,
		}
	}
	return view
}

// Sensors returns the current document of every source with classification.
func (h *Handler) Sensors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	eval := h.alerter.Evaluator()
	out := make(map[string]map[models.SensorKind]SensorView, len(h.providers))
	for _, p := range h.providers {
		out[p.Name()] = DocumentView(eval, p.Snapshot())
	}
	h.writeJSON(w, http.StatusOK, out)
}

// BrokerStatus reports bus connectivity.
func (h *Handler) BrokerStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"connected": h.brokerConnected(),
		"brokers":   h.brokers,
	})
}

// AlertStatus reports thresholds, cooldown state, and dispatcher state.
func (h *Handler) AlertStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	gate := h.alerter.Gate()
	lastFired := make(map[string]time.Time)
	for kind, t := range gate.LastFired() {
		lastFired[string(kind)] = t
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"thresholds":       h.alerter.Evaluator().Thresholds(),
		"cooldown_seconds": gate.Window().Seconds(),
		"last_fired":       lastFired,
		"action_in_flight": h.dispatcher.Busy(),
	})
}

// testRequest is the body of an alert test call.
type testRequest struct {
	Cue string `json:"cue"`
}

// AlertTest dispatches a named cue through the single-flight path.
func (h *Handler) AlertTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req testRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Cue == "" {
		h.writeError(w, http.StatusBadRequest, "body must be a JSON object with a cue field")
		return
	}

	started := h.dispatcher.Dispatch(req.Cue)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"cue":     req.Cue,
		"started": started,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}
