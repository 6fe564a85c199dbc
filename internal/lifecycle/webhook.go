package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skiffhq/skiff/internal/reconcile"
)

// eventHandler is the controller surface the webhook needs.
type eventHandler interface {
	Handle(ctx context.Context, ev Event) (*reconcile.Result, error)
}

// Webhook translates GitHub pull-request payloads into lifecycle
// events. It serves /hooks/github, /healthz, and /metrics.
type Webhook struct {
	handler eventHandler
	logger  *log.Logger
}

// NewWebhook creates the webhook HTTP surface.
func NewWebhook(handler eventHandler, logger *log.Logger) *Webhook {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Webhook{handler: handler, logger: logger}
}

// Router returns the configured request mux.
func (w *Webhook) Router() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /hooks/github", w.handlePullRequest)
	mux.HandleFunc("GET /healthz", w.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

type pullRequestPayload struct {
	Action      string `json:"action"`
	PullRequest struct {
		Number int `json:"number"`
	} `json:"pull_request"`
}

func (w *Webhook) handlePullRequest(rw http.ResponseWriter, r *http.Request) {
	var payload pullRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(rw, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if payload.PullRequest.Number <= 0 {
		writeError(rw, http.StatusBadRequest, "missing pull request number")
		return
	}

	var eventType EventType
	switch payload.Action {
	case "opened":
		eventType = PROpened
	case "synchronize", "reopened":
		eventType = PRUpdated
	case "closed":
		eventType = PRClosed
	default:
		writeJSON(rw, http.StatusOK, map[string]string{"status": "ignored", "action": payload.Action})
		return
	}

	result, err := w.handler.Handle(r.Context(), Event{Type: eventType, PRNumber: payload.PullRequest.Number})
	if err != nil {
		if errors.Is(err, reconcile.ErrAlreadyInProgress) {
			writeError(rw, http.StatusConflict, "reconciliation already in progress, retry later")
			return
		}
		w.logger.Error("event handling failed", "action", payload.Action, "pr", payload.PullRequest.Number, "error", err)
		writeError(rw, http.StatusInternalServerError, "reconciliation failed")
		return
	}

	writeJSON(rw, http.StatusOK, map[string]string{
		"environment": result.Environment,
		"phase":       string(result.Phase),
	})
}

func (w *Webhook) handleHealth(rw http.ResponseWriter, _ *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(rw http.ResponseWriter, status int, body any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(body)
}

func writeError(rw http.ResponseWriter, status int, message string) {
	writeJSON(rw, status, map[string]string{"error": message})
}
