package handler

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	webhookservice "fedoffice/internal/webhook/service"
	dErrors "fedoffice/pkg/domain-errors"
	"fedoffice/pkg/platform/httputil"
)

// maxBodySize bounds webhook bodies; confirmations are small documents.
const maxBodySize = 1 << 20

// Handler receives confirmation callbacks from the regulatory system.
// Authentication is a shared secret, not a session: the caller is a
// machine, carried in a header or query parameter.
type Handler struct {
	webhooks *webhookservice.Service
	secret   string
}

func New(webhooks *webhookservice.Service, secret string) *Handler {
	return &Handler{webhooks: webhooks, secret: secret}
}

// Register mounts the webhook route.
func (h *Handler) Register(r chi.Router) {
	r.Post("/webhooks/tms", h.handleConfirmation)
}

func (h *Handler) authenticated(r *http.Request) bool {
	if h.secret == "" {
		return false
	}
	presented := r.Header.Get("X-Webhook-Secret")
	if presented == "" {
		presented = r.URL.Query().Get("secret")
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(h.secret)) == 1
}

func (h *Handler) handleConfirmation(w http.ResponseWriter, r *http.Request) {
	if !h.authenticated(r) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid webhook secret"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "failed to read request body"))
		return
	}

	var notification webhookservice.Notification
	if err := json.Unmarshal(body, &notification); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	notification.Raw = body

	if _, err := h.webhooks.Reconcile(r.Context(), notification); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
