package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"fedoffice/internal/transfer/models"
	transferservice "fedoffice/internal/transfer/service"
	id "fedoffice/pkg/domain"
	dErrors "fedoffice/pkg/domain-errors"
	"fedoffice/pkg/platform/httputil"
)

// Handler exposes the transfer negotiation endpoints plus the admin
// approval and export operations.
type Handler struct {
	transfers  *transferservice.Service
	adminOnly  func(http.Handler) http.Handler
	authorized func(http.Handler) http.Handler
}

func New(transfers *transferservice.Service, authorized, adminOnly func(http.Handler) http.Handler) *Handler {
	return &Handler{transfers: transfers, authorized: authorized, adminOnly: adminOnly}
}

// Register mounts the transfer routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/transfers", func(r chi.Router) {
		r.Use(h.authorized)
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Route("/{transferID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Post("/counter-offers", h.handleCounterOffer)
			r.Post("/counter-offers/{offerID}/accept", h.handleAcceptCounterOffer)
			r.Post("/accept", h.handleAccept)
			r.Post("/reject", h.handleReject)
			r.Post("/cancel", h.handleCancel)
			r.Post("/documents", h.handleAttachDocument)
		})
	})
	r.Route("/admin/transfers", func(r chi.Router) {
		r.Use(h.authorized, h.adminOnly)
		r.Post("/{transferID}/approve", h.handleApprove)
		r.Post("/{transferID}/export", h.handleForceExport)
	})
}

type counterOfferResponse struct {
	ID              string `json:"id"`
	OfferedByClubID string `json:"offeredByClubId"`
	Fee             string `json:"fee"`
	Terms           string `json:"terms,omitempty"`
	Date            string `json:"date"`
	Status          string `json:"status"`
}

type statusChangeResponse struct {
	Status    string `json:"status"`
	ChangedBy string `json:"changedBy"`
	Date      string `json:"date"`
	Notes     string `json:"notes,omitempty"`
}

type documentResponse struct {
	URL              string `json:"url"`
	UploadedAt       string `json:"uploadedAt"`
	UploadedByClubID string `json:"uploadedByClubId"`
}

type exportResponse struct {
	Status        string `json:"status"`
	ExternalID    string `json:"externalId,omitempty"`
	Attempts      int    `json:"attempts"`
	LastError     string `json:"lastError,omitempty"`
	LastAttemptAt string `json:"lastAttemptAt,omitempty"`
	ExportedAt    string `json:"exportedAt,omitempty"`
}

type transferResponse struct {
	ID             string                      `json:"id"`
	FromClubID     string                      `json:"fromClubId"`
	ToClubID       string                      `json:"toClubId"`
	PlayerID       string                      `json:"playerId"`
	Type           string                      `json:"type"`
	Status         string                      `json:"status"`
	TransferFee    string                      `json:"transferFee"`
	Reason         string                      `json:"reason,omitempty"`
	Comments       string                      `json:"comments,omitempty"`
	CounterOffers  []counterOfferResponse      `json:"counterOffers"`
	StatusHistory  []statusChangeResponse      `json:"statusHistory"`
	Documents      map[string]documentResponse `json:"documents"`
	FifaExport     exportResponse              `json:"fifaExport"`
	CompletionDate string                      `json:"completionDate,omitempty"`
	CreatedAt      string                      `json:"createdAt"`
	UpdatedAt      string                      `json:"updatedAt"`
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func toTransferResponse(transfer *models.Transfer) transferResponse {
	resp := transferResponse{
		ID:             transfer.ID.String(),
		FromClubID:     transfer.FromClubID.String(),
		ToClubID:       transfer.ToClubID.String(),
		PlayerID:       transfer.PlayerID.String(),
		Type:           string(transfer.Type),
		Status:         string(transfer.Status),
		TransferFee:    transfer.TransferFee.String(),
		Reason:         transfer.Reason,
		Comments:       transfer.Comments,
		CounterOffers:  make([]counterOfferResponse, 0, len(transfer.CounterOffers)),
		StatusHistory:  make([]statusChangeResponse, 0, len(transfer.StatusHistory)),
		Documents:      make(map[string]documentResponse),
		CompletionDate: formatOptional(transfer.CompletionDate),
		CreatedAt:      transfer.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      transfer.UpdatedAt.Format(time.RFC3339),
	}
	for _, offer := range transfer.CounterOffers {
		resp.CounterOffers = append(resp.CounterOffers, counterOfferResponse{
			ID:              offer.ID.String(),
			OfferedByClubID: offer.OfferedByClubID.String(),
			Fee:             offer.Fee.String(),
			Terms:           offer.Terms,
			Date:            offer.Date.Format(time.RFC3339),
			Status:          string(offer.Status),
		})
	}
	for _, change := range transfer.StatusHistory {
		resp.StatusHistory = append(resp.StatusHistory, statusChangeResponse{
			Status:    string(change.Status),
			ChangedBy: change.ChangedBy,
			Date:      change.Date.Format(time.RFC3339),
			Notes:     change.Notes,
		})
	}
	if doc := transfer.Documents.Consent; doc != nil {
		resp.Documents[string(models.DocumentConsent)] = toDocumentResponse(doc)
	}
	if doc := transfer.Documents.Contract; doc != nil {
		resp.Documents[string(models.DocumentContract)] = toDocumentResponse(doc)
	}
	resp.FifaExport = exportResponse{
		Status:        string(transfer.FifaExport.Status),
		ExternalID:    transfer.FifaExport.ExternalID,
		Attempts:      transfer.FifaExport.Attempts,
		LastError:     transfer.FifaExport.LastError,
		LastAttemptAt: formatOptional(transfer.FifaExport.LastAttemptAt),
		ExportedAt:    formatOptional(transfer.FifaExport.ExportedAt),
	}
	return resp
}

func toDocumentResponse(doc *models.Document) documentResponse {
	return documentResponse{
		URL:              doc.URL,
		UploadedAt:       doc.UploadedAt.Format(time.RFC3339),
		UploadedByClubID: doc.UploadedByClubID.String(),
	}
}

func transferIDFromPath(r *http.Request) (id.TransferID, error) {
	return id.ParseTransferID(chi.URLParam(r, "transferID"))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req transferservice.CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	transfer, err := h.transfers.Create(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toTransferResponse(transfer))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	transferID, err := transferIDFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	transfer, err := h.transfers.Get(r.Context(), transferID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTransferResponse(transfer))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	transfers, err := h.transfers.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]transferResponse, 0, len(transfers))
	for _, transfer := range transfers {
		out = append(out, toTransferResponse(transfer))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCounterOffer(w http.ResponseWriter, r *http.Request) {
	transferID, err := transferIDFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req transferservice.CounterOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	transfer, err := h.transfers.CounterOffer(r.Context(), transferID, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTransferResponse(transfer))
}

func (h *Handler) handleAcceptCounterOffer(w http.ResponseWriter, r *http.Request) {
	transferID, err := transferIDFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	offerID, err := id.ParseOfferID(chi.URLParam(r, "offerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	transfer, err := h.transfers.AcceptCounterOffer(r.Context(), transferID, offerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTransferResponse(transfer))
}

// noteRequest is the shared body for accept, reject, cancel and approve.
type noteRequest struct {
	Reason string `json:"reason,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

func (n noteRequest) text() string {
	if n.Reason != "" {
		return n.Reason
	}
	return n.Notes
}

func decodeNote(r *http.Request) noteRequest {
	var req noteRequest
	// The body is optional on these endpoints.
	_ = json.NewDecoder(r.Body).Decode(&req)
	return req
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	transferID, err := transferIDFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	transfer, err := h.transfers.Accept(r.Context(), transferID, decodeNote(r).text())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTransferResponse(transfer))
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	transferID, err := transferIDFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	transfer, err := h.transfers.Reject(r.Context(), transferID, decodeNote(r).text())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTransferResponse(transfer))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	transferID, err := transferIDFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	transfer, err := h.transfers.Cancel(r.Context(), transferID, decodeNote(r).text())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTransferResponse(transfer))
}

type attachDocumentRequest struct {
	Kind string `json:"kind"`
	URL  string `json:"url"`
}

func (h *Handler) handleAttachDocument(w http.ResponseWriter, r *http.Request) {
	transferID, err := transferIDFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req attachDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	transfer, err := h.transfers.AttachDocument(r.Context(), transferID, models.DocumentKind(req.Kind), req.URL)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTransferResponse(transfer))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	transferID, err := transferIDFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	transfer, err := h.transfers.AdminApprove(r.Context(), transferID, decodeNote(r).text())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTransferResponse(transfer))
}

func (h *Handler) handleForceExport(w http.ResponseWriter, r *http.Request) {
	transferID, err := transferIDFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	transfer, err := h.transfers.ForceExport(r.Context(), transferID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, toTransferResponse(transfer))
}
