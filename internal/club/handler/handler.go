package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"fedoffice/internal/club/models"
	clubservice "fedoffice/internal/club/service"
	id "fedoffice/pkg/domain"
	dErrors "fedoffice/pkg/domain-errors"
	"fedoffice/pkg/platform/httputil"
)

// Handler exposes the club registry endpoints.
type Handler struct {
	clubs      *clubservice.Service
	logger     *slog.Logger
	adminOnly  func(http.Handler) http.Handler
	authorized func(http.Handler) http.Handler
}

func New(clubs *clubservice.Service, logger *slog.Logger, authorized, adminOnly func(http.Handler) http.Handler) *Handler {
	return &Handler{clubs: clubs, logger: logger, authorized: authorized, adminOnly: adminOnly}
}

// Register mounts the club routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/clubs", func(r chi.Router) {
		r.Use(h.authorized)
		r.Get("/", h.handleList)
		r.Get("/{clubID}", h.handleGet)
		r.Group(func(r chi.Router) {
			r.Use(h.adminOnly)
			r.Post("/", h.handleCreate)
			r.Patch("/{clubID}", h.handleUpdate)
		})
	})
}

type clubResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation,omitempty"`
	League       string `json:"league,omitempty"`
	LeagueCode   string `json:"leagueCode"`
	Status       string `json:"status"`
	CreatedAt    string `json:"createdAt"`
}

func toClubResponse(club *models.Club) clubResponse {
	return clubResponse{
		ID:           club.ID.String(),
		Name:         club.Name,
		Abbreviation: club.Abbreviation,
		League:       club.League,
		LeagueCode:   club.LeagueCode(),
		Status:       string(club.Status),
		CreatedAt:    club.CreatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req clubservice.CreateClubRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	club, err := h.clubs.Create(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toClubResponse(club))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	clubID, err := id.ParseClubID(chi.URLParam(r, "clubID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	club, err := h.clubs.Get(r.Context(), clubID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toClubResponse(club))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	clubs, err := h.clubs.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]clubResponse, 0, len(clubs))
	for _, club := range clubs {
		out = append(out, toClubResponse(club))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	clubID, err := id.ParseClubID(chi.URLParam(r, "clubID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req clubservice.UpdateClubRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	club, err := h.clubs.Update(r.Context(), clubID, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toClubResponse(club))
}
