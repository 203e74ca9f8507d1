package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"fedoffice/internal/player/models"
	playerservice "fedoffice/internal/player/service"
	id "fedoffice/pkg/domain"
	dErrors "fedoffice/pkg/domain-errors"
	"fedoffice/pkg/platform/httputil"
)

// Handler exposes the player registry endpoints.
type Handler struct {
	players    *playerservice.Service
	logger     *slog.Logger
	authorized func(http.Handler) http.Handler
	adminOnly  func(http.Handler) http.Handler
}

func New(players *playerservice.Service, logger *slog.Logger, authorized, adminOnly func(http.Handler) http.Handler) *Handler {
	return &Handler{players: players, logger: logger, authorized: authorized, adminOnly: adminOnly}
}

// Register mounts the player routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/players", func(r chi.Router) {
		r.Use(h.authorized)
		r.Get("/", h.handleList)
		r.Get("/{playerID}", h.handleGet)
		r.Group(func(r chi.Router) {
			r.Use(h.adminOnly)
			r.Post("/", h.handleCreate)
			r.Post("/{playerID}/register", h.handleRegister)
		})
	})
}

type movementResponse struct {
	FromClubID string `json:"fromClubId"`
	ToClubID   string `json:"toClubId"`
	TransferID string `json:"transferId,omitempty"`
	Note       string `json:"note,omitempty"`
	Date       string `json:"date"`
}

type playerResponse struct {
	ID                 string             `json:"id"`
	FirstName          string             `json:"firstName"`
	LastName           string             `json:"lastName"`
	NRC                string             `json:"nrc,omitempty"`
	DateOfBirth        string             `json:"dateOfBirth,omitempty"`
	Nationality        string             `json:"nationality,omitempty"`
	ClubID             string             `json:"clubId"`
	RegistrationNumber string             `json:"registrationNumber,omitempty"`
	Movements          []movementResponse `json:"movements,omitempty"`
}

func toPlayerResponse(player *models.Player) playerResponse {
	out := playerResponse{
		ID:                 player.ID.String(),
		FirstName:          player.FirstName,
		LastName:           player.LastName,
		NRC:                player.NRC,
		Nationality:        player.Nationality,
		ClubID:             player.ClubID.String(),
		RegistrationNumber: player.RegistrationNumber,
	}
	if !player.DateOfBirth.IsZero() {
		out.DateOfBirth = player.DateOfBirth.Format("2006-01-02")
	}
	for _, movement := range player.Movements {
		entry := movementResponse{
			FromClubID: movement.FromClubID.String(),
			ToClubID:   movement.ToClubID.String(),
			Note:       movement.Note,
			Date:       movement.Date.Format(time.RFC3339),
		}
		if !movement.TransferID.IsNil() {
			entry.TransferID = movement.TransferID.String()
		}
		out.Movements = append(out.Movements, entry)
	}
	return out
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req playerservice.CreatePlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	player, err := h.players.Create(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toPlayerResponse(player))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	playerID, err := id.ParsePlayerID(chi.URLParam(r, "playerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	player, err := h.players.Get(r.Context(), playerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPlayerResponse(player))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	players, err := h.players.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]playerResponse, 0, len(players))
	for _, player := range players {
		out = append(out, toPlayerResponse(player))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	playerID, err := id.ParsePlayerID(chi.URLParam(r, "playerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	player, err := h.players.Register(r.Context(), playerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPlayerResponse(player))
}
