package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pharmadir/apiserver/internal/store"
	"github.com/pharmadir/apiserver/types"
	"go.uber.org/zap"
)

// FavoriteStore defines the bookmark operations the HTTP layer needs.
type FavoriteStore interface {
	ListByUser(ctx context.Context, userID int) ([]types.Favorite, error)
	Create(ctx context.Context, userID, pharmacyID int) (types.Favorite, error)
	Delete(ctx context.Context, id, userID int) (types.Favorite, error)
}

// FavoriteHandler provides HTTP handlers for user bookmarks. Every route
// requires authentication and operates on the caller's own rows.
type FavoriteHandler struct {
	favorites FavoriteStore
	logger    *zap.Logger
}

// NewFavoriteHandler constructs a handler with the provided service.
func NewFavoriteHandler(favorites FavoriteStore, logger *zap.Logger) *FavoriteHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FavoriteHandler{favorites: favorites, logger: logger}
}

// FavoriteRouter registers favorite routes on the given router.
func FavoriteRouter(r chi.Router, handler *FavoriteHandler, authMiddleware func(http.Handler) http.Handler) {
	r.With(authMiddleware).Get("/favorites", handler.List)
	r.Route("/favorite", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/", handler.Create)
		r.Delete("/{favoriteID}", handler.Delete)
	})
}

type FavoriteCreateRequest struct {
	PharmacyID int `json:"pharmacy_id"`
}

// FavoriteResponse wraps a mutated row with a confirmation message.
type FavoriteResponse struct {
	Message string         `json:"message"`
	Result  types.Favorite `json:"result"`
}

func (h *FavoriteHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	favorites, err := h.favorites.ListByUser(r.Context(), identity.ID)
	if err != nil {
		h.logger.Error("list favorites", zap.Int("user_id", identity.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list favorites")
		return
	}

	writeJSON(w, http.StatusOK, favorites)
}

func (h *FavoriteHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req FavoriteCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PharmacyID < 1 {
		writeError(w, http.StatusBadRequest, "invalid pharmacy id")
		return
	}

	favorite, err := h.favorites.Create(r.Context(), identity.ID, req.PharmacyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "pharmacy not found")
			return
		}
		h.logger.Error("create favorite",
			zap.Int("user_id", identity.ID),
			zap.Int("pharmacy_id", req.PharmacyID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to create favorite")
		return
	}

	writeJSON(w, http.StatusOK, FavoriteResponse{Message: "added successfully", Result: favorite})
}

// Delete removes a bookmark by id. The delete is scoped to the caller,
// so another user's favorite id yields a 404.
func (h *FavoriteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	raw := chi.URLParam(r, "favoriteID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid favorite id")
		return
	}

	favorite, err := h.favorites.Delete(r.Context(), id, identity.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "favorite not found")
			return
		}
		h.logger.Error("delete favorite",
			zap.Int("user_id", identity.ID),
			zap.Int("favorite_id", id),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete favorite")
		return
	}

	writeJSON(w, http.StatusOK, FavoriteResponse{Message: "deleted successfully", Result: favorite})
}
