package services

import (
	"context"

	"github.com/pharmadir/apiserver/types"
)

// FavoriteRepository defines persistence operations for bookmarks.
type FavoriteRepository interface {
	ListByUser(ctx context.Context, userID int) ([]types.Favorite, error)
	Create(ctx context.Context, favorite types.Favorite) (types.Favorite, error)
	Delete(ctx context.Context, id, userID int) (types.Favorite, error)
}

// FavoriteService encapsulates bookmark use-cases. Every operation is
// scoped to the calling user.
type FavoriteService struct {
	repo FavoriteRepository
}

func NewFavoriteService(repo FavoriteRepository) *FavoriteService {
	return &FavoriteService{repo: repo}
}

func (s *FavoriteService) ListByUser(ctx context.Context, userID int) ([]types.Favorite, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *FavoriteService) Create(ctx context.Context, userID, pharmacyID int) (types.Favorite, error) {
	return s.repo.Create(ctx, types.Favorite{UserID: userID, PharmacyID: pharmacyID})
}

func (s *FavoriteService) Delete(ctx context.Context, id, userID int) (types.Favorite, error) {
	return s.repo.Delete(ctx, id, userID)
}
