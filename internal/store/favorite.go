package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pharmadir/apiserver/types"
)

// FavoriteRepository handles persistence for user bookmarks.
type FavoriteRepository struct {
	db *sql.DB
}

func NewFavoriteRepository(db *sql.DB) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

func (r *FavoriteRepository) ListByUser(ctx context.Context, userID int) ([]types.Favorite, error) {
	const query = `
		SELECT id, user_id, pharmacy_id, created_at
		FROM favorites
		WHERE user_id = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	favorites := make([]types.Favorite, 0)
	for rows.Next() {
		var favorite types.Favorite
		if err := rows.Scan(
			&favorite.ID,
			&favorite.UserID,
			&favorite.PharmacyID,
			&favorite.CreatedAt,
		); err != nil {
			return nil, err
		}
		favorites = append(favorites, favorite)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return favorites, nil
}

// Create inserts a bookmark. Duplicate (user, pharmacy) pairs are allowed.
// A missing pharmacy surfaces as ErrNotFound via the foreign key.
func (r *FavoriteRepository) Create(ctx context.Context, favorite types.Favorite) (types.Favorite, error) {
	favorite.CreatedAt = time.Now()

	const query = `
		INSERT INTO favorites (user_id, pharmacy_id, created_at)
		VALUES ($1, $2, $3)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		favorite.UserID,
		favorite.PharmacyID,
		favorite.CreatedAt,
	).Scan(&favorite.ID); err != nil {
		if isForeignKeyViolation(err) {
			return types.Favorite{}, ErrNotFound
		}
		return types.Favorite{}, err
	}
	return favorite, nil
}

// Delete removes a bookmark by id, scoped to its owner.
func (r *FavoriteRepository) Delete(ctx context.Context, id, userID int) (types.Favorite, error) {
	const query = `
		DELETE FROM favorites
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, pharmacy_id, created_at`
	var favorite types.Favorite
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(
		&favorite.ID,
		&favorite.UserID,
		&favorite.PharmacyID,
		&favorite.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Favorite{}, ErrNotFound
		}
		return types.Favorite{}, err
	}
	return favorite, nil
}
