package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pharmadir/apiserver/types"
)

// PharmacyRepository handles persistence for directory entries.
type PharmacyRepository struct {
	db *sql.DB
}

func NewPharmacyRepository(db *sql.DB) *PharmacyRepository {
	return &PharmacyRepository{db: db}
}

func (r *PharmacyRepository) List(ctx context.Context) ([]types.Pharmacy, error) {
	const query = `
		SELECT id, name, address, city, phone, schedule, guard, delivery, status, image, created_at, updated_at
		FROM pharmacies
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pharmacies := make([]types.Pharmacy, 0)
	for rows.Next() {
		var pharmacy types.Pharmacy
		if err := rows.Scan(
			&pharmacy.ID,
			&pharmacy.Name,
			&pharmacy.Address,
			&pharmacy.City,
			&pharmacy.Phone,
			&pharmacy.Schedule,
			&pharmacy.Guard,
			&pharmacy.Delivery,
			&pharmacy.Status,
			&pharmacy.Image,
			&pharmacy.CreatedAt,
			&pharmacy.UpdatedAt,
		); err != nil {
			return nil, err
		}
		pharmacies = append(pharmacies, pharmacy)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return pharmacies, nil
}

func (r *PharmacyRepository) Get(ctx context.Context, id int) (types.Pharmacy, error) {
	const query = `
		SELECT id, name, address, city, phone, schedule, guard, delivery, status, image, created_at, updated_at
		FROM pharmacies
		WHERE id = $1`
	var pharmacy types.Pharmacy
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&pharmacy.ID,
		&pharmacy.Name,
		&pharmacy.Address,
		&pharmacy.City,
		&pharmacy.Phone,
		&pharmacy.Schedule,
		&pharmacy.Guard,
		&pharmacy.Delivery,
		&pharmacy.Status,
		&pharmacy.Image,
		&pharmacy.CreatedAt,
		&pharmacy.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Pharmacy{}, ErrNotFound
		}
		return types.Pharmacy{}, err
	}
	return pharmacy, nil
}

func (r *PharmacyRepository) Create(ctx context.Context, pharmacy types.Pharmacy) (types.Pharmacy, error) {
	now := time.Now()
	pharmacy.CreatedAt = now
	pharmacy.UpdatedAt = now

	const query = `
		INSERT INTO pharmacies (name, address, city, phone, schedule, guard, delivery, status, image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		pharmacy.Name,
		pharmacy.Address,
		pharmacy.City,
		pharmacy.Phone,
		pharmacy.Schedule,
		pharmacy.Guard,
		pharmacy.Delivery,
		pharmacy.Status,
		pharmacy.Image,
		pharmacy.CreatedAt,
		pharmacy.UpdatedAt,
	).Scan(&pharmacy.ID); err != nil {
		return types.Pharmacy{}, err
	}

	return pharmacy, nil
}

// Update replaces all nine directory attributes of the entry. Last writer
// wins; there is no optimistic concurrency check.
func (r *PharmacyRepository) Update(ctx context.Context, pharmacy types.Pharmacy) (types.Pharmacy, error) {
	pharmacy.UpdatedAt = time.Now()

	const query = `
		UPDATE pharmacies
		SET name = $1,
			address = $2,
			city = $3,
			phone = $4,
			schedule = $5,
			guard = $6,
			delivery = $7,
			status = $8,
			image = $9,
			updated_at = $10
		WHERE id = $11
		RETURNING created_at`
	err := r.db.QueryRowContext(
		ctx,
		query,
		pharmacy.Name,
		pharmacy.Address,
		pharmacy.City,
		pharmacy.Phone,
		pharmacy.Schedule,
		pharmacy.Guard,
		pharmacy.Delivery,
		pharmacy.Status,
		pharmacy.Image,
		pharmacy.UpdatedAt,
		pharmacy.ID,
	).Scan(&pharmacy.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Pharmacy{}, ErrNotFound
		}
		return types.Pharmacy{}, err
	}

	return pharmacy, nil
}

// UpdateImage writes the object-storage key of the entry's photo.
func (r *PharmacyRepository) UpdateImage(ctx context.Context, id int, image string) (types.Pharmacy, error) {
	const query = `
		UPDATE pharmacies
		SET image = $1,
			updated_at = $2
		WHERE id = $3
		RETURNING id, name, address, city, phone, schedule, guard, delivery, status, image, created_at, updated_at`
	var pharmacy types.Pharmacy
	err := r.db.QueryRowContext(ctx, query, image, time.Now(), id).Scan(
		&pharmacy.ID,
		&pharmacy.Name,
		&pharmacy.Address,
		&pharmacy.City,
		&pharmacy.Phone,
		&pharmacy.Schedule,
		&pharmacy.Guard,
		&pharmacy.Delivery,
		&pharmacy.Status,
		&pharmacy.Image,
		&pharmacy.CreatedAt,
		&pharmacy.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Pharmacy{}, ErrNotFound
		}
		return types.Pharmacy{}, err
	}
	return pharmacy, nil
}

// Delete removes the entry and returns the deleted row.
func (r *PharmacyRepository) Delete(ctx context.Context, id int) (types.Pharmacy, error) {
	const query = `
		DELETE FROM pharmacies
		WHERE id = $1
		RETURNING id, name, address, city, phone, schedule, guard, delivery, status, image, created_at, updated_at`
	var pharmacy types.Pharmacy
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&pharmacy.ID,
		&pharmacy.Name,
		&pharmacy.Address,
		&pharmacy.City,
		&pharmacy.Phone,
		&pharmacy.Schedule,
		&pharmacy.Guard,
		&pharmacy.Delivery,
		&pharmacy.Status,
		&pharmacy.Image,
		&pharmacy.CreatedAt,
		&pharmacy.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Pharmacy{}, ErrNotFound
		}
		return types.Pharmacy{}, err
	}
	return pharmacy, nil
}
