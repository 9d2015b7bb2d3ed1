package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/pharmadir/apiserver/internal/mq"
	"github.com/pharmadir/apiserver/internal/storage"
	"github.com/pharmadir/apiserver/types"
	"go.uber.org/zap"
)

// ErrNoStorage is returned when an image operation runs without a
// configured object-storage backend.
var ErrNoStorage = errors.New("object storage is not configured")

// EventsChannel is the broker channel directory-change events go to.
const EventsChannel = "pharmacy-events"

const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// DirectoryEvent is the payload published on pharmacy mutations.
type DirectoryEvent struct {
	Action   string         `json:"action"`
	Pharmacy types.Pharmacy `json:"pharmacy"`
}

// PharmacyRepository defines persistence operations for directory entries.
type PharmacyRepository interface {
	List(ctx context.Context) ([]types.Pharmacy, error)
	Get(ctx context.Context, id int) (types.Pharmacy, error)
	Create(ctx context.Context, pharmacy types.Pharmacy) (types.Pharmacy, error)
	Update(ctx context.Context, pharmacy types.Pharmacy) (types.Pharmacy, error)
	UpdateImage(ctx context.Context, id int, image string) (types.Pharmacy, error)
	Delete(ctx context.Context, id int) (types.Pharmacy, error)
}

// PharmacyService encapsulates directory use-cases: CRUD over entries,
// photo storage, and best-effort change events.
type PharmacyService struct {
	repo    PharmacyRepository
	storage *storage.Storage
	broker  *mq.MQ
	logger  *zap.Logger
}

// NewPharmacyService constructs a PharmacyService. storage and broker may
// be nil when the corresponding backend is not configured.
func NewPharmacyService(repo PharmacyRepository, store *storage.Storage, broker *mq.MQ, logger *zap.Logger) *PharmacyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PharmacyService{
		repo:    repo,
		storage: store,
		broker:  broker,
		logger:  logger,
	}
}

func (s *PharmacyService) List(ctx context.Context) ([]types.Pharmacy, error) {
	return s.repo.List(ctx)
}

func (s *PharmacyService) Get(ctx context.Context, id int) (types.Pharmacy, error) {
	return s.repo.Get(ctx, id)
}

func (s *PharmacyService) Create(ctx context.Context, pharmacy types.Pharmacy) (types.Pharmacy, error) {
	created, err := s.repo.Create(ctx, pharmacy)
	if err != nil {
		return types.Pharmacy{}, err
	}
	s.publish(ctx, EventCreated, created)
	return created, nil
}

func (s *PharmacyService) Update(ctx context.Context, pharmacy types.Pharmacy) (types.Pharmacy, error) {
	updated, err := s.repo.Update(ctx, pharmacy)
	if err != nil {
		return types.Pharmacy{}, err
	}
	s.publish(ctx, EventUpdated, updated)
	return updated, nil
}

func (s *PharmacyService) Delete(ctx context.Context, id int) (types.Pharmacy, error) {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return types.Pharmacy{}, err
	}
	s.publish(ctx, EventDeleted, deleted)
	return deleted, nil
}

// StoreImage uploads a photo for the entry and records its object key in
// the image column. The key is content-addressed so re-uploads of the
// same bytes land on the same object.
func (s *PharmacyService) StoreImage(ctx context.Context, id int, data []byte, contentType string) (types.Pharmacy, error) {
	if s.storage == nil {
		return types.Pharmacy{}, ErrNoStorage
	}

	if _, err := s.repo.Get(ctx, id); err != nil {
		return types.Pharmacy{}, err
	}

	sum := sha256.Sum256(data)
	key := fmt.Sprintf("pharmacies/%d/%s", id, hex.EncodeToString(sum[:]))
	if err := s.storage.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return types.Pharmacy{}, err
	}

	return s.repo.UpdateImage(ctx, id, key)
}

// OpenImage opens a reader for the entry's stored photo.
func (s *PharmacyService) OpenImage(ctx context.Context, id int) (io.ReadCloser, error) {
	if s.storage == nil {
		return nil, ErrNoStorage
	}

	pharmacy, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if pharmacy.Image == "" {
		return nil, errors.New("pharmacy has no stored image")
	}

	return s.storage.Get(ctx, pharmacy.Image)
}

// publish emits a directory-change event. Broker failures are logged and
// never fail the request.
func (s *PharmacyService) publish(ctx context.Context, action string, pharmacy types.Pharmacy) {
	if s.broker == nil {
		return
	}

	data, err := json.Marshal(DirectoryEvent{Action: action, Pharmacy: pharmacy})
	if err != nil {
		s.logger.Warn("encode directory event", zap.Error(err))
		return
	}

	attrs := map[string]string{"action": action}
	if _, err := s.broker.Publish(ctx, EventsChannel, data, attrs); err != nil {
		s.logger.Warn("publish directory event",
			zap.String("action", action),
			zap.Int("pharmacy_id", pharmacy.ID),
			zap.Error(err),
		)
	}
}
