package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pharmadir/apiserver/internal/services"
	"github.com/pharmadir/apiserver/internal/store"
	"github.com/pharmadir/apiserver/types"
	"go.uber.org/zap"
)

const (
	maxImageMemory = 8 << 20
	maxImageBytes  = 8 << 20
	formFieldImage = "image"
)

// PharmacyDirectory defines the directory operations the HTTP layer needs.
type PharmacyDirectory interface {
	List(ctx context.Context) ([]types.Pharmacy, error)
	Create(ctx context.Context, pharmacy types.Pharmacy) (types.Pharmacy, error)
	Update(ctx context.Context, pharmacy types.Pharmacy) (types.Pharmacy, error)
	Delete(ctx context.Context, id int) (types.Pharmacy, error)
	StoreImage(ctx context.Context, id int, data []byte, contentType string) (types.Pharmacy, error)
	OpenImage(ctx context.Context, id int) (io.ReadCloser, error)
}

// PharmacyHandler provides HTTP handlers for the pharmacy directory.
type PharmacyHandler struct {
	directory PharmacyDirectory
	logger    *zap.Logger
}

// NewPharmacyHandler constructs a handler with the provided service.
func NewPharmacyHandler(directory PharmacyDirectory, logger *zap.Logger) *PharmacyHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PharmacyHandler{directory: directory, logger: logger}
}

// PharmacyRouter registers pharmacy routes on the given router. Listing
// is public; every mutation requires authentication.
func PharmacyRouter(r chi.Router, handler *PharmacyHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Get("/pharmacies", handler.List)
	r.Route("/pharmacy", func(r chi.Router) {
		r.With(authMiddleware).Post("/", handler.Create)
		r.Route("/{pharmacyID}", func(r chi.Router) {
			r.With(authMiddleware).Patch("/", handler.Update)
			r.With(authMiddleware).Delete("/", handler.Delete)
			r.With(authMiddleware).Post("/image", handler.UploadImage)
			r.Get("/image", handler.GetImage)
		})
	})
}

// PharmacyUpsertRequest carries the nine directory attributes for
// create and full-replace update.
type PharmacyUpsertRequest struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	City     string `json:"city"`
	Phone    string `json:"phone"`
	Schedule string `json:"schedule"`
	Guard    bool   `json:"guard"`
	Delivery bool   `json:"delivery"`
	Status   string `json:"status"`
	Image    string `json:"image"`
}

// PharmacyResponse wraps a mutated row with a confirmation message.
type PharmacyResponse struct {
	Message string         `json:"message"`
	Result  types.Pharmacy `json:"result"`
}

func (h *PharmacyHandler) List(w http.ResponseWriter, r *http.Request) {
	pharmacies, err := h.directory.List(r.Context())
	if err != nil {
		h.logger.Error("list pharmacies", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list pharmacies")
		return
	}

	writeJSON(w, http.StatusOK, pharmacies)
}

func (h *PharmacyHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, err := parsePharmacyBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.directory.Create(r.Context(), req.pharmacy())
	if err != nil {
		h.logger.Error("create pharmacy", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create pharmacy")
		return
	}

	writeJSON(w, http.StatusOK, PharmacyResponse{Message: "added successfully", Result: created})
}

func (h *PharmacyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parsePharmacyID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req, err := parsePharmacyBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pharmacy := req.pharmacy()
	pharmacy.ID = id
	updated, err := h.directory.Update(r.Context(), pharmacy)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "pharmacy not found")
			return
		}
		h.logger.Error("update pharmacy", zap.Int("pharmacy_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update pharmacy")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *PharmacyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parsePharmacyID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	deleted, err := h.directory.Delete(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "pharmacy not found")
			return
		}
		h.logger.Error("delete pharmacy", zap.Int("pharmacy_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete pharmacy")
		return
	}

	writeJSON(w, http.StatusOK, deleted)
}

// UploadImage stores a photo for the entry in object storage and records
// its key in the image column.
func (h *PharmacyHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, err := parsePharmacyID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, contentType, err := parseImageUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.directory.StoreImage(r.Context(), id, data, contentType)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "pharmacy not found")
		case errors.Is(err, services.ErrNoStorage):
			writeError(w, http.StatusServiceUnavailable, "image storage is not available")
		default:
			h.logger.Error("store pharmacy image", zap.Int("pharmacy_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to store image")
		}
		return
	}

	writeJSON(w, http.StatusOK, PharmacyResponse{Message: "image stored", Result: updated})
}

// GetImage streams the entry's stored photo.
func (h *PharmacyHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, err := parsePharmacyID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reader, err := h.directory.OpenImage(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "pharmacy not found")
		case errors.Is(err, services.ErrNoStorage):
			writeError(w, http.StatusServiceUnavailable, "image storage is not available")
		default:
			writeError(w, http.StatusNotFound, "image not found")
		}
		return
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, maxImageBytes))
	if err != nil {
		h.logger.Error("read pharmacy image", zap.Int("pharmacy_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read image")
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (r PharmacyUpsertRequest) pharmacy() types.Pharmacy {
	return types.Pharmacy{
		Name:     r.Name,
		Address:  r.Address,
		City:     r.City,
		Phone:    r.Phone,
		Schedule: r.Schedule,
		Guard:    r.Guard,
		Delivery: r.Delivery,
		Status:   r.Status,
		Image:    r.Image,
	}
}

func parsePharmacyID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "pharmacyID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid pharmacy id")
	}
	return id, nil
}

func parsePharmacyBody(r *http.Request) (PharmacyUpsertRequest, error) {
	var req PharmacyUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return PharmacyUpsertRequest{}, errors.New("invalid request")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return PharmacyUpsertRequest{}, errors.New("name is required")
	}
	return req, nil
}

func parseImageUpload(r *http.Request) ([]byte, string, error) {
	if err := r.ParseMultipartForm(maxImageMemory); err != nil {
		return nil, "", errors.New("invalid multipart form")
	}
	if r.MultipartForm == nil {
		return nil, "", errors.New("missing form data")
	}

	files := r.MultipartForm.File[formFieldImage]
	if len(files) == 0 {
		return nil, "", errors.New("image file is required")
	}
	if len(files) > 1 {
		return nil, "", errors.New("only one image file is allowed")
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		return nil, "", errors.New("failed to read image file")
	}

	data, err := readFileLimited(file, maxImageBytes)
	_ = file.Close()
	if err != nil {
		return nil, "", err
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
