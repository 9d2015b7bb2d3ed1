package handlers

import (
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
)

// PageHandler serves the static HTML pages of the site.
type PageHandler struct {
	dir string
}

func NewPageHandler(dir string) *PageHandler {
	return &PageHandler{dir: dir}
}

// PageRouter registers the navigation routes on the given router.
func PageRouter(r chi.Router, handler *PageHandler) {
	r.Get("/", handler.Home)
	r.Get("/about", handler.About)
	r.Get("/contact", handler.Contact)
}

func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(h.dir, "index.html"))
}

func (h *PageHandler) About(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(h.dir, "about.html"))
}

func (h *PageHandler) Contact(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(h.dir, "contact.html"))
}
