package proxy

import (
	"net/http"

	"github.com/go-chi/chi"
)

// Catalog, upload and variant sub-routes. These stay thin: all business
// logic lives upstream, the handlers only pick the addressing strategy.
// Creation endpoints use two-step fallback because older backend deploys
// predate the lite namespace.

func (h *Handler) CreateCollection(w http.ResponseWriter, r *http.Request) {
	h.forwardWithFallback(w, r, "collections")
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	h.forwardWithFallback(w, r, "product-categories")
}

func (h *Handler) CreateUpload(w http.ResponseWriter, r *http.Request) {
	h.forwardWithFallback(w, r, "uploads")
}

func (h *Handler) CreateVariant(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	h.forwardWithFallback(w, r, "products/"+productID+"/variants")
}

func (h *Handler) UpdateVariant(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	variantID := chi.URLParam(r, "variantID")
	h.forwardWithFallback(w, r, "products/"+productID+"/variants/"+variantID)
}
