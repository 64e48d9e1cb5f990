package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"store-service/internal/models"
)

type ProductCatalog interface {
	Add(ctx context.Context, p *models.Product) (*models.Product, error)
	Find(ctx context.Context, id int64) (*models.Product, error)
	Update(ctx context.Context, id int64, replacement *models.Product) (*models.Product, error)
	Patch(ctx context.Context, id int64, partial *models.ProductPatch) (*models.Product, error)
	Remove(ctx context.Context, id int64) error
	ListAll(ctx context.Context) ([]models.Product, error)
	FindExpensiveLowStock(ctx context.Context, minPrice float64, maxQuantity int) ([]models.Product, error)
}

type ProductHandler struct {
	catalog ProductCatalog
	log     *slog.Logger
}

func NewProductHandler(catalog ProductCatalog, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{catalog: catalog, log: logger}
}

// ProductRequest is the body of add and full update. Store-owned fields are
// rejected as unknown.
type ProductRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
}

func (req ProductRequest) product() *models.Product {
	return &models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Quantity:    req.Quantity,
	}
}

func (h *ProductHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	p, err := h.catalog.Add(r.Context(), req.product())
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	w.Header().Set("Location", "/products/public/"+strconv.FormatInt(p.ID, 10))
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProductHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "product")
	if !ok {
		return
	}

	p, err := h.catalog.Find(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "product")
	if !ok {
		return
	}

	var req ProductRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	p, err := h.catalog.Update(r.Context(), id, req.product())
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Patch(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "product")
	if !ok {
		return
	}

	var partial models.ProductPatch
	if ok := decodeJSON(w, r, &partial); !ok {
		return
	}

	p, err := h.catalog.Patch(r.Context(), id, &partial)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "product")
	if !ok {
		return
	}

	if err := h.catalog.Remove(r.Context(), id); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

func (h *ProductHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListAll(r.Context())
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, products)
}

// ExpensiveLowStock answers 204 when nothing matches.
func (h *ProductHandler) ExpensiveLowStock(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	minPrice, err := strconv.ParseFloat(q.Get("minPrice"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "minPrice must be a number", nil)
		return
	}

	// quantity is a 32-bit column
	maxQuantity, err := strconv.ParseInt(q.Get("maxQuantity"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "maxQuantity must be a 32-bit integer", nil)
		return
	}

	products, err := h.catalog.FindExpensiveLowStock(r.Context(), minPrice, int(maxQuantity))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	if len(products) == 0 {
		writeJSON(w, http.StatusNoContent, nil)
		return
	}

	writeJSON(w, http.StatusOK, products)
}
