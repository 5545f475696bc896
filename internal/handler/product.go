package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/larderapp/larder/internal/auth"
	"github.com/larderapp/larder/internal/catalog"
	"github.com/larderapp/larder/internal/model"
	"github.com/larderapp/larder/internal/remote"
	"github.com/larderapp/larder/internal/store"
	"github.com/larderapp/larder/internal/websocket"
)

type ProductHandler struct {
	products   *store.ProductStore
	households *store.HouseholdStore
	catalog    *catalog.Client
	dir        remote.Directory // nil when the directory is disabled
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewProductHandler(products *store.ProductStore, households *store.HouseholdStore, cat *catalog.Client, dir remote.Directory, hub *websocket.Hub, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		products:   products,
		households: households,
		catalog:    cat,
		dir:        dir,
		hub:        hub,
		logger:     logger,
	}
}

func (h *ProductHandler) requireMember(w http.ResponseWriter, r *http.Request, householdID int64) *model.HouseholdMember {
	m, err := h.households.GetMember(householdID, auth.UserUID(r.Context()))
	if err != nil {
		h.logger.Error("membership lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil
	}
	if m == nil {
		writeError(w, http.StatusForbidden, "not a member of this household")
		return nil
	}
	return m
}

type createProductRequest struct {
	Name       string `json:"name"`
	Brand      string `json:"brand,omitempty"`
	Barcode    string `json:"barcode,omitempty"`
	Quantity   string `json:"quantity,omitempty"`
	BestBefore string `json:"best_before"` // YYYY-MM-DD
	ImageURL   string `json:"image_url,omitempty"`
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	householdID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	member := h.requireMember(w, r, householdID)
	if member == nil {
		return
	}
	if member.Role == model.RoleReadonly {
		writeError(w, http.StatusForbidden, "readonly members cannot add products")
		return
	}

	var req createProductRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	bestBefore, err := time.Parse("2006-01-02", req.BestBefore)
	if err != nil {
		writeError(w, http.StatusBadRequest, "best_before must be a YYYY-MM-DD date")
		return
	}

	hh, err := h.households.GetByID(householdID)
	if err != nil || hh == nil {
		h.logger.Error("household lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	p := &model.Product{
		HouseholdID:       householdID,
		RemoteHouseholdID: hh.RemoteID,
		ProductID:         uuid.NewString(),
		CreatedBy:         member.UserID,
		Name:              req.Name,
		Brand:             req.Brand,
		Barcode:           req.Barcode,
		Quantity:          req.Quantity,
		BestBefore:        bestBefore,
		ImageURL:          req.ImageURL,
	}

	// Fetch the catalog photo while we still have the URL; a failure just
	// leaves the product without a cached image.
	if req.ImageURL != "" {
		if img, err := h.catalog.FetchImage(r.Context(), req.ImageURL); err != nil {
			h.logger.Warn("product image not cached", "url", req.ImageURL, "error", err)
		} else {
			p.Image = img
		}
	}

	created, err := h.products.Create(p)
	if err != nil {
		h.logger.Error("create product", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.mirrorProduct(r, hh, created)
	h.hub.Broadcast(websocket.NewMessage("product", "created", householdID, map[string]any{"product_id": created.ProductID}))
	writeJSON(w, http.StatusCreated, created)
}

// mirrorProduct pushes the product to the directory when the household is
// synced. Failures are logged; the product stays local-only until the
// next write.
func (h *ProductHandler) mirrorProduct(r *http.Request, hh *model.Household, p *model.Product) {
	if h.dir == nil || hh.RemoteID == "" {
		return
	}
	err := h.dir.PutProduct(r.Context(), hh.RemoteID, remote.Product{
		ProductID:  p.ProductID,
		CreatedBy:  p.CreatedBy,
		Name:       p.Name,
		Brand:      p.Brand,
		Barcode:    p.Barcode,
		Quantity:   p.Quantity,
		BestBefore: p.BestBefore,
		EnteredAt:  p.EnteredAt,
		ImageURL:   p.ImageURL,
	})
	if err != nil {
		h.logger.Warn("product not mirrored to directory", "product_id", p.ProductID, "error", err)
		return
	}
	if err := h.products.MarkSynced(p.ID); err != nil {
		h.logger.Error("product sync flag not recorded", "product_id", p.ProductID, "error", err)
		return
	}
	p.Synced = true
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	householdID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.requireMember(w, r, householdID) == nil {
		return
	}

	products, err := h.products.ListByHousehold(householdID)
	if err != nil {
		h.logger.Error("list products", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if products == nil {
		products = []model.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "product_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.products.GetByID(productID)
	if err != nil {
		h.logger.Error("product lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	member := h.requireMember(w, r, p.HouseholdID)
	if member == nil {
		return
	}
	if member.Role == model.RoleReadonly {
		writeError(w, http.StatusForbidden, "readonly members cannot delete products")
		return
	}

	if err := h.products.Delete(productID); err != nil {
		h.logger.Error("delete product", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.hub.Broadcast(websocket.NewMessage("product", "deleted", p.HouseholdID, map[string]any{"product_id": p.ProductID}))
	w.WriteHeader(http.StatusNoContent)
}

// Image serves the cached product photo.
func (h *ProductHandler) Image(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "product_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.products.GetByID(productID)
	if err != nil {
		h.logger.Error("product lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if p == nil || len(p.Image) == 0 {
		writeError(w, http.StatusNotFound, "no image")
		return
	}
	if h.requireMember(w, r, p.HouseholdID) == nil {
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(p.Image))
	w.Write(p.Image)
}

// Lookup resolves a barcode against the product catalog.
func (h *ProductHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	barcode := strings.TrimSpace(r.PathValue("barcode"))
	if barcode == "" {
		writeError(w, http.StatusBadRequest, "barcode is required")
		return
	}

	p, err := h.catalog.Lookup(r.Context(), barcode)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "barcode not found in catalog")
			return
		}
		h.logger.Error("catalog lookup", "barcode", barcode, "error", err)
		writeError(w, http.StatusBadGateway, "catalog unavailable")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
