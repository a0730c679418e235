package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/andreasstove999/bnpl-storefront/internal/cart"
	"github.com/andreasstove999/bnpl-storefront/internal/catalog"
	"github.com/andreasstove999/bnpl-storefront/internal/clients"
	"github.com/andreasstove999/bnpl-storefront/internal/session"
)

type CartHandler struct {
	Common
	c *clients.CatalogClient
}

func NewCartHandler(c Common, cc *clients.CatalogClient) *CartHandler {
	return &CartHandler{Common: c, c: cc}
}

type cartResponse struct {
	Items []cart.Item `json:"items"`
	Count int         `json:"count"`
	Max   int         `json:"maxQuantity"`
}

func cartView(s *session.Session) cartResponse {
	items := s.Cart.Items()
	if items == nil {
		items = []cart.Item{}
	}
	return cartResponse{Items: items, Count: s.Cart.Count(), Max: cart.MaxQuantity}
}

func (h *CartHandler) GetCartMe(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, cartView(s))
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// AddItemMe only accepts ids or skus the catalog knows, on any listing page.
// The line is stored under the product id when it has one.
func (h *CartHandler) AddItemMe(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, s, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	if strings.TrimSpace(req.ProductID) == "" {
		h.fail(w, r, s, cart.ErrEmptyProductID)
		return
	}
	p, err := resolveProduct(r.Context(), h.c, req.ProductID)
	if err != nil {
		h.fail(w, r, s, err)
		return
	}
	key := cartKey(p)

	if _, err := s.Cart.Add(key, req.Quantity); err != nil {
		h.fail(w, r, s, err)
		return
	}
	writeJSON(w, http.StatusOK, cartView(s))
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) SetQuantityMe(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req setQuantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, s, err)
		return
	}
	if _, err := s.Cart.SetQuantity(pathParam(r, "productId"), req.Quantity); err != nil {
		h.fail(w, r, s, err)
		return
	}
	writeJSON(w, http.StatusOK, cartView(s))
}

func (h *CartHandler) RemoveItemMe(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if !s.Cart.Remove(pathParam(r, "productId")) {
		h.fail(w, r, s, cart.ErrItemNotFound)
		return
	}
	writeJSON(w, http.StatusOK, cartView(s))
}

// resolveProduct looks ref up in the catalog. A reference the catalog does
// not know is reported as cart.ErrUnknownProduct.
func resolveProduct(ctx context.Context, cc *clients.CatalogClient, ref string) (catalog.Product, error) {
	p, err := cc.Resolve(ctx, ref)
	if errors.Is(err, clients.ErrNotFound) {
		return catalog.Product{}, fmt.Errorf("%w: %q", cart.ErrUnknownProduct, ref)
	}
	return p, err
}

func cartKey(p catalog.Product) string {
	if p.ID != "" {
		return p.ID
	}
	return p.SKU
}
