package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/andreasstove999/bnpl-storefront/internal/cart"
	"github.com/andreasstove999/bnpl-storefront/internal/catalog"
	"github.com/andreasstove999/bnpl-storefront/internal/clients"
)

type CatalogHandler struct {
	Common
	c *clients.CatalogClient
}

func NewCatalogHandler(c Common, cc *clients.CatalogClient) *CatalogHandler {
	return &CatalogHandler{Common: c, c: cc}
}

type productList struct {
	Items []cart.DecoratedProduct `json:"items"`
	Total int                     `json:"total"`
	Stale bool                    `json:"stale,omitempty"`
}

// ListProducts decorates the catalog with the caller's cart. When the
// catalog is unavailable a session's previous list is served as stale.
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	s := h.optionalSession(r)
	page, err := h.c.ListProducts(r.Context(), queryFrom(r))
	if err != nil {
		if s != nil {
			if last := s.Products.Sync(nil, nil, true); last != nil {
				writeJSON(w, http.StatusOK, productList{Items: last, Total: len(last), Stale: true})
				return
			}
		}
		h.fail(w, r, s, err)
		return
	}

	var items []cart.Item
	if s != nil {
		items = s.Cart.Items()
		writeJSON(w, http.StatusOK, productList{Items: s.Products.Sync(page.Items, items, false), Total: page.Total})
		return
	}
	writeJSON(w, http.StatusOK, productList{Items: cart.Decorate(page.Items, nil), Total: page.Total})
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	s := h.optionalSession(r)
	p, err := h.c.GetProduct(r.Context(), pathParam(r, "id"))
	if err != nil {
		h.fail(w, r, s, err)
		return
	}
	var items []cart.Item
	if s != nil {
		items = s.Cart.Items()
	}
	writeJSON(w, http.StatusOK, cart.Decorate([]catalog.Product{p}, items)[0])
}

func queryFrom(r *http.Request) catalog.Query {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("pageSize"))
	return catalog.Query{
		Category: q.Get("category"),
		Search:   q.Get("q"),
		Page:     page,
		PageSize: size,
	}
}

// pathParam returns the unescaped URL parameter. chi matches on the raw path
// when the request carries escaped separators.
func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v
	}
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}
