package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/andreasstove999/bnpl-storefront/internal/catalog"
)

// CatalogClient reads products from the Masoko catalog.
type CatalogClient struct{ c *Authorized }

func NewCatalogClient(c *Authorized) *CatalogClient { return &CatalogClient{c: c} }

func (cc *CatalogClient) ListProducts(ctx context.Context, q catalog.Query) (catalog.Page, error) {
	resp, err := cc.c.Do(ctx, http.MethodGet, "/api/v1/products", q.Values().Encode(), nil, acceptJSON())
	if err != nil {
		return catalog.Page{}, err
	}
	var page catalog.Page
	if err := readJSON("masoko", resp, &page); err != nil {
		return catalog.Page{}, err
	}
	if page.Items == nil {
		page.Items = []catalog.Product{}
	}
	return page, nil
}

func (cc *CatalogClient) GetProduct(ctx context.Context, id string) (catalog.Product, error) {
	resp, err := cc.c.Do(ctx, http.MethodGet, "/api/v1/products/"+url.PathEscape(id), "", nil, acceptJSON())
	if err != nil {
		return catalog.Product{}, err
	}
	var p catalog.Product
	if err := readJSON("masoko", resp, &p); err != nil {
		return catalog.Product{}, err
	}
	return p, nil
}

// Resolve finds the product a cart reference names, whatever listing page it
// sits on. ref is tried as a product id first, then as a sku through search.
// Unknown references wrap ErrNotFound.
func (cc *CatalogClient) Resolve(ctx context.Context, ref string) (catalog.Product, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return catalog.Product{}, fmt.Errorf("%w: empty product reference", ErrNotFound)
	}

	p, err := cc.GetProduct(ctx, ref)
	switch {
	case err == nil:
		return p, nil
	case !errors.Is(err, ErrNotFound):
		return catalog.Product{}, err
	}

	page, err := cc.ListProducts(ctx, catalog.Query{Search: ref})
	if err != nil {
		return catalog.Product{}, err
	}
	if p, ok := catalog.Find(page.Items, ref); ok {
		return p, nil
	}
	return catalog.Product{}, fmt.Errorf("%w: product %q", ErrNotFound, ref)
}
