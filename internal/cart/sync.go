package cart

import (
	"sync"

	"github.com/andreasstove999/bnpl-storefront/internal/catalog"
)

// DecoratedProduct is a catalog product joined with the cart.
type DecoratedProduct struct {
	catalog.Product
	InCart       bool `json:"inCart"`
	CartQuantity int  `json:"cartQuantity"`
	Quantity     int  `json:"quantity"`
}

// Decorate marks every product that a cart item refers to by id or sku.
// The first matching item wins.
func Decorate(products []catalog.Product, items []Item) []DecoratedProduct {
	out := make([]DecoratedProduct, 0, len(products))
	for _, p := range products {
		d := DecoratedProduct{Product: p}
		for _, it := range items {
			if catalog.Matches(p, it.ProductID) {
				d.InCart = true
				d.CartQuantity = it.Quantity
				d.Quantity = it.Quantity
				break
			}
		}
		out = append(out, d)
	}
	return out
}

// Syncer keeps the last decoration so callers can keep showing it while the
// product list is reloading.
type Syncer struct {
	mu   sync.Mutex
	last []DecoratedProduct
}

// Sync recomputes the decoration unless loading is set, in which case the
// previous result is returned unchanged.
func (s *Syncer) Sync(products []catalog.Product, items []Item, loading bool) []DecoratedProduct {
	s.mu.Lock()
	defer s.mu.Unlock()

	if loading {
		return s.last
	}
	s.last = Decorate(products, items)
	return s.last
}

func (s *Syncer) Last() []DecoratedProduct {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
