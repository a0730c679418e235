// Package catalog holds the Masoko product model shared by the cart and the
// catalog client.
package catalog

import (
	"net/url"
	"strconv"
	"strings"
)

type Product struct {
	ID          string  `json:"id"`
	SKU         string  `json:"sku"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency,omitempty"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	Category    string  `json:"category,omitempty"`
	InStock     bool    `json:"inStock"`
}

type Page struct {
	Items []Product `json:"items"`
	Total int       `json:"total"`
}

type Query struct {
	Category string
	Search   string
	Page     int
	PageSize int
}

// Values encodes q as upstream query parameters, skipping zero fields.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Search != "" {
		v.Set("q", q.Search)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	return v
}

// Matches reports whether id identifies p by id or sku. Blank values never
// match.
func Matches(p Product, id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	if pid := strings.TrimSpace(p.ID); pid != "" && pid == id {
		return true
	}
	if sku := strings.TrimSpace(p.SKU); sku != "" && sku == id {
		return true
	}
	return false
}

// Find returns the first product identified by id.
func Find(products []Product, id string) (Product, bool) {
	for _, p := range products {
		if Matches(p, id) {
			return p, true
		}
	}
	return Product{}, false
}
