package checkout

import (
	"strings"

	"github.com/andreasstove999/bnpl-storefront/internal/cart"
	"github.com/andreasstove999/bnpl-storefront/internal/catalog"
)

type Terms struct {
	Accepted bool   `json:"accepted"`
	Version  string `json:"version,omitempty"`
}

// Shipping is the first step's payload: delivery details plus the terms
// acceptance checkbox.
type Shipping struct {
	Terms    Terms  `json:"terms"`
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	City     string `json:"city,omitempty"`
	County   string `json:"county,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

func (s Shipping) Valid() bool {
	return s.Terms.Accepted &&
		strings.TrimSpace(s.FullName) != "" &&
		strings.TrimSpace(s.Phone) != "" &&
		strings.TrimSpace(s.Address) != ""
}

type PaymentOption struct {
	Plan         string  `json:"plan"`
	Installments int     `json:"installments"`
	Deposit      float64 `json:"deposit,omitempty"`
}

func (p PaymentOption) Valid() bool {
	return strings.TrimSpace(p.Plan) != "" && p.Installments >= 1 && p.Deposit >= 0
}

type Review struct {
	Confirmed bool `json:"confirmed"`
}

func (r Review) Valid() bool { return r.Confirmed }

type OrderLine struct {
	ProductID string  `json:"productId,omitempty"`
	SKU       string  `json:"sku,omitempty"`
	Name      string  `json:"name,omitempty"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

// OrderPayload is what the order submission step sends upstream.
type OrderPayload struct {
	Phone        string      `json:"phone"`
	Lines        []OrderLine `json:"lines"`
	Shipping     Shipping    `json:"shipping"`
	PaymentPlan  string      `json:"paymentPlan"`
	Installments int         `json:"installments"`
	Total        float64     `json:"total"`
	Currency     string      `json:"currency"`
}

func (o OrderPayload) Valid() bool {
	if len(o.Lines) == 0 {
		return false
	}
	for _, l := range o.Lines {
		if l.Quantity < 1 || l.Quantity > cart.MaxQuantity {
			return false
		}
	}
	return true
}

// OrderResponse is the upstream answer to an order submission. Any of the
// reference fields may be missing depending on the order backend.
type OrderResponse struct {
	QuoteReference string      `json:"quoteReference,omitempty"`
	OrderReference string      `json:"orderReference,omitempty"`
	OrderID        string      `json:"orderId,omitempty"`
	ID             string      `json:"id,omitempty"`
	Status         string      `json:"status,omitempty"`
	Lines          []OrderLine `json:"lines,omitempty"`
}

// DefaultCurrency is used when no product carries one.
const DefaultCurrency = "KES"

// LinesFromCart resolves cart items against products. Items whose product is
// unknown are skipped.
func LinesFromCart(items []cart.Item, products []catalog.Product) []OrderLine {
	lines := make([]OrderLine, 0, len(items))
	for _, it := range items {
		p, ok := catalog.Find(products, it.ProductID)
		if !ok {
			continue
		}
		lines = append(lines, OrderLine{
			ProductID: p.ID,
			SKU:       p.SKU,
			Name:      p.Name,
			Quantity:  it.Quantity,
			UnitPrice: p.Price,
		})
	}
	return lines
}

// BuildOrder assembles the submission payload from earlier steps.
func BuildOrder(shipping Shipping, payment PaymentOption, lines []OrderLine, currency string) OrderPayload {
	if currency == "" {
		currency = DefaultCurrency
	}
	var total float64
	for _, l := range lines {
		total += l.UnitPrice * float64(l.Quantity)
	}
	return OrderPayload{
		Phone:        shipping.Phone,
		Lines:        lines,
		Shipping:     shipping,
		PaymentPlan:  payment.Plan,
		Installments: payment.Installments,
		Total:        total,
		Currency:     currency,
	}
}
