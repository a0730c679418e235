package clients

import (
	"context"
	"net/http"

	"github.com/andreasstove999/bnpl-storefront/internal/checkout"
)

// Order is one entry of the customer's order history.
type Order struct {
	OrderID        string               `json:"orderId"`
	QuoteReference string               `json:"quoteReference,omitempty"`
	Status         string               `json:"status"`
	Total          float64              `json:"total"`
	Currency       string               `json:"currency,omitempty"`
	CreatedAt      string               `json:"createdAt,omitempty"`
	Lines          []checkout.OrderLine `json:"lines,omitempty"`
}

type OrderClient struct{ c *Authorized }

func NewOrderClient(c *Authorized) *OrderClient { return &OrderClient{c: c} }

func (oc *OrderClient) ListOrders(ctx context.Context) ([]Order, error) {
	resp, err := oc.c.Do(ctx, http.MethodGet, "/api/v1/order/list", "", nil, acceptJSON())
	if err != nil {
		return nil, err
	}
	var out struct {
		Data []Order `json:"data"`
	}
	if err := readJSON("masoko", resp, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		out.Data = []Order{}
	}
	return out.Data, nil
}

func (oc *OrderClient) CreateOrder(ctx context.Context, payload checkout.OrderPayload) (checkout.OrderResponse, error) {
	body, h, err := jsonRequest(payload)
	if err != nil {
		return checkout.OrderResponse{}, err
	}
	resp, err := oc.c.Do(ctx, http.MethodPost, "/api/v1/order/create", "", body, h)
	if err != nil {
		return checkout.OrderResponse{}, err
	}
	var out checkout.OrderResponse
	if err := readJSON("masoko", resp, &out); err != nil {
		return checkout.OrderResponse{}, err
	}
	return out, nil
}
