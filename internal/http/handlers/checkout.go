package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/andreasstove999/bnpl-storefront/internal/cart"
	"github.com/andreasstove999/bnpl-storefront/internal/catalog"
	"github.com/andreasstove999/bnpl-storefront/internal/checkout"
	"github.com/andreasstove999/bnpl-storefront/internal/clients"
	"github.com/andreasstove999/bnpl-storefront/internal/events"
	"github.com/andreasstove999/bnpl-storefront/internal/middleware"
	"github.com/andreasstove999/bnpl-storefront/internal/session"
)

const resolveConcurrency = 4

type CheckoutHandler struct {
	Common
	catalog *clients.CatalogClient
	orders  *clients.OrderClient
}

func NewCheckoutHandler(c Common, cc *clients.CatalogClient, oc *clients.OrderClient) *CheckoutHandler {
	return &CheckoutHandler{Common: c, catalog: cc, orders: oc}
}

type checkoutResponse struct {
	checkout.State
	Reference string `json:"reference,omitempty"`
}

func (h *CheckoutHandler) State(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, checkoutResponse{State: s.Checkout.State()})
}

// SubmitStep stores the customer's input for a step. The order submission
// step takes no body: the order is built from the cart and earlier steps
// and sent upstream.
func (h *CheckoutHandler) SubmitStep(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	step, err := strconv.Atoi(chi.URLParam(r, "step"))
	if err != nil {
		h.fail(w, r, s, fmt.Errorf("%w: %q", checkout.ErrUnknownStep, chi.URLParam(r, "step")))
		return
	}
	if step == checkout.StepOrderSubmission {
		h.submitOrder(w, r, s)
		return
	}

	payload, err := decodeStep(w, r, step)
	if err != nil {
		h.fail(w, r, s, err)
		return
	}
	if err := s.Checkout.Submit(step, payload); err != nil {
		h.fail(w, r, s, err)
		return
	}
	writeJSON(w, http.StatusOK, checkoutResponse{State: s.Checkout.State()})
}

func decodeStep(w http.ResponseWriter, r *http.Request, step int) (any, error) {
	switch step {
	case checkout.StepShipping:
		return decodeAs[checkout.Shipping](w, r)
	case checkout.StepPaymentOption:
		return decodeAs[checkout.PaymentOption](w, r)
	case checkout.StepReview:
		return decodeAs[checkout.Review](w, r)
	case checkout.StepProcessing, checkout.StepDone:
		return nil, fmt.Errorf("%w: step %d is filled by the storefront", checkout.ErrPayloadType, step)
	default:
		return nil, fmt.Errorf("%w: %d", checkout.ErrUnknownStep, step)
	}
}

func decodeAs[T any](w http.ResponseWriter, r *http.Request) (any, error) {
	var v T
	if err := decodeJSON(w, r, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (h *CheckoutHandler) submitOrder(w http.ResponseWriter, r *http.Request, s *session.Session) {
	if _, ok := s.User(); !ok {
		h.fail(w, r, s, checkout.ErrNotAuthenticated)
		return
	}
	if cur := s.Checkout.Current(); cur != checkout.StepOrderSubmission {
		h.fail(w, r, s, fmt.Errorf("%w: orders are submitted at step %d, checkout is at step %d",
			checkout.ErrStepNotReached, checkout.StepOrderSubmission, cur))
		return
	}

	items := s.Cart.Items()
	products, err := h.cartProducts(r.Context(), items)
	if err != nil {
		h.fail(w, r, s, err)
		return
	}
	shipping, _ := checkout.StepData[checkout.Shipping](s.Checkout, checkout.StepShipping)
	payment, _ := checkout.StepData[checkout.PaymentOption](s.Checkout, checkout.StepPaymentOption)
	lines := checkout.LinesFromCart(items, products)
	order := checkout.BuildOrder(shipping, payment, lines, currencyOf(products))

	// Step 4 only ever holds an order the upstream accepted.
	if err := s.Checkout.Validate(checkout.StepOrderSubmission, order); err != nil {
		h.fail(w, r, s, err)
		return
	}
	resp, err := h.orders.CreateOrder(r.Context(), order)
	if err != nil {
		h.fail(w, r, s, err)
		return
	}
	if err := s.Checkout.Submit(checkout.StepOrderSubmission, order); err != nil {
		h.fail(w, r, s, err)
		return
	}
	if _, err := s.Checkout.Next(); err != nil {
		h.fail(w, r, s, err)
		return
	}
	if err := s.Checkout.Submit(checkout.StepProcessing, resp); err != nil {
		h.fail(w, r, s, err)
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{
		State:     s.Checkout.State(),
		Reference: checkout.ResolveOrderReference(&resp, order.Lines),
	})
}

// Next advances the wizard. Reaching the last step announces the completed
// checkout.
func (h *CheckoutHandler) Next(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, err := s.Checkout.Next(); err != nil {
		h.fail(w, r, s, err)
		return
	}

	out := checkoutResponse{State: s.Checkout.State()}
	if out.Done {
		sum := s.Checkout.Summary()
		out.Reference = sum.Reference
		h.publishCompleted(r, s, sum.Reference)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CheckoutHandler) Back(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Checkout.Back()
	writeJSON(w, http.StatusOK, checkoutResponse{State: s.Checkout.State()})
}

// Reset starts over. Leaving a finished checkout also empties the cart.
func (h *CheckoutHandler) Reset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if s.Checkout.Done() {
		s.Cart.Clear()
	}
	s.Checkout.Reset()
	writeJSON(w, http.StatusOK, checkoutResponse{State: s.Checkout.State()})
}

func (h *CheckoutHandler) Summary(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Checkout.Summary())
}

func (h *CheckoutHandler) publishCompleted(r *http.Request, s *session.Session, reference string) {
	if h.Events == nil {
		return
	}
	order, _ := checkout.StepData[checkout.OrderPayload](s.Checkout, checkout.StepOrderSubmission)
	u, _ := s.User()

	items := 0
	for _, l := range order.Lines {
		items += l.Quantity
	}
	payload := events.CheckoutCompletedPayload{
		SessionID:    s.ID,
		UserID:       u.ID,
		Reference:    reference,
		Total:        order.Total,
		Currency:     order.Currency,
		ItemCount:    items,
		PaymentPlan:  order.PaymentPlan,
		Installments: order.Installments,
	}
	meta := events.EnvelopeMetadata{CorrelationID: middleware.GetCorrelationID(r.Context())}
	if err := h.Events.PublishCheckoutCompleted(r.Context(), payload, meta); err != nil {
		h.logger().Warn("publish checkout completed failed", zap.String("session_id", s.ID), zap.Error(err))
	}
}

// cartProducts resolves every cart line against the catalog. One line the
// catalog cannot place fails the whole order.
func (h *CheckoutHandler) cartProducts(ctx context.Context, items []cart.Item) ([]catalog.Product, error) {
	products := make([]catalog.Product, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for i, it := range items {
		g.Go(func() error {
			p, err := resolveProduct(gctx, h.catalog, it.ProductID)
			if err != nil {
				return err
			}
			products[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return products, nil
}

func currencyOf(products []catalog.Product) string {
	for _, p := range products {
		if p.Currency != "" {
			return p.Currency
		}
	}
	return checkout.DefaultCurrency
}
