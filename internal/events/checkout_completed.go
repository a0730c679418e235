package events

import "time"

type CheckoutCompletedPayload struct {
	SessionID    string    `json:"sessionId"`
	UserID       string    `json:"userId,omitempty"`
	Reference    string    `json:"reference"`
	Total        float64   `json:"total"`
	Currency     string    `json:"currency"`
	ItemCount    int       `json:"itemCount"`
	PaymentPlan  string    `json:"paymentPlan,omitempty"`
	Installments int       `json:"installments,omitempty"`
	CompletedAt  time.Time `json:"completedAt"`
}

type CheckoutCompletedEvent = EventEnvelope[CheckoutCompletedPayload]

// BuildCheckoutCompletedEnvelope partitions by session so one customer's
// checkouts stay ordered.
func BuildCheckoutCompletedEnvelope(p CheckoutCompletedPayload, meta EnvelopeMetadata, now time.Time) CheckoutCompletedEvent {
	if p.CompletedAt.IsZero() {
		p.CompletedAt = now.UTC()
	}
	return newEnvelope(EventCheckoutCompleted, 1, p.SessionID, p, meta, now)
}
