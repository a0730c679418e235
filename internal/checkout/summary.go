package checkout

import (
	"fmt"
	"strconv"
	"strings"
)

// Summary is the review and done screen view of the checkout. Every field
// falls back to a placeholder when the step that provides it is missing.
type Summary struct {
	Reference    string      `json:"reference"`
	Recipient    string      `json:"recipient"`
	Phone        string      `json:"phone"`
	Address      string      `json:"address"`
	PaymentPlan  string      `json:"paymentPlan"`
	Installments string      `json:"installments"`
	Total        string      `json:"total"`
	Status       string      `json:"status"`
	Lines        []OrderLine `json:"lines"`
}

// Summary reads whatever step data is present. Payloads are located by
// type so custom step orders still summarize.
func (w *Wizard) Summary() Summary {
	shipping, _ := find[Shipping](w)
	payment, _ := find[PaymentOption](w)
	order, hasOrder := find[OrderPayload](w)
	resp, hasResp := find[OrderResponse](w)

	s := Summary{
		Recipient:    orDefault(shipping.FullName),
		Phone:        orDefault(shipping.Phone),
		Address:      orDefault(joinNonBlank(", ", shipping.Address, shipping.City, shipping.County)),
		PaymentPlan:  orDefault(payment.Plan),
		Installments: NotProvided,
		Total:        NotProvided,
		Status:       orDefault(resp.Status),
		Lines:        []OrderLine{},
	}
	if payment.Installments > 0 {
		s.Installments = strconv.Itoa(payment.Installments)
	}
	if hasOrder {
		s.Lines = order.Lines
		s.Total = fmt.Sprintf("%s %.2f", order.Currency, order.Total)
	}

	var respPtr *OrderResponse
	if hasResp {
		respPtr = &resp
	}
	s.Reference = ResolveOrderReference(respPtr, order.Lines)
	return s
}

func find[T any](w *Wizard) (T, bool) {
	for i := 1; i <= w.Len(); i++ {
		if v, ok := StepData[T](w, i); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func orDefault(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotProvided
	}
	return s
}

func joinNonBlank(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
