package checkout

import "strings"

const (
	NotProvided       = "Not provided"
	PendingAssignment = "Pending assignment"
)

// ResolveOrderReference picks the identifier shown on the done screen:
// quote reference, order reference, order id, generic id, then the first
// line's sku. Blank values count as absent.
func ResolveOrderReference(resp *OrderResponse, lines []OrderLine) string {
	if resp != nil {
		for _, v := range []string{resp.QuoteReference, resp.OrderReference, resp.OrderID, resp.ID} {
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		}
		if len(lines) == 0 {
			lines = resp.Lines
		}
	}
	if len(lines) > 0 {
		if sku := strings.TrimSpace(lines[0].SKU); sku != "" {
			return sku
		}
	}
	return PendingAssignment
}
