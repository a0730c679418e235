package clients

import (
	"context"
	"net/http"
)

// BNPLClient talks to the loan decision service.
type BNPLClient struct{ c *Authorized }

func NewBNPLClient(c *Authorized) *BNPLClient { return &BNPLClient{c: c} }

// LoanLimit asks how much the customer behind phone may borrow.
func (bc *BNPLClient) LoanLimit(ctx context.Context, phone string) (LoanAmount, error) {
	body, h, err := jsonRequest(map[string]string{"phoneNumber": phone})
	if err != nil {
		return LoanAmount{}, err
	}
	resp, err := bc.c.Do(ctx, http.MethodPost, "/v1/loan/eligibility", "", body, h)
	if err != nil {
		return LoanAmount{}, err
	}
	raw, err := readBody("bnpl", resp)
	if err != nil {
		return LoanAmount{}, err
	}
	return DecodeLoanAmount(raw)
}
