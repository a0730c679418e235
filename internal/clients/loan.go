package clients

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownLoanShape = errors.New("unknown loan amount response shape")

// LoanShape names the upstream response layout a loan amount came from.
type LoanShape string

const (
	// LoanShapeDecision: {"data":{"loanAmount":n,"currency":"KES"}}
	LoanShapeDecision LoanShape = "decision"
	// LoanShapeLimit: {"result":{"limit":{"amount":n,"currency":"KES"}}}
	LoanShapeLimit LoanShape = "limit"
	// LoanShapeLegacy: {"approvedAmount":n,"currency":"KES"}
	LoanShapeLegacy LoanShape = "legacy"
)

type LoanAmount struct {
	Amount   float64   `json:"amount"`
	Currency string    `json:"currency"`
	Shape    LoanShape `json:"shape"`
}

type decisionShape struct {
	Data *struct {
		LoanAmount *float64 `json:"loanAmount"`
		Currency   string   `json:"currency"`
	} `json:"data"`
}

type limitShape struct {
	Result *struct {
		Limit *struct {
			Amount   *float64 `json:"amount"`
			Currency string   `json:"currency"`
		} `json:"limit"`
	} `json:"result"`
}

type legacyShape struct {
	ApprovedAmount *float64 `json:"approvedAmount"`
	Currency       string   `json:"currency"`
}

// DecodeLoanAmount picks the shape by which top-level member is present and
// decodes only that shape. A present member with a missing amount is an
// unknown shape, never a zero amount.
func DecodeLoanAmount(body []byte) (LoanAmount, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return LoanAmount{}, fmt.Errorf("%w: %v", ErrUnknownLoanShape, err)
	}

	switch {
	case has(top, "data"):
		var v decisionShape
		if err := json.Unmarshal(body, &v); err != nil {
			return LoanAmount{}, fmt.Errorf("%w: %s: %v", ErrUnknownLoanShape, LoanShapeDecision, err)
		}
		if v.Data == nil || v.Data.LoanAmount == nil {
			return LoanAmount{}, fmt.Errorf("%w: %s: missing data.loanAmount", ErrUnknownLoanShape, LoanShapeDecision)
		}
		return loanAmount(*v.Data.LoanAmount, v.Data.Currency, LoanShapeDecision), nil

	case has(top, "result"):
		var v limitShape
		if err := json.Unmarshal(body, &v); err != nil {
			return LoanAmount{}, fmt.Errorf("%w: %s: %v", ErrUnknownLoanShape, LoanShapeLimit, err)
		}
		if v.Result == nil || v.Result.Limit == nil || v.Result.Limit.Amount == nil {
			return LoanAmount{}, fmt.Errorf("%w: %s: missing result.limit.amount", ErrUnknownLoanShape, LoanShapeLimit)
		}
		return loanAmount(*v.Result.Limit.Amount, v.Result.Limit.Currency, LoanShapeLimit), nil

	case has(top, "approvedAmount"):
		var v legacyShape
		if err := json.Unmarshal(body, &v); err != nil || v.ApprovedAmount == nil {
			return LoanAmount{}, fmt.Errorf("%w: %s: bad approvedAmount", ErrUnknownLoanShape, LoanShapeLegacy)
		}
		return loanAmount(*v.ApprovedAmount, v.Currency, LoanShapeLegacy), nil
	}
	return LoanAmount{}, ErrUnknownLoanShape
}

func has(m map[string]json.RawMessage, key string) bool {
	v, ok := m[key]
	return ok && string(v) != "null"
}

func loanAmount(amount float64, currency string, shape LoanShape) LoanAmount {
	if currency == "" {
		currency = "KES"
	}
	return LoanAmount{Amount: amount, Currency: currency, Shape: shape}
}
