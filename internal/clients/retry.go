package clients

import "net/http"

// Policy is what a service does when the upstream answers 401.
type Policy int

const (
	// PolicyLogout clears the service token and credentials immediately.
	PolicyLogout Policy = iota
	// PolicyRefresh refreshes the token once and resends the request.
	PolicyRefresh
)

func (p Policy) String() string {
	if p == PolicyRefresh {
		return "refresh"
	}
	return "logout"
}

type Decision int

const (
	DecisionDeliver Decision = iota
	DecisionRefreshAndRetry
	DecisionLogout
	DecisionGiveUp
)

func (d Decision) String() string {
	switch d {
	case DecisionRefreshAndRetry:
		return "refresh-and-retry"
	case DecisionLogout:
		return "logout"
	case DecisionGiveUp:
		return "give-up"
	default:
		return "deliver"
	}
}

// MaxRetries bounds resends of one request after a 401.
const MaxRetries = 1

// Decide maps the response status of the attempt-th send (0-based) to the
// next step. Only 401 triggers anything other than delivery.
func Decide(policy Policy, status, attempt int) Decision {
	if status != http.StatusUnauthorized {
		return DecisionDeliver
	}
	if attempt >= MaxRetries {
		return DecisionGiveUp
	}
	if policy == PolicyRefresh {
		return DecisionRefreshAndRetry
	}
	return DecisionLogout
}
