package clients

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		status  int
		attempt int
		want    Decision
	}{
		{"ok delivers", PolicyRefresh, http.StatusOK, 0, DecisionDeliver},
		{"server error delivers", PolicyLogout, http.StatusBadGateway, 0, DecisionDeliver},
		{"forbidden is not 401", PolicyRefresh, http.StatusForbidden, 0, DecisionDeliver},
		{"refresh policy retries once", PolicyRefresh, http.StatusUnauthorized, 0, DecisionRefreshAndRetry},
		{"refresh policy gives up on second 401", PolicyRefresh, http.StatusUnauthorized, 1, DecisionGiveUp},
		{"logout policy logs out", PolicyLogout, http.StatusUnauthorized, 0, DecisionLogout},
		{"logout policy after retry gives up", PolicyLogout, http.StatusUnauthorized, 1, DecisionGiveUp},
		{"ok after retry delivers", PolicyRefresh, http.StatusOK, 1, DecisionDeliver},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decide(tc.policy, tc.status, tc.attempt))
		})
	}
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "refresh-and-retry", DecisionRefreshAndRetry.String())
	assert.Equal(t, "give-up", DecisionGiveUp.String())
	assert.Equal(t, "refresh", PolicyRefresh.String())
	assert.Equal(t, "logout", PolicyLogout.String())
}
