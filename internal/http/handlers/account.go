package handlers

import (
	"net/http"

	"github.com/andreasstove999/bnpl-storefront/internal/clients"
	"github.com/andreasstove999/bnpl-storefront/internal/events"
)

// AccountHandler serves the signed-in customer's profile, orders and loan
// limit.
type AccountHandler struct {
	Common
	users  *clients.UserClient
	orders *clients.OrderClient
	bnpl   *clients.BNPLClient
}

func NewAccountHandler(c Common, uc *clients.UserClient, oc *clients.OrderClient, bc *clients.BNPLClient) *AccountHandler {
	return &AccountHandler{Common: c, users: uc, orders: oc, bnpl: bc}
}

func (h *AccountHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	s, u, ok := h.user(w, r)
	if !ok {
		return
	}
	p, err := h.users.GetUser(r.Context(), u.ID)
	if err != nil {
		h.fail(w, r, s, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	s, u, ok := h.user(w, r)
	if !ok {
		return
	}
	var p clients.Profile
	if err := decodeJSON(w, r, &p); err != nil {
		h.fail(w, r, s, err)
		return
	}
	p.ID = u.ID
	out, err := h.users.EditProfile(r.Context(), p)
	if err != nil {
		h.fail(w, r, s, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AccountHandler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	s, u, ok := h.user(w, r)
	if !ok {
		return
	}
	var a clients.Address
	if err := decodeJSON(w, r, &a); err != nil {
		h.fail(w, r, s, err)
		return
	}
	out, err := h.users.EditAddress(r.Context(), u.ID, a)
	if err != nil {
		h.fail(w, r, s, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AccountHandler) UpdateNotifications(w http.ResponseWriter, r *http.Request) {
	s, u, ok := h.user(w, r)
	if !ok {
		return
	}
	var n clients.NotificationPreference
	if err := decodeJSON(w, r, &n); err != nil {
		h.fail(w, r, s, err)
		return
	}
	out, err := h.users.EditNotificationPreference(r.Context(), u.ID, n)
	if err != nil {
		h.fail(w, r, s, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// DeleteProfile removes the account and signs the session out.
func (h *AccountHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	s, u, ok := h.user(w, r)
	if !ok {
		return
	}
	if err := h.users.DeleteUser(r.Context(), u.ID); err != nil {
		h.fail(w, r, s, err)
		return
	}
	h.logout(r.Context(), s, events.LogoutReasonUser)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AccountHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	s, _, ok := h.user(w, r)
	if !ok {
		return
	}
	orders, err := h.orders.ListOrders(r.Context())
	if err != nil {
		h.fail(w, r, s, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *AccountHandler) LoanLimit(w http.ResponseWriter, r *http.Request) {
	s, u, ok := h.user(w, r)
	if !ok {
		return
	}
	amt, err := h.bnpl.LoanLimit(r.Context(), u.Phone)
	if err != nil {
		h.fail(w, r, s, err)
		return
	}
	writeJSON(w, http.StatusOK, amt)
}
