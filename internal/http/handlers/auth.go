package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/andreasstove999/bnpl-storefront/internal/clients"
	"github.com/andreasstove999/bnpl-storefront/internal/events"
	"github.com/andreasstove999/bnpl-storefront/internal/session"
)

// AuthHandler runs the phone + OTP sign-in.
type AuthHandler struct {
	Common
	c *clients.AuthClient
}

func NewAuthHandler(c Common, ac *clients.AuthClient) *AuthHandler {
	return &AuthHandler{Common: c, c: ac}
}

type otpRequest struct {
	Phone string `json:"phone"`
}

type otpRequestResponse struct {
	Phone           string `json:"phone"`
	CooldownSeconds int    `json:"cooldownSeconds"`
}

func (h *AuthHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req otpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, s, err)
		return
	}

	phone, err := s.Challenge.Request(req.Phone)
	if err != nil {
		h.fail(w, r, s, err)
		return
	}
	if err := h.c.SendOTP(r.Context(), phone); err != nil {
		// Let the customer retry right away when nothing was sent.
		s.Challenge.Cooldown().Reset()
		h.fail(w, r, s, err)
		return
	}

	writeJSON(w, http.StatusAccepted, otpRequestResponse{
		Phone:           phone,
		CooldownSeconds: int(s.Challenge.Cooldown().Remaining().Seconds()),
	})
}

type otpVerify struct {
	Code string `json:"code"`
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req otpVerify
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, s, err)
		return
	}

	phone, err := s.Challenge.Verify(req.Code)
	if err != nil {
		h.fail(w, r, s, err)
		return
	}
	id, err := h.c.VerifyOTP(r.Context(), phone, req.Code)
	if err != nil {
		h.fail(w, r, s, err)
		return
	}

	u := session.User{ID: id.UserID, Phone: id.Phone, Name: id.Name}
	s.Authenticate(u)
	h.logger().Info("session signed in", zap.String("session_id", s.ID), zap.String("user_id", u.ID))
	writeJSON(w, http.StatusOK, u)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.logout(r.Context(), s, events.LogoutReasonUser)
	w.WriteHeader(http.StatusNoContent)
}
