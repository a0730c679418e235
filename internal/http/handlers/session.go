package handlers

import (
	"net/http"
	"time"
)

type SessionHandler struct{ Common }

func NewSessionHandler(c Common) *SessionHandler { return &SessionHandler{Common: c} }

type sessionResponse struct {
	SessionID     string    `json:"sessionId"`
	CreatedAt     time.Time `json:"createdAt"`
	Authenticated bool      `json:"authenticated"`
}

// Create starts an anonymous session.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	s := h.Sessions.Create()
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: s.ID, CreatedAt: s.CreatedAt})
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:     s.ID,
		CreatedAt:     s.CreatedAt,
		Authenticated: s.Authenticated(),
	})
}
