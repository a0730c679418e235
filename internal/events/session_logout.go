package events

import "time"

// SessionLogoutPayload is emitted when a customer signs out or when an
// upstream forced a service logout. SessionID is empty for the latter.
type SessionLogoutPayload struct {
	SessionID   string    `json:"sessionId,omitempty"`
	UserID      string    `json:"userId,omitempty"`
	Service     string    `json:"service,omitempty"`
	Reason      string    `json:"reason"`
	LoggedOutAt time.Time `json:"loggedOutAt"`
}

type SessionLogoutEvent = EventEnvelope[SessionLogoutPayload]

const (
	LogoutReasonUser     = "user"
	LogoutReasonUpstream = "upstream_unauthorized"
)

func BuildSessionLogoutEnvelope(p SessionLogoutPayload, meta EnvelopeMetadata, now time.Time) SessionLogoutEvent {
	if p.LoggedOutAt.IsZero() {
		p.LoggedOutAt = now.UTC()
	}
	key := p.SessionID
	if key == "" {
		key = "service:" + p.Service
	}
	return newEnvelope(EventSessionLogout, 1, key, p, meta, now)
}
