package clients

import (
	"context"
	"errors"
	"net/http"
)

// ErrOTPRejected means the auth API refused the code.
var ErrOTPRejected = errors.New("one-time password rejected")

// Identity is the customer the auth API signed in.
type Identity struct {
	UserID string `json:"userId"`
	Phone  string `json:"phoneNumber"`
	Name   string `json:"name,omitempty"`
}

// AuthClient drives phone sign-in on the auth API.
type AuthClient struct{ c *Authorized }

func NewAuthClient(c *Authorized) *AuthClient { return &AuthClient{c: c} }

func (ac *AuthClient) SendOTP(ctx context.Context, phone string) error {
	body, h, err := jsonRequest(map[string]string{"phoneNumber": phone})
	if err != nil {
		return err
	}
	resp, err := ac.c.Do(ctx, http.MethodPost, "/otp/send", "", body, h)
	if err != nil {
		return err
	}
	return readJSON("auth", resp, nil)
}

// VerifyOTP exchanges a code for the signed-in identity. A 400 or 422 from
// the auth API is reported as ErrOTPRejected.
func (ac *AuthClient) VerifyOTP(ctx context.Context, phone, code string) (Identity, error) {
	body, h, err := jsonRequest(map[string]string{"phoneNumber": phone, "otp": code})
	if err != nil {
		return Identity{}, err
	}
	resp, err := ac.c.Do(ctx, http.MethodPost, "/otp/verify", "", body, h)
	if err != nil {
		return Identity{}, err
	}
	var id Identity
	if err := readJSON("auth", resp, &id); err != nil {
		var se *StatusError
		if errors.As(err, &se) && (se.StatusCode == http.StatusBadRequest || se.StatusCode == http.StatusUnprocessableEntity) {
			return Identity{}, ErrOTPRejected
		}
		return Identity{}, err
	}
	if id.Phone == "" {
		id.Phone = phone
	}
	return id, nil
}
