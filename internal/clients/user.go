package clients

import (
	"context"
	"net/http"
	"net/url"
)

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	County     string `json:"county,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

type NotificationPreference struct {
	SMS   bool `json:"sms"`
	Email bool `json:"email"`
	Push  bool `json:"push"`
}

type Profile struct {
	ID            string                  `json:"id"`
	FirstName     string                  `json:"firstName"`
	LastName      string                  `json:"lastName"`
	Email         string                  `json:"email,omitempty"`
	Phone         string                  `json:"phone"`
	Address       *Address                `json:"address,omitempty"`
	Notifications *NotificationPreference `json:"notificationPreference,omitempty"`
}

// UserClient manages the customer account on the identity gateway.
type UserClient struct{ c *Authorized }

func NewUserClient(c *Authorized) *UserClient { return &UserClient{c: c} }

func (uc *UserClient) GetUser(ctx context.Context, id string) (Profile, error) {
	resp, err := uc.c.Do(ctx, http.MethodGet, "/user/"+url.PathEscape(id), "", nil, acceptJSON())
	if err != nil {
		return Profile{}, err
	}
	var p Profile
	if err := readJSON("user", resp, &p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (uc *UserClient) UpdateUser(ctx context.Context, id string, p Profile) (Profile, error) {
	return uc.put(ctx, "/user/"+url.PathEscape(id), p)
}

func (uc *UserClient) EditProfile(ctx context.Context, p Profile) (Profile, error) {
	return uc.put(ctx, "/user/edit", p)
}

func (uc *UserClient) EditAddress(ctx context.Context, userID string, a Address) (Profile, error) {
	return uc.put(ctx, "/user/address/edit", struct {
		UserID string `json:"userId"`
		Address
	}{userID, a})
}

func (uc *UserClient) EditNotificationPreference(ctx context.Context, userID string, n NotificationPreference) (Profile, error) {
	return uc.put(ctx, "/user/notification-preference/edit", struct {
		UserID string `json:"userId"`
		NotificationPreference
	}{userID, n})
}

func (uc *UserClient) DeleteUser(ctx context.Context, id string) error {
	resp, err := uc.c.Do(ctx, http.MethodDelete, "/user/"+url.PathEscape(id)+"/delete", "", nil, acceptJSON())
	if err != nil {
		return err
	}
	return readJSON("user", resp, nil)
}

func (uc *UserClient) put(ctx context.Context, path string, v any) (Profile, error) {
	body, h, err := jsonRequest(v)
	if err != nil {
		return Profile{}, err
	}
	resp, err := uc.c.Do(ctx, http.MethodPut, path, "", body, h)
	if err != nil {
		return Profile{}, err
	}
	var p Profile
	if err := readJSON("user", resp, &p); err != nil {
		return Profile{}, err
	}
	return p, nil
}
