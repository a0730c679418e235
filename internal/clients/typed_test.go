package clients

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/bnpl-storefront/internal/catalog"
	"github.com/andreasstove999/bnpl-storefront/internal/checkout"
	"github.com/andreasstove999/bnpl-storefront/internal/tokens"
)

type recorded struct {
	method, path, query string
	rawPath             string
	body                map[string]any
}

// stubUpstream answers every request with status and body and records the
// last request.
func stubUpstream(t *testing.T, svc tokens.Service, status int, body string) (*Authorized, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method, rec.path, rec.query = r.Method, r.URL.Path, r.URL.RawQuery
		rec.rawPath = r.URL.EscapedPath()
		rec.body = nil
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			_ = json.Unmarshal(b, &rec.body)
		}
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	store := tokens.NewStore()
	store.Set(context.Background(), svc, "tok", time.Hour)
	f := &stubFetcher{svc: svc, store: store}
	return NewAuthorized(NewClient(string(svc), srv.URL+"/gw", srv.Client()), store, f, AuthorizedOptions{}), rec
}

func TestCatalogClient(t *testing.T) {
	a, rec := stubUpstream(t, tokens.ServiceMasoko, http.StatusOK, `{"items":[{"id":"1","sku":"X","name":"Phone","price":100}],"total":1}`)
	cc := NewCatalogClient(a)

	page, err := cc.ListProducts(context.Background(), catalog.Query{Search: "phone"})
	require.NoError(t, err)
	assert.Equal(t, "/gw/api/v1/products", rec.path)
	assert.Equal(t, "q=phone", rec.query)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "X", page.Items[0].SKU)
}

func TestCatalogClientNotFound(t *testing.T) {
	a, rec := stubUpstream(t, tokens.ServiceMasoko, http.StatusNotFound, `{"error":"no such product"}`)

	_, err := NewCatalogClient(a).GetProduct(context.Background(), "p-404")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "/gw/api/v1/products/p-404", rec.path)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Body, "no such product")
}

func TestCatalogClientEscapesProductID(t *testing.T) {
	a, rec := stubUpstream(t, tokens.ServiceMasoko, http.StatusNotFound, `{}`)

	_, err := NewCatalogClient(a).GetProduct(context.Background(), "a/b c?")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "/gw/api/v1/products/a%2Fb%20c%3F", rec.rawPath)
	assert.Equal(t, "/gw/api/v1/products/a/b c?", rec.path)
	assert.Empty(t, rec.query)

	_, err = NewClient("masoko", "http://masoko.test", nil).Do(context.Background(), http.MethodGet, "/bad%zz", "", nil, nil)
	assert.Error(t, err)
}

func TestCatalogClientResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/api/v1/products/p-9":
			_, _ = io.WriteString(w, `{"id":"p-9","sku":"SKU-9","name":"Last page phone"}`)
		case r.URL.Path == "/api/v1/products/broken":
			w.WriteHeader(http.StatusBadGateway)
		case r.URL.Path == "/api/v1/products" && r.URL.Query().Get("q") == "SKU-9":
			_, _ = io.WriteString(w, `{"items":[{"id":"p-90","sku":"SKU-90"},{"id":"p-9","sku":"SKU-9"}],"total":2}`)
		case r.URL.Path == "/api/v1/products":
			_, _ = io.WriteString(w, `{"items":[],"total":0}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	store := tokens.NewStore()
	store.Set(ctx, tokens.ServiceMasoko, "tok", time.Hour)
	f := &stubFetcher{svc: tokens.ServiceMasoko, store: store}
	cc := NewCatalogClient(NewAuthorized(NewClient("masoko", srv.URL, srv.Client()), store, f, AuthorizedOptions{}))

	p, err := cc.Resolve(ctx, "p-9")
	require.NoError(t, err)
	assert.Equal(t, "SKU-9", p.SKU)

	p, err = cc.Resolve(ctx, "SKU-9")
	require.NoError(t, err)
	assert.Equal(t, "p-9", p.ID, "sku search picks the exact match")

	_, err = cc.Resolve(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = cc.Resolve(ctx, "  ")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = cc.Resolve(ctx, "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound, "upstream failures are not reported as unknown products")
}

func TestOrderClient(t *testing.T) {
	a, rec := stubUpstream(t, tokens.ServiceMasoko, http.StatusOK, `{"data":[{"orderId":"A1","status":"paid","total":10}]}`)
	oc := NewOrderClient(a)

	orders, err := oc.ListOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/gw/api/v1/order/list", rec.path)
	require.Len(t, orders, 1)
	assert.Equal(t, "A1", orders[0].OrderID)

	a, rec = stubUpstream(t, tokens.ServiceMasoko, http.StatusCreated, `{"quoteReference":"Q-7"}`)
	resp, err := NewOrderClient(a).CreateOrder(context.Background(), checkout.OrderPayload{Phone: "254700000000", Total: 5})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/gw/api/v1/order/create", rec.path)
	assert.Equal(t, "254700000000", rec.body["phone"])
	assert.Equal(t, "Q-7", resp.QuoteReference)
}

func TestUserClient(t *testing.T) {
	a, rec := stubUpstream(t, tokens.ServiceGeneric, http.StatusOK, `{"id":"u1","firstName":"Amina","phone":"254711111111"}`)
	uc := NewUserClient(a)
	ctx := context.Background()

	p, err := uc.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Amina", p.FirstName)
	assert.Equal(t, "/gw/user/u1", rec.path)

	_, err = uc.EditAddress(ctx, "u1", Address{Line1: "Kenyatta Ave", City: "Nairobi"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, rec.method)
	assert.Equal(t, "/gw/user/address/edit", rec.path)
	assert.Equal(t, "u1", rec.body["userId"])
	assert.Equal(t, "Kenyatta Ave", rec.body["line1"])

	_, err = uc.EditNotificationPreference(ctx, "u1", NotificationPreference{SMS: true})
	require.NoError(t, err)
	assert.Equal(t, "/gw/user/notification-preference/edit", rec.path)
	assert.Equal(t, true, rec.body["sms"])

	_, err = uc.EditProfile(ctx, Profile{ID: "u1", FirstName: "Amina"})
	require.NoError(t, err)
	assert.Equal(t, "/gw/user/edit", rec.path)

	_, err = uc.UpdateUser(ctx, "u1", Profile{ID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "/gw/user/u1", rec.path)

	require.NoError(t, uc.DeleteUser(ctx, "u1"))
	assert.Equal(t, http.MethodDelete, rec.method)
	assert.Equal(t, "/gw/user/u1/delete", rec.path)
}

func TestBNPLClientLoanLimit(t *testing.T) {
	a, rec := stubUpstream(t, tokens.ServiceBNPL, http.StatusOK, `{"data":{"loanAmount":30000}}`)

	amt, err := NewBNPLClient(a).LoanLimit(context.Background(), "254722000000")
	require.NoError(t, err)
	assert.Equal(t, "/gw/v1/loan/eligibility", rec.path)
	assert.Equal(t, "254722000000", rec.body["phoneNumber"])
	assert.Equal(t, 30000.0, amt.Amount)
	assert.Equal(t, LoanShapeDecision, amt.Shape)
}

func TestAuthClient(t *testing.T) {
	a, rec := stubUpstream(t, tokens.ServiceGeneric, http.StatusOK, `{"userId":"u9"}`)
	ac := NewAuthClient(a)

	require.NoError(t, ac.SendOTP(context.Background(), "254733000000"))
	assert.Equal(t, "/gw/otp/send", rec.path)

	id, err := ac.VerifyOTP(context.Background(), "254733000000", "123456")
	require.NoError(t, err)
	assert.Equal(t, "/gw/otp/verify", rec.path)
	assert.Equal(t, "123456", rec.body["otp"])
	assert.Equal(t, Identity{UserID: "u9", Phone: "254733000000"}, id)

	a, _ = stubUpstream(t, tokens.ServiceGeneric, http.StatusUnprocessableEntity, `{"error":"bad code"}`)
	_, err = NewAuthClient(a).VerifyOTP(context.Background(), "254733000000", "000000")
	assert.ErrorIs(t, err, ErrOTPRejected)
}

func TestCheckAll(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down/health" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer up.Close()

	results := CheckAll(context.Background(), []HealthProbe{
		{Name: "masoko", Client: NewClient("masoko", up.URL, up.Client()), Path: "/health"},
		{Name: "bnpl", Client: NewClient("bnpl", up.URL+"/down", up.Client()), Path: "/health"},
	})

	require.Len(t, results, 2)
	assert.Equal(t, HealthResult{Name: "masoko", OK: true, StatusCode: http.StatusOK}, results[0])
	assert.Equal(t, HealthResult{Name: "bnpl", OK: false, StatusCode: http.StatusServiceUnavailable}, results[1])
}
