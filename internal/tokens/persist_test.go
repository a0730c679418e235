package tokens

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSealer(t *testing.T, secret string) *Sealer {
	t.Helper()
	s, err := NewSealer(secret)
	require.NoError(t, err)
	return s
}

func TestSealerRoundTripAndBinding(t *testing.T) {
	s := mustSealer(t, "install-secret")
	rec := Record{Token: "tok", ExpiresAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}

	sealed, err := s.Seal(ServiceBNPL, rec)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "tok")

	got, err := s.Open(ServiceBNPL, sealed)
	require.NoError(t, err)
	assert.True(t, rec.ExpiresAt.Equal(got.ExpiresAt))
	assert.Equal(t, rec.Token, got.Token)

	_, err = s.Open(ServiceMasoko, sealed)
	assert.ErrorIs(t, err, ErrSealedData, "entry must not open under another service")

	_, err = mustSealer(t, "other-secret").Open(ServiceBNPL, sealed)
	assert.ErrorIs(t, err, ErrSealedData)

	_, err = s.Open(ServiceBNPL, []byte("short"))
	assert.ErrorIs(t, err, ErrSealedData)
}

func TestNewSealerRequiresSecret(t *testing.T) {
	_, err := NewSealer("")
	assert.Error(t, err)
}

func TestFilePersister(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "tokens.json")
	p := NewFilePersister(path, mustSealer(t, "install-secret"))

	loaded, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, p.Save(ctx, ServiceMasoko, Record{Token: "m", ExpiresAt: exp}))
	require.NoError(t, p.Save(ctx, ServiceBNPL, Record{Token: "b", ExpiresAt: exp}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "storefront.token.masoko")

	loaded, err = p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "m", loaded[ServiceMasoko].Token)
	assert.Equal(t, "b", loaded[ServiceBNPL].Token)

	require.NoError(t, p.Delete(ctx, ServiceMasoko))
	require.NoError(t, p.Delete(ctx, ServiceMasoko))
	loaded, err = p.Load(ctx)
	require.NoError(t, err)
	assert.NotContains(t, loaded, ServiceMasoko)
}

func TestFilePersisterWrongKeySkipsEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, NewFilePersister(path, mustSealer(t, "a")).Save(ctx, ServiceBNPL, Record{Token: "b", ExpiresAt: time.Now().Add(time.Hour)}))

	loaded, err := NewFilePersister(path, mustSealer(t, "b")).Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestStoreHydratesFromFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.json")
	sealer := mustSealer(t, "install-secret")

	first := NewStore(WithPersister(NewFilePersister(path, sealer)))
	first.Set(ctx, ServiceGeneric, "persisted", time.Hour)

	second := NewStore(WithPersister(NewFilePersister(path, sealer)))
	second.Hydrate(ctx)

	tok, ok := second.Token(ServiceGeneric)
	require.True(t, ok)
	assert.Equal(t, "persisted", tok)
}

func TestPostgresPersisterLoad(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sealer := mustSealer(t, "install-secret")
	rec := Record{Token: "tok", ExpiresAt: time.Now().Add(time.Hour).UTC()}
	sealed, err := sealer.Seal(ServiceBNPL, rec)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT storage_key, sealed FROM storefront_tokens")).
		WithArgs(KeyPrefix + "%").
		WillReturnRows(pgxmock.NewRows([]string{"storage_key", "sealed"}).
			AddRow(StorageKey(ServiceBNPL), sealed).
			AddRow(StorageKey(ServiceMasoko), []byte("garbage-that-cannot-open-at-all-xx")))

	p := NewPostgresPersister(mock, sealer)
	loaded, err := p.Load(ctx)
	require.NoError(t, err)

	assert.Len(t, loaded, 1)
	assert.Equal(t, "tok", loaded[ServiceBNPL].Token)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPersisterSaveAndDelete(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	exp := time.Now().Add(time.Hour)
	mock.ExpectExec("INSERT INTO storefront_tokens").
		WithArgs(StorageKey(ServiceMasoko), pgxmock.AnyArg(), exp).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM storefront_tokens").
		WithArgs(StorageKey(ServiceMasoko)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	p := NewPostgresPersister(mock, mustSealer(t, "install-secret"))
	require.NoError(t, p.Save(ctx, ServiceMasoko, Record{Token: "m", ExpiresAt: exp}))
	require.NoError(t, p.Delete(ctx, ServiceMasoko))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPersisterQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT storage_key").WillReturnError(errors.New("connection refused"))

	p := NewPostgresPersister(mock, mustSealer(t, "install-secret"))
	_, err = p.Load(context.Background())
	assert.Error(t, err)
}

func TestExpiryFromJWT(t *testing.T) {
	exp := time.Unix(1_900_000_000, 0)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("upstream-secret"))
	require.NoError(t, err)

	got, err := ExpiryFromJWT(raw)
	require.NoError(t, err)
	assert.True(t, exp.Equal(got))

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "svc"}).SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = ExpiryFromJWT(noExp)
	assert.ErrorIs(t, err, ErrNoExpiry)

	_, err = ExpiryFromJWT("opaque-token")
	assert.Error(t, err)
}
