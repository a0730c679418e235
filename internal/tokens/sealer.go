package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// KeyPrefix namespaces durable entries; the full key is KeyPrefix + service.
const KeyPrefix = "storefront.token."

var ErrSealedData = errors.New("sealed token data is malformed")

// StorageKey is the durable key for svc.
func StorageKey(svc Service) string {
	return KeyPrefix + string(svc)
}

// Sealer encrypts records with XChaCha20-Poly1305 under a key derived from
// the per-install secret. The storage key is bound as additional data so an
// entry cannot be replayed under another service.
type Sealer struct {
	key []byte
}

func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, errors.New("token encryption key is empty")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("bnpl-storefront/token-store/v1"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive token key: %w", err)
	}
	return &Sealer{key: key}, nil
}

func (s *Sealer) Seal(svc Service, rec Record) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	plain, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plain, []byte(StorageKey(svc))), nil
}

func (s *Sealer) Open(svc Service, sealed []byte) (Record, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return Record{}, err
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return Record{}, ErrSealedData
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(StorageKey(svc)))
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrSealedData, err)
	}

	var rec Record
	if err := json.Unmarshal(plain, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrSealedData, err)
	}
	return rec, nil
}
