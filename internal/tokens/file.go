package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FilePersister keeps sealed records in a single JSON file keyed by
// StorageKey.
type FilePersister struct {
	path   string
	sealer *Sealer
	mu     sync.Mutex
}

func NewFilePersister(path string, sealer *Sealer) *FilePersister {
	return &FilePersister{path: path, sealer: sealer}
}

// Load returns every entry that can be opened. A missing file is an empty
// store; entries that fail to open are skipped.
func (p *FilePersister) Load(ctx context.Context) (map[Service]Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries, err := p.read()
	if err != nil {
		return nil, err
	}

	out := make(map[Service]Record, len(entries))
	for key, sealed := range entries {
		if !strings.HasPrefix(key, KeyPrefix) {
			continue
		}
		svc := Service(strings.TrimPrefix(key, KeyPrefix))
		rec, err := p.sealer.Open(svc, sealed)
		if err != nil {
			continue
		}
		out[svc] = rec
	}
	return out, nil
}

func (p *FilePersister) Save(ctx context.Context, svc Service, rec Record) error {
	sealed, err := p.sealer.Seal(svc, rec)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	entries, err := p.read()
	if err != nil {
		return err
	}
	entries[StorageKey(svc)] = sealed
	return p.write(entries)
}

func (p *FilePersister) Delete(ctx context.Context, svc Service) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries, err := p.read()
	if err != nil {
		return err
	}
	if _, ok := entries[StorageKey(svc)]; !ok {
		return nil
	}
	delete(entries, StorageKey(svc))
	return p.write(entries)
}

// read returns the raw entries; []byte values round-trip as base64 in JSON.
func (p *FilePersister) read() (map[string][]byte, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string][]byte{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}

	entries := map[string][]byte{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	return entries, nil
}

func (p *FilePersister) write(entries map[string][]byte) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(p.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create token dir: %w", err)
		}
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return os.Rename(tmp, p.path)
}
