package tokens

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// PostgresPersister keeps sealed records in the storefront_tokens table.
type PostgresPersister struct {
	pool   DBPool
	sealer *Sealer
}

func NewPostgresPersister(pool DBPool, sealer *Sealer) *PostgresPersister {
	return &PostgresPersister{pool: pool, sealer: sealer}
}

func (p *PostgresPersister) Load(ctx context.Context) (map[Service]Record, error) {
	rows, err := p.pool.Query(ctx, `SELECT storage_key, sealed FROM storefront_tokens WHERE storage_key LIKE $1`, KeyPrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	out := make(map[Service]Record)
	for rows.Next() {
		var (
			key    string
			sealed []byte
		)
		if err := rows.Scan(&key, &sealed); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		svc := Service(key[len(KeyPrefix):])
		rec, err := p.sealer.Open(svc, sealed)
		if err != nil {
			continue
		}
		out[svc] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return out, nil
}

func (p *PostgresPersister) Save(ctx context.Context, svc Service, rec Record) error {
	sealed, err := p.sealer.Seal(svc, rec)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO storefront_tokens(storage_key, sealed, expires_at)
		VALUES($1, $2, $3)
		ON CONFLICT (storage_key) DO UPDATE SET sealed=EXCLUDED.sealed, expires_at=EXCLUDED.expires_at, updated_at=now()
	`, StorageKey(svc), sealed, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (p *PostgresPersister) Delete(ctx context.Context, svc Service) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM storefront_tokens WHERE storage_key=$1`, StorageKey(svc)); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}
