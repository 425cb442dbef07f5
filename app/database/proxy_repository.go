package database

import (
	"context"
	"fmt"
)

// ProxyRepo handles database operations for web proxies.
type ProxyRepo struct {
	db *DB
}

var _ ProxyRepository = (*ProxyRepo)(nil)

func NewProxyRepo(db *DB) *ProxyRepo {
	return &ProxyRepo{db: db}
}

func (r *ProxyRepo) UpsertProxy(ctx context.Context, address string) error {
	_, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO web_proxies (address) VALUES (?)`, address)
	if err != nil {
		return fmt.Errorf("failed to upsert proxy: %w", err)
	}
	return nil
}

func (r *ProxyRepo) ListProxies(ctx context.Context) ([]WebProxy, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, address FROM web_proxies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list proxies: %w", err)
	}
	defer rows.Close()

	var proxies []WebProxy
	for rows.Next() {
		var p WebProxy
		if err := rows.Scan(&p.ID, &p.Address); err != nil {
			return nil, fmt.Errorf("failed to scan proxy: %w", err)
		}
		proxies = append(proxies, p)
	}
	return proxies, rows.Err()
}

func (r *ProxyRepo) DeleteProxy(ctx context.Context, address string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM web_proxies WHERE address = ?`, address)
	if err != nil {
		return fmt.Errorf("failed to delete proxy: %w", err)
	}
	return nil
}
