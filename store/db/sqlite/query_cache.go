package sqlite

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hrygo/smartlibrarian/store"
)

// CreateQueryCacheEntry keeps the first reply stored for a query.
func (d *DB) CreateQueryCacheEntry(ctx context.Context, create *store.QueryCacheEntry) (*store.QueryCacheEntry, error) {
	if _, err := d.db.ExecContext(ctx,
		`INSERT INTO query_cache (query, reply, created_ts) VALUES (?, ?, ?) ON CONFLICT (query) DO NOTHING`,
		create.Query, create.Reply, create.CreatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to create query cache entry")
	}

	stored := &store.QueryCacheEntry{}
	if err := d.db.QueryRowContext(ctx, `SELECT query, reply, created_ts FROM query_cache WHERE query = ?`, create.Query).
		Scan(&stored.Query, &stored.Reply, &stored.CreatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to read query cache entry")
	}
	return stored, nil
}

func (d *DB) ListQueryCacheEntries(ctx context.Context, find *store.FindQueryCacheEntry) ([]*store.QueryCacheEntry, error) {
	query, args := `SELECT query, reply, created_ts FROM query_cache`, []any{}
	if find.Query != nil {
		query, args = query+` WHERE query = ?`, append(args, *find.Query)
	}

	rows, err := d.db.QueryContext(ctx, query+` ORDER BY created_ts ASC, rowid ASC`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list query cache")
	}
	defer rows.Close()

	list := make([]*store.QueryCacheEntry, 0)
	for rows.Next() {
		e := &store.QueryCacheEntry{}
		if err := rows.Scan(&e.Query, &e.Reply, &e.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan query cache entry")
		}
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
