package postgres

import (
	"context"
	"fmt"

	"github.com/hrygo/smartlibrarian/store"
)

// CreateQueryCacheEntry stores the entry unless the query is already cached,
// and returns whichever reply is stored.
func (d *DB) CreateQueryCacheEntry(ctx context.Context, create *store.QueryCacheEntry) (*store.QueryCacheEntry, error) {
	if _, err := d.db.ExecContext(ctx, `
		INSERT INTO query_cache (query, reply, created_ts) VALUES (`+placeholders(3)+`)
		ON CONFLICT (query) DO NOTHING`,
		create.Query, create.Reply, create.CreatedTs); err != nil {
		return nil, fmt.Errorf("failed to create query_cache entry: %w", err)
	}

	stored := &store.QueryCacheEntry{}
	if err := d.db.QueryRowContext(ctx,
		`SELECT query, reply, created_ts FROM query_cache WHERE query = `+placeholder(1), create.Query,
	).Scan(&stored.Query, &stored.Reply, &stored.CreatedTs); err != nil {
		return nil, fmt.Errorf("failed to read query_cache entry: %w", err)
	}
	return stored, nil
}

func (d *DB) ListQueryCacheEntries(ctx context.Context, find *store.FindQueryCacheEntry) ([]*store.QueryCacheEntry, error) {
	query, args := listQueryCacheQuery(find)
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list query_cache: %w", err)
	}
	defer rows.Close()

	list := make([]*store.QueryCacheEntry, 0)
	for rows.Next() {
		e := &store.QueryCacheEntry{}
		if err := rows.Scan(&e.Query, &e.Reply, &e.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan query_cache: %w", err)
		}
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate query_cache: %w", err)
	}
	return list, nil
}

func listQueryCacheQuery(find *store.FindQueryCacheEntry) (string, []any) {
	query, args := `SELECT query, reply, created_ts FROM query_cache`, []any{}
	if find.Query != nil {
		query, args = query+` WHERE query = `+placeholder(1), append(args, *find.Query)
	}
	return query + ` ORDER BY created_ts ASC`, args
}
