package store

// QueryCacheEntry is a durable copy of a response cache entry. Entries are
// never updated; the first reply stored for a query wins.
type QueryCacheEntry struct {
	Query     string
	Reply     string
	CreatedTs int64
}

type FindQueryCacheEntry struct {
	Query *string
}
