package postgres

import (
	"context"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hrygo/smartlibrarian/store"
)

// UpsertBookEmbedding inserts or replaces the vector of a (title, model) pair.
func (d *DB) UpsertBookEmbedding(ctx context.Context, embedding *store.BookEmbedding) (*store.BookEmbedding, error) {
	stmt := `
		INSERT INTO book_embedding (title, summary, model, embedding, created_ts, updated_ts)
		VALUES (` + placeholders(6) + `)
		ON CONFLICT (title, model)
		DO UPDATE SET
			summary = EXCLUDED.summary,
			embedding = EXCLUDED.embedding,
			updated_ts = EXCLUDED.updated_ts
		RETURNING id, created_ts, updated_ts
	`

	err := d.db.QueryRowContext(ctx, stmt,
		embedding.Title,
		embedding.Summary,
		embedding.Model,
		pgvector.NewVector(embedding.Embedding),
		embedding.CreatedTs,
		embedding.UpdatedTs,
	).Scan(&embedding.ID, &embedding.CreatedTs, &embedding.UpdatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert book embedding")
	}
	return embedding, nil
}

func (d *DB) ListBookEmbeddings(ctx context.Context, find *store.FindBookEmbedding) ([]*store.BookEmbedding, error) {
	query, args := listBookEmbeddingsQuery(find)
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list book embeddings")
	}
	defer rows.Close()

	list := []*store.BookEmbedding{}
	for rows.Next() {
		var b store.BookEmbedding
		var vector pgvector.Vector
		dest := []any{&b.ID, &b.Title, &b.Summary, &b.Model, &b.CreatedTs, &b.UpdatedTs}
		if !find.SkipVectors {
			dest = append(dest, &vector)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrap(err, "failed to scan book embedding")
		}
		if !find.SkipVectors {
			b.Embedding = vector.Slice()
		}
		list = append(list, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func listBookEmbeddingsQuery(find *store.FindBookEmbedding) (string, []any) {
	where, args := []string{"1 = 1"}, []any{}

	if find.Model != nil {
		where, args = append(where, "model = "+placeholder(len(args)+1)), append(args, *find.Model)
	}
	if find.Title != nil {
		where, args = append(where, "title = "+placeholder(len(args)+1)), append(args, *find.Title)
	}

	columns := "id, title, summary, model, created_ts, updated_ts"
	if !find.SkipVectors {
		columns += ", embedding"
	}

	query := `
		SELECT ` + columns + `
		FROM book_embedding
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY id ASC`
	return query, args
}

// BookVectorSearch ranks books by cosine similarity using the pgvector
// <=> operator. Ties keep insertion order.
func (d *DB) BookVectorSearch(ctx context.Context, opts *store.BookVectorSearchOptions) ([]*store.BookWithScore, error) {
	query, args := bookVectorSearchQuery(opts)
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search book embeddings")
	}
	defer rows.Close()

	results := []*store.BookWithScore{}
	for rows.Next() {
		var b store.BookEmbedding
		var score float64
		if err := rows.Scan(&b.ID, &b.Title, &b.Summary, &b.Model, &b.CreatedTs, &b.UpdatedTs, &score); err != nil {
			return nil, errors.Wrap(err, "failed to scan book search result")
		}
		results = append(results, &store.BookWithScore{Book: &b, Score: float32(score)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// bookVectorSearchQuery orders by cosine distance and reports 1 - distance
// as the score. The limit defaults to 3.
func bookVectorSearchQuery(opts *store.BookVectorSearchOptions) (string, []any) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 3
	}
	query := `
		SELECT id, title, summary, model, created_ts, updated_ts,
			1 - (embedding <=> ` + placeholder(1) + `) AS score
		FROM book_embedding
		WHERE model = ` + placeholder(2) + `
		ORDER BY embedding <=> ` + placeholder(1) + `, id ASC
		LIMIT ` + placeholder(3)
	return query, []any{pgvector.NewVector(opts.Vector), opts.Model, limit}
}
