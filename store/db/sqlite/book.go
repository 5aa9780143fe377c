package sqlite

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/smartlibrarian/store"
)

// float32ArrayToBLOB encodes a vector as little-endian float32 values.
func float32ArrayToBLOB(vec []float32) ([]byte, error) {
	if len(vec) == 0 {
		return nil, errors.New("empty vector")
	}
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(v))
	}
	return buf, nil
}

// blobToFloat32Array is the inverse of float32ArrayToBLOB.
func blobToFloat32Array(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("invalid BLOB length: %d is not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4 : i*4+4]))
	}
	return vec, nil
}

func (d *DB) UpsertBookEmbedding(ctx context.Context, embedding *store.BookEmbedding) (*store.BookEmbedding, error) {
	vectorBLOB, err := float32ArrayToBLOB(embedding.Embedding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert embedding vector to BLOB")
	}

	err = d.db.QueryRowContext(ctx, `
		INSERT INTO book_embedding (title, summary, model, embedding, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (title, model) DO UPDATE SET
			summary = excluded.summary,
			embedding = excluded.embedding,
			updated_ts = excluded.updated_ts
		RETURNING id, created_ts, updated_ts`,
		embedding.Title, embedding.Summary, embedding.Model, vectorBLOB, embedding.CreatedTs, embedding.UpdatedTs,
	).Scan(&embedding.ID, &embedding.CreatedTs, &embedding.UpdatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert book embedding")
	}
	return embedding, nil
}

func (d *DB) ListBookEmbeddings(ctx context.Context, find *store.FindBookEmbedding) ([]*store.BookEmbedding, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.Model; v != nil {
		where, args = append(where, "model = ?"), append(args, *v)
	}
	if v := find.Title; v != nil {
		where, args = append(where, "title = ?"), append(args, *v)
	}

	vectorColumn := "embedding"
	if find.SkipVectors {
		vectorColumn = "NULL"
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, title, summary, model, `+vectorColumn+`, created_ts, updated_ts
		FROM book_embedding
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY id ASC`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list book embeddings")
	}
	defer rows.Close()

	list := []*store.BookEmbedding{}
	for rows.Next() {
		var b store.BookEmbedding
		var vectorBLOB []byte
		if err := rows.Scan(&b.ID, &b.Title, &b.Summary, &b.Model, &vectorBLOB, &b.CreatedTs, &b.UpdatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan book embedding")
		}
		if len(vectorBLOB) > 0 {
			if b.Embedding, err = blobToFloat32Array(vectorBLOB); err != nil {
				return nil, errors.Wrapf(err, "invalid embedding for %q", b.Title)
			}
		}
		list = append(list, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// BookVectorSearch loads every vector of the model and ranks them by cosine
// similarity in Go. Equal scores keep insertion order.
func (d *DB) BookVectorSearch(ctx context.Context, opts *store.BookVectorSearchOptions) ([]*store.BookWithScore, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 3
	}

	model := opts.Model
	books, err := d.ListBookEmbeddings(ctx, &store.FindBookEmbedding{Model: &model})
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search")
	}

	results := make([]*store.BookWithScore, 0, len(books))
	for _, b := range books {
		results = append(results, &store.BookWithScore{
			Book:  b,
			Score: cosineSimilarity(opts.Vector, b.Embedding),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	for _, r := range results {
		r.Book.Embedding = nil
	}
	return results, nil
}

// cosineSimilarity computes cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
