package store

// BookEmbedding is a corpus entry with its vector for one embedding model.
// (Title, Model) is unique.
type BookEmbedding struct {
	Title     string
	Summary   string
	Model     string
	Embedding []float32
	CreatedTs int64
	UpdatedTs int64
	ID        int32
}

type FindBookEmbedding struct {
	Model *string
	Title *string
	// SkipVectors leaves Embedding nil, for listings that only need titles.
	SkipVectors bool
}

// BookVectorSearchOptions configures a nearest-neighbour search.
type BookVectorSearchOptions struct {
	Model  string
	Vector []float32
	Limit  int
}

// BookWithScore is a search hit with cosine similarity in [-1, 1].
type BookWithScore struct {
	Book  *BookEmbedding
	Score float32
}
