package knowledge

// Document is one chunk of an ingested paper as persisted in the
// documents table. The store owns these records; this service only ever
// reads them.
type Document struct {
	ID       int64          // auto-incrementing primary key
	Content  string         // chunk text
	Metadata map[string]any // jsonb metadata: title, year, type, url, source, ...
}

// Match is a document chunk paired with its similarity to the query
// vector. Produced transiently per request, never persisted.
type Match struct {
	Document

	// Similarity is 1 - cosine_distance(embedding, query), in [-1, 1].
	Similarity float64
}
