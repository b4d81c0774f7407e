package index

// Reader is read-only access to an inverted index. Implementations must be
// safe for concurrent use; query evaluation never writes through it.
type Reader interface {
	// InternalID maps an external document id to the internal one.
	InternalID(externalID string) (int, error)
	// ExternalID maps an internal document id to the external one.
	ExternalID(docID int) (string, error)
	// TotalDocCount is the number of documents in the index.
	TotalDocCount() int
	// DocCount is the number of documents with a non-empty field.
	DocCount(field string) int
	// SumFieldLengths is the total number of tokens indexed in field.
	SumFieldLengths(field string) int64
	// FieldLength is the number of tokens of field in one document.
	FieldLength(field string, docID int) int
	// Attribute returns a document attribute such as "score" or "rawUrl".
	Attribute(name string, docID int) (string, bool)
	// TermStats returns df and ctf for (term, field).
	TermStats(term, field string) (TermStats, error)
	// Postings returns the posting list of (term, field), ascending by
	// document id. A term that does not occur yields an empty list.
	Postings(term, field string) (PostingList, error)
	// TermVector returns the terms of one document field, ascending by term.
	TermVector(docID int, field string) ([]TermFreq, error)
}
