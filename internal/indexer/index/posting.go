package index

// Searchable fields. A query term without a field suffix targets
// DefaultField.
const (
	FieldURL      = "url"
	FieldKeywords = "keywords"
	FieldTitle    = "title"
	FieldBody     = "body"
	FieldInlink   = "inlink"

	DefaultField = FieldBody
)

// Fields lists every field the query language accepts.
var Fields = []string{FieldURL, FieldKeywords, FieldTitle, FieldBody, FieldInlink}

// IsField reports whether name is one of Fields.
func IsField(name string) bool {
	for _, f := range Fields {
		if f == name {
			return true
		}
	}
	return false
}

// Posting records one document's occurrences of a term in a field.
// Positions are strictly ascending.
type Posting struct {
	DocID     int   `json:"d"`
	Frequency int   `json:"f"`
	Positions []int `json:"p"`
}

// PostingList is ordered by ascending DocID.
type PostingList []Posting

// TermEntry is one (field, term) posting list, used when snapshotting an
// index to a segment.
type TermEntry struct {
	Field    string
	Term     string
	Postings PostingList
}

// TermStats are the collection statistics of a (term, field) pair.
type TermStats struct {
	DocFreq        int
	CollectionFreq int64
}

// TermFreq is one entry of a document's term vector.
type TermFreq struct {
	Term      string `json:"t"`
	Frequency int    `json:"f"`
}

// Document is the unit of indexing: an external id, text per field, and
// free-form string attributes (spam score, raw url, ...).
type Document struct {
	ID         string            `json:"id"`
	Fields     map[string]string `json:"fields"`
	Attributes map[string]string `json:"attributes,omitempty"`
}
