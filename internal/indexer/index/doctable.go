package index

import (
	"net/http"

	"github.com/RoaringBitmap/roaring/v2"

	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/errors"
)

// DocEntry is the per-document record kept next to the postings.
type DocEntry struct {
	ExternalID   string                `json:"id"`
	FieldLengths map[string]int        `json:"len"`
	Attributes   map[string]string     `json:"attr,omitempty"`
	Vectors      map[string][]TermFreq `json:"vec,omitempty"`
}

// DocTable assigns dense internal ids in insertion order and answers the
// document-level questions of Reader. It is not synchronised; owners lock
// around it when they mutate it.
type DocTable struct {
	docs         []DocEntry
	byExternal   map[string]int
	fieldDocs    map[string]*roaring.Bitmap
	fieldLengths map[string]int64
}

// NewDocTable creates an empty table.
func NewDocTable() *DocTable {
	return &DocTable{
		byExternal:   make(map[string]int),
		fieldDocs:    make(map[string]*roaring.Bitmap),
		fieldLengths: make(map[string]int64),
	}
}

// Add appends entry and returns its internal id.
func (t *DocTable) Add(entry DocEntry) (int, error) {
	if _, exists := t.byExternal[entry.ExternalID]; exists {
		return 0, apperrors.Newf(apperrors.ErrDocumentExists, http.StatusConflict, "document %q", entry.ExternalID)
	}
	docID := len(t.docs)
	t.docs = append(t.docs, entry)
	t.byExternal[entry.ExternalID] = docID
	for field, length := range entry.FieldLengths {
		if length <= 0 {
			continue
		}
		bm, ok := t.fieldDocs[field]
		if !ok {
			bm = roaring.New()
			t.fieldDocs[field] = bm
		}
		bm.Add(uint32(docID))
		t.fieldLengths[field] += int64(length)
	}
	return docID, nil
}

// Entries returns the documents in internal id order.
func (t *DocTable) Entries() []DocEntry {
	return t.docs
}

func (t *DocTable) InternalID(externalID string) (int, error) {
	docID, ok := t.byExternal[externalID]
	if !ok {
		return 0, apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "external id %q", externalID)
	}
	return docID, nil
}

func (t *DocTable) ExternalID(docID int) (string, error) {
	if docID < 0 || docID >= len(t.docs) {
		return "", apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "internal id %d", docID)
	}
	return t.docs[docID].ExternalID, nil
}

func (t *DocTable) TotalDocCount() int {
	return len(t.docs)
}

func (t *DocTable) DocCount(field string) int {
	bm, ok := t.fieldDocs[field]
	if !ok {
		return 0
	}
	return int(bm.GetCardinality())
}

func (t *DocTable) SumFieldLengths(field string) int64 {
	return t.fieldLengths[field]
}

func (t *DocTable) FieldLength(field string, docID int) int {
	if docID < 0 || docID >= len(t.docs) {
		return 0
	}
	return t.docs[docID].FieldLengths[field]
}

func (t *DocTable) Attribute(name string, docID int) (string, bool) {
	if docID < 0 || docID >= len(t.docs) {
		return "", false
	}
	v, ok := t.docs[docID].Attributes[name]
	return v, ok
}

func (t *DocTable) TermVector(docID int, field string) ([]TermFreq, error) {
	if docID < 0 || docID >= len(t.docs) {
		return nil, apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "internal id %d", docID)
	}
	vec := t.docs[docID].Vectors[field]
	out := make([]TermFreq, len(vec))
	copy(out, vec)
	return out, nil
}
