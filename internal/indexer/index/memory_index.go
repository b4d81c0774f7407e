package index

import (
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/indexer/tokenizer"
)

type termKey struct {
	field string
	term  string
}

type termPostings struct {
	postings PostingList
	ctf      int64
}

// MemoryIndex is an in-memory Reader built one document at a time.
// Documents receive ascending internal ids, so posting lists stay sorted
// by appending.
type MemoryIndex struct {
	mu    sync.RWMutex
	docs  *DocTable
	terms map[termKey]*termPostings
	size  int64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		docs:  NewDocTable(),
		terms: make(map[termKey]*termPostings),
	}
}

// AddDocument tokenizes every known field of doc and returns its internal
// id. Fields outside Fields are ignored.
func (m *MemoryIndex) AddDocument(doc Document) (int, error) {
	entry := DocEntry{
		ExternalID:   doc.ID,
		FieldLengths: make(map[string]int),
		Attributes:   doc.Attributes,
		Vectors:      make(map[string][]TermFreq),
	}
	fieldTerms := make(map[string]map[string]*Posting)

	for field, text := range doc.Fields {
		if !IsField(field) {
			continue
		}
		tokens := tokenizer.Tokenize(text)
		termData := make(map[string]*Posting)
		for _, token := range tokens {
			p, exists := termData[token.Term]
			if !exists {
				p = &Posting{Positions: make([]int, 0, 4)}
				termData[token.Term] = p
			}
			p.Frequency++
			p.Positions = append(p.Positions, token.Position)
		}
		entry.FieldLengths[field] = len(tokens)
		entry.Vectors[field] = vectorOf(termData)
		fieldTerms[field] = termData
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	docID, err := m.docs.Add(entry)
	if err != nil {
		return 0, err
	}
	for field, termData := range fieldTerms {
		for term, posting := range termData {
			posting.DocID = docID
			key := termKey{field: field, term: term}
			tp, exists := m.terms[key]
			if !exists {
				tp = &termPostings{}
				m.terms[key] = tp
			}
			tp.postings = append(tp.postings, *posting)
			tp.ctf += int64(posting.Frequency)
			m.size += int64(len(term) + len(posting.Positions)*8 + 32)
		}
	}
	return docID, nil
}

func vectorOf(termData map[string]*Posting) []TermFreq {
	vec := make([]TermFreq, 0, len(termData))
	for term, p := range termData {
		vec = append(vec, TermFreq{Term: term, Frequency: p.Frequency})
	}
	sort.Slice(vec, func(i, j int) bool {
		return vec[i].Term < vec[j].Term
	})
	return vec
}

func (m *MemoryIndex) Postings(term, field string) (PostingList, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tp, exists := m.terms[termKey{field: field, term: term}]
	if !exists {
		return PostingList{}, nil
	}
	n := len(tp.postings)
	return tp.postings[:n:n], nil
}

func (m *MemoryIndex) TermStats(term, field string) (TermStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tp, exists := m.terms[termKey{field: field, term: term}]
	if !exists {
		return TermStats{}, nil
	}
	return TermStats{DocFreq: len(tp.postings), CollectionFreq: tp.ctf}, nil
}

// Snapshot returns every posting list ordered by (field, term).
func (m *MemoryIndex) Snapshot() ([]TermEntry, []DocEntry) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]TermEntry, 0, len(m.terms))
	for key, tp := range m.terms {
		entries = append(entries, TermEntry{
			Field:    key.field,
			Term:     key.term,
			Postings: tp.postings[:len(tp.postings):len(tp.postings)],
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Field != entries[j].Field {
			return entries[i].Field < entries[j].Field
		}
		return entries[i].Term < entries[j].Term
	})
	docs := m.docs.Entries()
	return entries, docs[:len(docs):len(docs)]
}

func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryIndex) InternalID(externalID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docs.InternalID(externalID)
}

func (m *MemoryIndex) ExternalID(docID int) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docs.ExternalID(docID)
}

func (m *MemoryIndex) TotalDocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docs.TotalDocCount()
}

func (m *MemoryIndex) DocCount(field string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docs.DocCount(field)
}

func (m *MemoryIndex) SumFieldLengths(field string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docs.SumFieldLengths(field)
}

func (m *MemoryIndex) FieldLength(field string, docID int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docs.FieldLength(field, docID)
}

func (m *MemoryIndex) Attribute(name string, docID int) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docs.Attribute(name, docID)
}

func (m *MemoryIndex) TermVector(docID int, field string) ([]TermFreq, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docs.TermVector(docID, field)
}

var _ Reader = (*MemoryIndex)(nil)

// Restore rebuilds a MemoryIndex from a snapshot, so indexing can resume on
// top of a previously written segment.
func Restore(entries []TermEntry, docs []DocEntry) (*MemoryIndex, error) {
	m := NewMemoryIndex()
	for _, d := range docs {
		if _, err := m.docs.Add(d); err != nil {
			return nil, err
		}
	}
	for _, e := range entries {
		tp := &termPostings{postings: e.Postings}
		for _, p := range e.Postings {
			tp.ctf += int64(p.Frequency)
			m.size += int64(len(e.Term) + len(p.Positions)*8 + 32)
		}
		m.terms[termKey{field: e.Field, term: e.Term}] = tp
	}
	return m, nil
}
