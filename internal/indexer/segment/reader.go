package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/errors"
)

// Reader serves an index.Reader from one segment file. Postings are read
// lazily with ReadAt; the dictionary and document table are held in memory.
// After OpenReader returns, a Reader is read-only and safe for concurrent use.
type Reader struct {
	file     *os.File
	filePath string
	header   SegmentHeader
	dict     []DictEntry
	docs     *index.DocTable
	dec      *zstd.Decoder
}

func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	r, err := load(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("loading segment %s: %w", filepath.Base(path), err)
	}
	r.filePath = path
	return r, nil
}

func load(f *os.File) (*Reader, error) {
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	header := decodeHeader(headerBytes)
	if header.Magic != MagicBytes {
		return nil, apperrors.Newf(apperrors.ErrCorruptSegment, http.StatusInternalServerError, "bad magic bytes %x", header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, apperrors.Newf(apperrors.ErrCorruptSegment, http.StatusInternalServerError, "unsupported version %d", header.Version)
	}

	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, header.DictOffset+header.DictSize); err != nil {
		return nil, fmt.Errorf("reading footer: %w", err)
	}
	dictBlock := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBlock, header.DictOffset); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	if crc32.ChecksumIEEE(dictBlock) != binary.LittleEndian.Uint32(footer[0:4]) {
		return nil, apperrors.New(apperrors.ErrCorruptSegment, http.StatusInternalServerError, "dictionary checksum mismatch")
	}
	docsBlock := make([]byte, header.DocsSize)
	if _, err := f.ReadAt(docsBlock, header.DocsOffset); err != nil {
		return nil, fmt.Errorf("reading document table: %w", err)
	}
	if crc32.ChecksumIEEE(docsBlock) != binary.LittleEndian.Uint32(footer[4:8]) {
		return nil, apperrors.New(apperrors.ErrCorruptSegment, http.StatusInternalServerError, "document table checksum mismatch")
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	var dict []DictEntry
	if err := decodeJSON(dec, dictBlock, &dict); err != nil {
		dec.Close()
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}
	var entries []index.DocEntry
	if err := decodeJSON(dec, docsBlock, &entries); err != nil {
		dec.Close()
		return nil, fmt.Errorf("parsing document table: %w", err)
	}
	docs := index.NewDocTable()
	for _, e := range entries {
		if _, err := docs.Add(e); err != nil {
			dec.Close()
			return nil, err
		}
	}
	return &Reader{
		file:   f,
		header: header,
		dict:   dict,
		docs:   docs,
		dec:    dec,
	}, nil
}

func decodeJSON(dec *zstd.Decoder, block []byte, v any) error {
	raw, err := dec.DecodeAll(block, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func (r *Reader) lookup(term, field string) (DictEntry, bool) {
	i := sort.Search(len(r.dict), func(i int) bool {
		e := r.dict[i]
		if e.Field != field {
			return e.Field >= field
		}
		return e.Term >= term
	})
	if i >= len(r.dict) || r.dict[i].Field != field || r.dict[i].Term != term {
		return DictEntry{}, false
	}
	return r.dict[i], true
}

func (r *Reader) Postings(term, field string) (index.PostingList, error) {
	entry, ok := r.lookup(term, field)
	if !ok {
		return index.PostingList{}, nil
	}
	block := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(block, r.header.PostOffset+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings: %w", err)
	}
	var postings index.PostingList
	if err := decodeJSON(r.dec, block, &postings); err != nil {
		return nil, fmt.Errorf("parsing postings for %s.%s: %w", term, field, err)
	}
	return postings, nil
}

func (r *Reader) TermStats(term, field string) (index.TermStats, error) {
	entry, ok := r.lookup(term, field)
	if !ok {
		return index.TermStats{}, nil
	}
	return index.TermStats{DocFreq: entry.DocFreq, CollectionFreq: entry.CollFreq}, nil
}

func (r *Reader) InternalID(externalID string) (int, error) { return r.docs.InternalID(externalID) }
func (r *Reader) ExternalID(docID int) (string, error)      { return r.docs.ExternalID(docID) }
func (r *Reader) TotalDocCount() int                        { return r.docs.TotalDocCount() }
func (r *Reader) DocCount(field string) int                 { return r.docs.DocCount(field) }
func (r *Reader) SumFieldLengths(field string) int64        { return r.docs.SumFieldLengths(field) }

func (r *Reader) FieldLength(field string, docID int) int {
	return r.docs.FieldLength(field, docID)
}

func (r *Reader) Attribute(name string, docID int) (string, bool) {
	return r.docs.Attribute(name, docID)
}

func (r *Reader) TermVector(docID int, field string) ([]index.TermFreq, error) {
	return r.docs.TermVector(docID, field)
}

// Snapshot decodes every posting list, ordered by (field, term).
func (r *Reader) Snapshot() ([]index.TermEntry, []index.DocEntry, error) {
	entries := make([]index.TermEntry, 0, len(r.dict))
	for _, d := range r.dict {
		postings, err := r.Postings(d.Term, d.Field)
		if err != nil {
			return nil, nil, err
		}
		entries = append(entries, index.TermEntry{Field: d.Field, Term: d.Term, Postings: postings})
	}
	return entries, r.docs.Entries(), nil
}

func (r *Reader) Terms() int {
	return len(r.dict)
}

func (r *Reader) Path() string {
	return r.filePath
}

func (r *Reader) Close() error {
	r.dec.Close()
	return r.file.Close()
}

// Latest returns the path of the newest segment in dir, or "" if there is
// none. Segment names embed their creation time, so the lexically greatest
// name is the newest.
func Latest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("listing segments: %w", err)
	}
	latest := ""
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, Extension) {
			continue
		}
		if name > latest {
			latest = name
		}
	}
	if latest == "" {
		return "", nil
	}
	return filepath.Join(dir, latest), nil
}

var _ index.Reader = (*Reader)(nil)
