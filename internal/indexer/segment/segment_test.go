package segment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-query-engine/pkg/errors"
)

func buildIndex(t *testing.T) *index.MemoryIndex {
	t.Helper()
	idx := index.NewMemoryIndex()
	docs := []index.Document{
		{ID: "A", Fields: map[string]string{index.FieldBody: "dog cat dog", index.FieldTitle: "pets"}, Attributes: map[string]string{"score": "80"}},
		{ID: "B", Fields: map[string]string{index.FieldBody: "dog bird"}},
		{ID: "C", Fields: map[string]string{index.FieldBody: "fish", index.FieldURL: "example com"}},
	}
	for _, d := range docs {
		_, err := idx.AddDocument(d)
		require.NoError(t, err)
	}
	return idx
}

func writeSegment(t *testing.T, dir string, mem *index.MemoryIndex) string {
	t.Helper()
	w, err := NewWriter(dir)
	require.NoError(t, err)
	defer w.Close()
	entries, docs := mem.Snapshot()
	name, err := w.Write(entries, docs)
	require.NoError(t, err)
	return filepath.Join(dir, name)
}

func TestSegmentRoundTripMatchesMemoryIndex(t *testing.T) {
	dir := t.TempDir()
	mem := buildIndex(t)
	path := writeSegment(t, dir, mem)

	r, err := OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	for _, field := range index.Fields {
		assert.Equal(t, mem.DocCount(field), r.DocCount(field), field)
		assert.Equal(t, mem.SumFieldLengths(field), r.SumFieldLengths(field), field)
	}
	assert.Equal(t, 3, r.TotalDocCount())

	want, err := mem.Postings("dog", index.FieldBody)
	require.NoError(t, err)
	got, err := r.Postings("dog", index.FieldBody)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	stats, err := r.TermStats("dog", index.FieldBody)
	require.NoError(t, err)
	assert.Equal(t, index.TermStats{DocFreq: 2, CollectionFreq: 3}, stats)

	docID, err := r.InternalID("C")
	require.NoError(t, err)
	assert.Equal(t, 2, docID)

	score, ok := r.Attribute("score", 0)
	assert.True(t, ok)
	assert.Equal(t, "80", score)

	vec, err := r.TermVector(0, index.FieldBody)
	require.NoError(t, err)
	assert.Equal(t, []index.TermFreq{{Term: "cat", Frequency: 1}, {Term: "dog", Frequency: 2}}, vec)
}

func TestMissingTermIsEmpty(t *testing.T) {
	dir := t.TempDir()
	r, err := OpenReader(writeSegment(t, dir, buildIndex(t)))
	require.NoError(t, err)
	defer r.Close()

	postings, err := r.Postings("zebra", index.FieldBody)
	require.NoError(t, err)
	assert.Empty(t, postings)

	postings, err = r.Postings("dog", index.FieldInlink)
	require.NoError(t, err)
	assert.Empty(t, postings)
}

func TestOpenReaderRejectsCorruptDictionary(t *testing.T) {
	dir := t.TempDir()
	path := writeSegment(t, dir, buildIndex(t))

	r, err := OpenReader(path)
	require.NoError(t, err)
	dictOffset := r.header.DictOffset
	require.NoError(t, r.Close())

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0xFF, 0xFF}, dictOffset)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = OpenReader(path)
	assert.ErrorIs(t, err, apperrors.ErrCorruptSegment)
}

func TestOpenReaderRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.spdx")
	require.NoError(t, os.WriteFile(path, make([]byte, HeaderSize+FooterSize), 0644))
	_, err := OpenReader(path)
	assert.ErrorIs(t, err, apperrors.ErrCorruptSegment)
}

func TestWriteRejectsEmptySnapshot(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)
	defer w.Close()
	_, err = w.Write(nil, nil)
	assert.Error(t, err)
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	path, err := Latest(dir)
	require.NoError(t, err)
	assert.Empty(t, path)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "seg_100.spdx"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seg_200.spdx"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seg_300.spdx.tmp"), nil, 0644))

	path, err = Latest(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "seg_200.spdx"), path)

	path, err = Latest(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, path)
}
