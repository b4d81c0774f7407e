package executor

import (
	"context"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/structured-query-engine/internal/indexer/index"
)

// invList is a forward-only cursor over one posting list together with the
// statistics the scoring formulas need. Term leaves read theirs from the
// index; #syn, #near and #window lists are built from their arguments.
type invList struct {
	field    string
	df       int
	ctf      int64
	postings index.PostingList
	idx      int
}

func newSyntheticList(field string, postings index.PostingList) *invList {
	var ctf int64
	for _, p := range postings {
		ctf += int64(p.Frequency)
	}
	return &invList{field: field, df: len(postings), ctf: ctf, postings: postings}
}

func (l *invList) current() (int, bool) {
	if l.idx >= len(l.postings) {
		return 0, false
	}
	return l.postings[l.idx].DocID, true
}

// tf is the frequency at the current document.
func (l *invList) tf() int {
	return l.postings[l.idx].Frequency
}

func (l *invList) positions() []int {
	return l.postings[l.idx].Positions
}

func (l *invList) advancePast(docID int) {
	for l.idx < len(l.postings) && l.postings[l.idx].DocID <= docID {
		l.idx++
	}
}

// docCursor is a forward-only position over ascending document ids.
type docCursor interface {
	current() (int, bool)
	advancePast(docID int)
}

// alignAll moves every cursor to the next document they all contain.
func alignAll[C docCursor](cursors []C) (int, bool) {
	for {
		target := -1
		for _, c := range cursors {
			doc, ok := c.current()
			if !ok {
				return 0, false
			}
			if doc > target {
				target = doc
			}
		}
		aligned := true
		for _, c := range cursors {
			c.advancePast(target - 1)
			if doc, ok := c.current(); !ok || doc != target {
				aligned = false
			}
		}
		if aligned {
			return target, true
		}
	}
}

func positionsAt(lists []*invList) [][]int {
	out := make([][]int, len(lists))
	for i, l := range lists {
		out[i] = l.positions()
	}
	return out
}

// mergeSyn unions the argument lists. A document's positions are the
// sorted, de-duplicated union of its arguments' positions.
func mergeSyn(ctx context.Context, field string, args []*invList) (*invList, error) {
	var out index.PostingList
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		minDoc, found := 0, false
		for _, l := range args {
			if doc, ok := l.current(); ok && (!found || doc < minDoc) {
				minDoc, found = doc, true
			}
		}
		if !found {
			break
		}
		var positions []int
		for _, l := range args {
			if doc, ok := l.current(); ok && doc == minDoc {
				positions = append(positions, l.positions()...)
				l.advancePast(minDoc)
			}
		}
		positions = dedupeSorted(positions)
		out = append(out, index.Posting{DocID: minDoc, Frequency: len(positions), Positions: positions})
	}
	return newSyntheticList(field, out), nil
}

func dedupeSorted(positions []int) []int {
	sort.Ints(positions)
	n := 0
	for i, p := range positions {
		if i > 0 && p == positions[n-1] {
			continue
		}
		positions[n] = p
		n++
	}
	return positions[:n]
}

// proximityMatcher returns the match positions within one document given
// each argument's positions in argument order.
type proximityMatcher func(positions [][]int, distance int) []int

// mergeProximity builds the list of documents that contain every argument
// and at least one proximity match.
func mergeProximity(ctx context.Context, field string, args []*invList, distance int, match proximityMatcher) (*invList, error) {
	var out index.PostingList
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, ok := alignAll(args)
		if !ok {
			break
		}
		if hits := match(positionsAt(args), distance); len(hits) > 0 {
			out = append(out, index.Posting{DocID: doc, Frequency: len(hits), Positions: hits})
		}
		for _, l := range args {
			l.advancePast(doc)
		}
	}
	return newSyntheticList(field, out), nil
}

// nearMatches finds ordered matches: each argument must occur at or after
// the previous one and at most distance positions later. A match reports the
// last argument's position and consumes one position from every argument.
func nearMatches(positions [][]int, distance int) []int {
	idx := make([]int, len(positions))
	var hits []int
	for idx[0] < len(positions[0]) {
		prev := positions[0][idx[0]]
		matched := true
		for j := 1; j < len(positions); j++ {
			for idx[j] < len(positions[j]) && positions[j][idx[j]] < prev {
				idx[j]++
			}
			if idx[j] >= len(positions[j]) {
				return hits
			}
			cur := positions[j][idx[j]]
			if cur-prev > distance {
				matched = false
				break
			}
			prev = cur
		}
		if !matched {
			idx[0]++
			continue
		}
		hits = append(hits, prev)
		for j := range idx {
			idx[j]++
		}
	}
	return hits
}

// windowMatches finds unordered matches: one position from every argument
// inside a span of at most distance positions. A match reports the largest
// position and consumes one position from every argument; otherwise the
// argument at the smallest position moves forward.
func windowMatches(positions [][]int, distance int) []int {
	idx := make([]int, len(positions))
	var hits []int
	for {
		lo, hi, loArg := 0, 0, 0
		for j, ps := range positions {
			if idx[j] >= len(ps) {
				return hits
			}
			p := ps[idx[j]]
			if j == 0 || p < lo {
				lo, loArg = p, j
			}
			if j == 0 || p > hi {
				hi = p
			}
		}
		if hi-lo+1 <= distance {
			hits = append(hits, hi)
			for j := range idx {
				idx[j]++
			}
			continue
		}
		idx[loArg]++
	}
}
