package merger

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

type scored struct {
	id    string
	score float64
}

func better(a, b scored) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.id < b.id
}

func TestTopKMatchesFullSort(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	items := make([]scored, 500)
	for i := range items {
		items[i] = scored{id: string(rune('a'+i%26)) + string(rune('a'+i/26)), score: float64(rng.Intn(50))}
	}
	want := append([]scored(nil), items...)
	sort.Slice(want, func(i, j int) bool { return better(want[i], want[j]) })

	assert.Equal(t, want[:100], TopK(items, 100, better))
}

func TestTopKSmallInput(t *testing.T) {
	items := []scored{{"b", 1}, {"a", 1}, {"c", 3}}
	assert.Equal(t, []scored{{"c", 3}, {"a", 1}, {"b", 1}}, TopK(items, 10, better))
	assert.Empty(t, TopK(items, 0, better))
	assert.Empty(t, TopK[scored](nil, 5, better))
}

func BenchmarkTopK(b *testing.B) {
	items := make([]scored, 10000)
	for i := range items {
		items[i] = scored{id: string(rune(i)), score: float64(i % 977)}
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		TopK(items, 100, better)
	}
}
