package topwords

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/hnpipe/internal/types"
)

func TestTokens_StripsPunctuationAndStopWords(t *testing.T) {
	assert.Equal(t, []string{"quick", "brown", "fox"}, Tokens("The Quick, Brown Fox!"))
}

func TestTokens(t *testing.T) {
	tests := []struct {
		title string
		want  []string
	}{
		{"Show HN: My (tiny) app", []string{"show", "hn", "my", "tiny", "app"}},
		{`"Quoted" [brackets] -- dashes --`, []string{"quoted", "brackets", "dashes"}},
		{"A tale of two cities", []string{"tale", "two", "cities"}},
		{"Is it on? And for whom", []string{"it", "whom"}},
		{"   ", nil},
		{"... !!! ---", nil},
		{"don't stop", []string{"don't", "stop"}},
		{"e.g. v1.2.3", []string{"e.g", "v1.2.3"}},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokens(tt.title))
		})
	}
}

func TestCompute_NoTitles(t *testing.T) {
	_, err := Compute(nil, 25)
	assert.ErrorIs(t, err, ErrNoTitles)
}

func TestCompute_CountsAndOrders(t *testing.T) {
	titles := []string{
		"Go is fast",
		"Rust and Go",
		"Go, Rust, Zig!",
	}

	got, err := Compute(titles, 25)
	require.NoError(t, err)
	assert.Equal(t, []types.WordCount{
		{Word: "go", Count: 3},
		{Word: "rust", Count: 2},
		{Word: "fast", Count: 1},
		{Word: "zig", Count: 1},
	}, got)
}

// Equal counts keep the order in which words were first encountered.
func TestCompute_TieBreakIsFirstSeen(t *testing.T) {
	got, err := Compute([]string{"zebra apple", "mango"}, 25)
	require.NoError(t, err)
	assert.Equal(t, []string{"zebra", "apple", "mango"}, words(got))

	got, err = Compute([]string{"mango", "zebra apple"}, 25)
	require.NoError(t, err)
	assert.Equal(t, []string{"mango", "zebra", "apple"}, words(got))
}

func TestCompute_CutoffAt25(t *testing.T) {
	// word i appears 31-i times, so counts strictly decrease.
	var titles []string
	for i := 0; i < 30; i++ {
		w := fmt.Sprintf("word%02d", i)
		for n := 0; n < 31-i; n++ {
			titles = append(titles, w)
		}
	}

	got, err := Compute(titles, DefaultLimit)
	require.NoError(t, err)
	require.Len(t, got, 25)
	assert.Equal(t, "word00", got[0].Word)
	assert.Equal(t, 31, got[0].Count)
	assert.Equal(t, "word24", got[24].Word)
	assert.Equal(t, 7, got[24].Count)
}

func TestCompute_FewerThanLimitReturnsAll(t *testing.T) {
	var titles []string
	for i := 0; i < 10; i++ {
		titles = append(titles, fmt.Sprintf("distinct%d", i))
	}

	got, err := Compute(titles, DefaultLimit)
	require.NoError(t, err)
	assert.Len(t, got, 10)
}

func TestCompute_DefaultLimit(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&sb, "w%d ", i)
	}
	got, err := Compute([]string{sb.String()}, 0)
	require.NoError(t, err)
	assert.Len(t, got, DefaultLimit)
}

func TestCompute_SameInputSameOutput(t *testing.T) {
	titles := []string{"The Go memory model", "Go generics in practice", "Memory arenas for Go"}

	first, err := Compute(titles, 25)
	require.NoError(t, err)
	second, err := Compute(titles, 25)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	reversed := []string{titles[2], titles[1], titles[0]}
	third, err := Compute(reversed, 25)
	require.NoError(t, err)
	assert.ElementsMatch(t, first, third)
}

func words(wc []types.WordCount) []string {
	out := make([]string, len(wc))
	for i, w := range wc {
		out[i] = w.Word
	}
	return out
}
