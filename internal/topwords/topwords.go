// Package topwords computes word frequencies over story titles.
package topwords

import (
	"errors"
	"sort"
	"strings"

	"github.com/ibeckermayer/hnpipe/internal/types"
)

// DefaultLimit is the number of words kept in the summary table.
const DefaultLimit = 25

// trimChars are stripped from both edges of every token.
const trimChars = `.,-!?:;()[]'"`

// ErrNoTitles is returned when there is nothing to aggregate.
var ErrNoTitles = errors.New("no titles to aggregate")

var stopWords = map[string]struct{}{
	"a": {}, "the": {}, "an": {}, "of": {}, "to": {}, "in": {},
	"for": {}, "and": {}, "with": {}, "on": {}, "is": {},
}

// IsStopWord reports whether a lower-cased token is ignored.
func IsStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}

// Tokens returns the cleaned, counted tokens of one title in order.
func Tokens(title string) []string {
	var out []string
	for _, raw := range strings.Fields(strings.ToLower(title)) {
		word := strings.Trim(raw, trimChars)
		if word == "" || IsStopWord(word) {
			continue
		}
		out = append(out, word)
	}
	return out
}

// Counter accumulates word counts, remembering first-seen order.
type Counter struct {
	counts map[string]int
	order  []string
}

// NewCounter returns an empty Counter.
func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int)}
}

// Add counts every token of a title.
func (c *Counter) Add(title string) {
	for _, w := range Tokens(title) {
		if _, seen := c.counts[w]; !seen {
			c.order = append(c.order, w)
		}
		c.counts[w]++
	}
}

// Len returns the number of distinct words seen.
func (c *Counter) Len() int {
	return len(c.order)
}

// Top returns up to limit words by descending count. Equal counts keep
// first-seen order.
func (c *Counter) Top(limit int) []types.WordCount {
	words := make([]types.WordCount, len(c.order))
	for i, w := range c.order {
		words[i] = types.WordCount{Word: w, Count: c.counts[w]}
	}

	sort.SliceStable(words, func(i, j int) bool {
		return words[i].Count > words[j].Count
	})

	if limit > 0 && len(words) > limit {
		words = words[:limit]
	}
	return words
}

// Compute returns the top limit words across titles. A non-positive limit
// means DefaultLimit.
func Compute(titles []string, limit int) ([]types.WordCount, error) {
	if len(titles) == 0 {
		return nil, ErrNoTitles
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	c := NewCounter()
	for _, t := range titles {
		c.Add(t)
	}
	return c.Top(limit), nil
}
