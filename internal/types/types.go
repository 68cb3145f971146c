package types

import "time"

// Story represents a Hacker News story as produced by a source adapter
type Story struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Kids        []int64 `json:"kids,omitempty"`
	By          string  `json:"by"`
	Time        int64   `json:"time"`
	Score       int     `json:"score"`
	URL         string  `json:"url"`
	Type        string  `json:"type"`
	Descendants int     `json:"descendants"`
	Text        string  `json:"text,omitempty"`

	// TitleMissing marks a row whose source had no title at all, as opposed
	// to an empty one. Such rows cannot be hashed.
	TitleMissing bool `json:"-"`
}

// IngestedStory is a story tagged with ingest metadata as stored in the warehouse
type IngestedStory struct {
	Story
	DataTransferTimestamp time.Time `json:"data_transfer_timestamp"`
	HashKey               string    `json:"hashkey"`
}

// WordCount is one row of the top_words summary table
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// Variant identifies which source a pipeline run ingests from
type Variant string

const (
	VariantAPI      Variant = "api"
	VariantSnapshot Variant = "snapshot"
)
