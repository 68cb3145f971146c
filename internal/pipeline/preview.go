package pipeline

import (
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ibeckermayer/hnpipe/internal/store"
	"github.com/ibeckermayer/hnpipe/internal/types"
)

// previewRows is how many rows a materialization preview shows.
const previewRows = 5

// storiesPreview renders the head of a tagged batch as a markdown table.
func storiesPreview(stories []types.IngestedStory) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"id", "title", "by", "score", "hashkey"})
	for i, st := range stories {
		if i == previewRows {
			break
		}
		t.AppendRow(table.Row{st.ID, st.Title, st.By, st.Score, shortKey(st.HashKey)})
	}
	return t.RenderMarkdown()
}

// wordsPreview renders the head of the summary table as a markdown table.
func wordsPreview(words []types.WordCount) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"word", "count"})
	for i, w := range words {
		if i == previewRows {
			break
		}
		t.AppendRow(table.Row{w.Word, w.Count})
	}
	return t.RenderMarkdown()
}

func shortKey(k string) string {
	if len(k) > 12 {
		return k[:12]
	}
	return k
}

func ingestTarget(v types.Variant) (string, store.StepName, bool) {
	switch v {
	case types.VariantAPI:
		return store.APIIngestTable, store.StepAPIIngest, true
	case types.VariantSnapshot:
		return store.SnapshotIngestTable, store.StepSnapshotIngest, true
	}
	return "", "", false
}
