// Package digest renders the top words summary as an HTML page and as plain text.
package digest

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/ibeckermayer/hnpipe/internal/types"
)

// Builder renders summary pages from the top words table
type Builder struct {
	maxWords int
	template *template.Template
}

// New creates a new page builder
func New(maxWords int) (*Builder, error) {
	tmpl, err := template.New("digest").Parse(defaultTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	return &Builder{
		maxWords: maxWords,
		template: tmpl,
	}, nil
}

// Page represents a rendered summary
type Page struct {
	Title     string
	HTMLBody  string
	PlainBody string
	WordCount int
	CreatedAt time.Time
}

// PageData is the template data structure
type PageData struct {
	Title  string
	Signal string
	Words  []WordData
	Stats  StatsData
}

// WordData represents one bar of the chart
type WordData struct {
	Rank  int
	Word  string
	Count int
	Width float64
}

// StatsData contains page statistics
type StatsData struct {
	TotalWords       int
	TotalOccurrences int
}

// Build renders words, which must already be ordered by descending count.
// An empty table renders a page that says no data has been aggregated yet.
func (b *Builder) Build(words []types.WordCount, signal string) (*Page, error) {
	if b.maxWords > 0 && len(words) > b.maxWords {
		words = words[:b.maxWords]
	}

	data := PageData{
		Title:  "Most frequent words in Hacker News top story titles",
		Signal: signal,
		Words:  make([]WordData, len(words)),
	}

	maxCount := 0
	for _, w := range words {
		if w.Count > maxCount {
			maxCount = w.Count
		}
	}
	for i, w := range words {
		width := 0.0
		if maxCount > 0 {
			width = float64(w.Count) * 100 / float64(maxCount)
		}
		data.Words[i] = WordData{Rank: i + 1, Word: w.Word, Count: w.Count, Width: width}
		data.Stats.TotalOccurrences += w.Count
	}
	data.Stats.TotalWords = len(words)

	var htmlBuf bytes.Buffer
	if err := b.template.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	return &Page{
		Title:     data.Title,
		HTMLBody:  htmlBuf.String(),
		PlainBody: buildPlainText(data),
		WordCount: len(words),
		CreatedAt: time.Now(),
	}, nil
}

func buildPlainText(data PageData) string {
	var buf bytes.Buffer
	buf.WriteString(data.Title + "\n")
	if data.Signal != "" {
		buf.WriteString("Updated " + data.Signal + "\n")
	}
	buf.WriteString("\n")

	if len(data.Words) == 0 {
		buf.WriteString("No data yet.\n")
		return buf.String()
	}
	for _, w := range data.Words {
		buf.WriteString(fmt.Sprintf("%2d. %-20s %d\n", w.Rank, w.Word, w.Count))
	}

	return buf.String()
}

const defaultTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 760px; margin: 0 auto; padding: 20px; background: #f6f6ef; }
        .container { background: white; border-radius: 8px; padding: 20px; }
        h1 { color: #ff6600; margin-bottom: 5px; font-size: 22px; }
        .date { color: #666; margin-bottom: 20px; }
        .row { display: flex; align-items: center; margin: 4px 0; font-size: 14px; }
        .word { width: 140px; color: #333; overflow: hidden; text-overflow: ellipsis; }
        .bar { background: #ff6600; height: 18px; border-radius: 3px; }
        .count { margin-left: 8px; color: #666; }
        .empty { color: #999; font-style: italic; }
        .footer { margin-top: 20px; padding-top: 15px; border-top: 1px solid #eee; color: #999; font-size: 12px; text-align: center; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <div class="date">{{if .Signal}}Updated {{.Signal}}{{else}}Waiting for the first pipeline run{{end}}</div>

        {{range .Words}}
        <div class="row">
            <div class="word">{{.Rank}}. {{.Word}}</div>
            <div class="bar" style="width: {{printf "%.1f" .Width}}%"></div>
            <div class="count">{{.Count}}</div>
        </div>
        {{else}}
        <div class="empty">No data yet.</div>
        {{end}}

        <div class="footer">
            {{.Stats.TotalWords}} words · {{.Stats.TotalOccurrences}} occurrences · Generated by hnpipe
        </div>
    </div>
    <script>
        new EventSource("/api/events").addEventListener("reload", function () { window.location.reload(); });
    </script>
</body>
</html>`
