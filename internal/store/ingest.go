package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ibeckermayer/hnpipe/internal/types"
)

// ErrMissingTitle is returned when a story has no title to hash.
var ErrMissingTitle = errors.New("story has no title")

// timestampLayout is how data_transfer_timestamp is persisted.
const timestampLayout = time.RFC3339Nano

// HashKey returns the hex SHA-256 digest of a title. Two stories with the
// same title share a hashkey; the empty title hashes like any other.
func HashKey(title string) string {
	sum := sha256.Sum256([]byte(title))
	return hex.EncodeToString(sum[:])
}

// Tag attaches the ingest timestamp and hashkey to every story. It fails on
// the first story whose source had no title, before anything is written.
func Tag(stories []types.Story, now time.Time) ([]types.IngestedStory, error) {
	tagged := make([]types.IngestedStory, len(stories))
	for i, st := range stories {
		if st.TitleMissing {
			return nil, fmt.Errorf("story %d: %w", st.ID, ErrMissingTitle)
		}
		tagged[i] = types.IngestedStory{
			Story:                 st,
			DataTransferTimestamp: now,
			HashKey:               HashKey(st.Title),
		}
	}
	return tagged, nil
}

func isIngestTable(table string) bool {
	return table == APIIngestTable || table == SnapshotIngestTable
}

// AppendStories tags and appends a batch to an ingest table and returns the
// table's new total row count. No uniqueness is enforced.
func (s *Store) AppendStories(ctx context.Context, table string, stories []types.Story, now time.Time) (int64, error) {
	tagged, err := Tag(stories, now)
	if err != nil {
		return 0, err
	}
	return s.AppendTagged(ctx, table, tagged)
}

// AppendTagged appends already tagged rows to an ingest table and returns the
// table's new total row count.
func (s *Store) AppendTagged(ctx context.Context, table string, tagged []types.IngestedStory) (int64, error) {
	if !isIngestTable(table) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO `+physical(table)+` (id, title, kids, "by", time, score, url, type,
			descendants, text, data_transfer_timestamp, hashkey)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert into %s: %w", table, err)
	}
	defer stmt.Close()

	for _, st := range tagged {
		_, err := stmt.ExecContext(ctx,
			st.ID, st.Title, encodeKids(st.Kids), st.By, st.Time, st.Score, st.URL, st.Type,
			st.Descendants, st.Text, st.DataTransferTimestamp.Format(timestampLayout), st.HashKey)
		if err != nil {
			return 0, fmt.Errorf("failed to insert story %d into %s: %w", st.ID, table, err)
		}
	}

	total, err := countRows(ctx, tx, table)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

// ReadStories returns up to limit rows of a story table in insertion order.
// A non-positive limit returns every row.
func (s *Store) ReadStories(ctx context.Context, table string, limit int) ([]types.IngestedStory, error) {
	if !isIngestTable(table) && table != CommonTable {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, kids, "by", time, score, url, type, descendants, text,
			data_transfer_timestamp, hashkey
		FROM `+physical(table)+`
		ORDER BY rowid
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanStories(rows)
}

func scanStories(rows *sql.Rows) ([]types.IngestedStory, error) {
	var stories []types.IngestedStory
	for rows.Next() {
		var st types.IngestedStory
		var title, kids, by, url, typ, text sql.NullString
		var ts string

		err := rows.Scan(
			&st.ID, &title, &kids, &by, &st.Time, &st.Score, &url, &typ, &st.Descendants, &text,
			&ts, &st.HashKey,
		)
		if err != nil {
			return nil, err
		}

		st.Title, st.By, st.URL, st.Type, st.Text = title.String, by.String, url.String, typ.String, text.String
		st.Kids = decodeKids(kids.String)
		if parsed, err := time.Parse(timestampLayout, ts); err == nil {
			st.DataTransferTimestamp = parsed
		}
		stories = append(stories, st)
	}
	return stories, rows.Err()
}

// encodeKids stores the child id list as a JSON array, NULL when absent.
func encodeKids(kids []int64) any {
	if len(kids) == 0 {
		return nil
	}
	data, _ := json.Marshal(kids)
	return string(data)
}

func decodeKids(s string) []int64 {
	if s == "" {
		return nil
	}
	var kids []int64
	json.Unmarshal([]byte(s), &kids)
	return kids
}
