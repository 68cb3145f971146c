package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ibeckermayer/hnpipe/internal/types"
)

// ErrNoMergedTable is returned when titles are requested before the first merge.
var ErrNoMergedTable = errors.New("common_table does not exist")

// Titles returns every title in common_table in insertion order.
func (s *Store) Titles(ctx context.Context) ([]string, error) {
	exists, err := tableExists(ctx, s.db, CommonTable)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNoMergedTable
	}

	rows, err := s.db.QueryContext(ctx, `SELECT title FROM `+CommonTable+` ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title sql.NullString
		if err := rows.Scan(&title); err != nil {
			return nil, err
		}
		titles = append(titles, title.String)
	}
	return titles, rows.Err()
}

// ReplaceTopWords drops and recreates top_words with the given rows.
func (s *Store) ReplaceTopWords(ctx context.Context, words []types.WordCount) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+TopWordsTable); err != nil {
		return fmt.Errorf("failed to drop %s: %w", TopWordsTable, err)
	}
	if _, err := tx.ExecContext(ctx, `CREATE TABLE `+TopWordsTable+` (word TEXT, count INTEGER)`); err != nil {
		return fmt.Errorf("failed to create %s: %w", TopWordsTable, err)
	}

	for _, w := range words {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+TopWordsTable+` (word, count) VALUES (?, ?)`, w.Word, w.Count,
		); err != nil {
			return fmt.Errorf("failed to insert word %q: %w", w.Word, err)
		}
	}

	return tx.Commit()
}

// TopWords returns the current summary table in stored order. It returns
// an empty slice before the first aggregation.
func (s *Store) TopWords(ctx context.Context) ([]types.WordCount, error) {
	exists, err := tableExists(ctx, s.db, TopWordsTable)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []types.WordCount{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT word, count FROM `+TopWordsTable+` ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	words := []types.WordCount{}
	for rows.Next() {
		var w types.WordCount
		if err := rows.Scan(&w.Word, &w.Count); err != nil {
			return nil, err
		}
		words = append(words, w)
	}
	return words, rows.Err()
}
