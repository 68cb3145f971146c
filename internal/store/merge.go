package store

import (
	"context"
	"fmt"
)

// MergeResult describes one merge invocation.
type MergeResult struct {
	Created bool  // common_table was initialized by this call
	Added   int64 // rows appended by this call
	Total   int64 // rows in common_table afterwards
}

const (
	createCommonSQL = `
		CREATE TABLE ` + CommonTable + ` AS
		SELECT * FROM ` + APIIngestTable + `
		UNION ALL
		SELECT * FROM ` + snapshotIngestPhysical

	// The NOT IN filter is evaluated per source against the pre-insert state
	// of common_table. A hashkey that is new in both sources is therefore
	// inserted once from each of them.
	appendCommonSQL = `
		INSERT INTO ` + CommonTable + `
		SELECT * FROM ` + APIIngestTable + `
		WHERE hashkey NOT IN (SELECT hashkey FROM ` + CommonTable + `)
		UNION ALL
		SELECT * FROM ` + snapshotIngestPhysical + `
		WHERE hashkey NOT IN (SELECT hashkey FROM ` + CommonTable + `)`
)

// Merge folds both ingest tables into common_table. The first call creates
// common_table as the union of both ingest tables; later calls append only
// rows whose hashkey is not already present.
func (s *Store) Merge(ctx context.Context) (MergeResult, error) {
	var res MergeResult

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	for _, table := range []string{APIIngestTable, SnapshotIngestTable} {
		ok, err := tableExists(ctx, tx, table)
		if err != nil {
			return res, err
		}
		if !ok {
			return res, fmt.Errorf("ingest table %s does not exist", table)
		}
	}

	exists, err := tableExists(ctx, tx, CommonTable)
	if err != nil {
		return res, err
	}

	var before int64
	if exists {
		if before, err = countRows(ctx, tx, CommonTable); err != nil {
			return res, err
		}
		if _, err := tx.ExecContext(ctx, appendCommonSQL); err != nil {
			return res, fmt.Errorf("failed to append to %s: %w", CommonTable, err)
		}
	} else {
		if _, err := tx.ExecContext(ctx, createCommonSQL); err != nil {
			return res, fmt.Errorf("failed to create %s: %w", CommonTable, err)
		}
		if _, err := tx.ExecContext(ctx,
			`CREATE INDEX IF NOT EXISTS idx_common_table_hashkey ON `+CommonTable+`(hashkey)`,
		); err != nil {
			return res, err
		}
		res.Created = true
	}

	total, err := countRows(ctx, tx, CommonTable)
	if err != nil {
		return res, err
	}

	if err := tx.Commit(); err != nil {
		return res, err
	}

	res.Total = total
	res.Added = total - before
	return res, nil
}
