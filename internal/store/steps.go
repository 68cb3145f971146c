package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// StepName identifies a pipeline step for materialization records.
type StepName string

const (
	StepAPIIngest      StepName = "topstories_api_ingest"
	StepSnapshotIngest StepName = "topstories_sqlite_ingest"
	StepMerge          StepName = "common_table"
	StepTopWords       StepName = "most_frequent_title_words"
	StepReloadSignal   StepName = "dashboard_reload"
)

// Materialization records what a step produced during a run.
type Materialization struct {
	ID        int64          `json:"id"`
	RunID     string         `json:"run_id"`
	Variant   string         `json:"variant"`
	Step      StepName       `json:"step"`
	Metadata  map[string]any `json:"metadata"`
	Preview   string         `json:"preview,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ErrNoMaterialization is returned when a step has never completed.
var ErrNoMaterialization = errors.New("no materialization recorded")

// SaveMaterialization appends a materialization record and returns its id.
func (s *Store) SaveMaterialization(ctx context.Context, m *Materialization) (int64, error) {
	metaJSON, err := json.Marshal(m.Metadata)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal step metadata: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO `+MaterializedTable+` (run_id, variant, step, metadata, preview, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.RunID, m.Variant, string(m.Step), string(metaJSON), m.Preview, m.CreatedAt.Format(timestampLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to save materialization: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	m.ID = id
	return id, nil
}

// RecentMaterializations returns the newest records first.
func (s *Store) RecentMaterializations(ctx context.Context, limit int) ([]Materialization, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, variant, step, metadata, preview, created_at
		FROM `+MaterializedTable+`
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMaterializations(rows)
}

// LatestMaterialization returns the most recent record for a step.
func (s *Store) LatestMaterialization(ctx context.Context, step StepName) (*Materialization, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, variant, step, metadata, preview, created_at
		FROM `+MaterializedTable+`
		WHERE step = ?
		ORDER BY id DESC
		LIMIT 1
	`, string(step))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ms, err := scanMaterializations(rows)
	if err != nil {
		return nil, err
	}
	if len(ms) == 0 {
		return nil, fmt.Errorf("%w for step %s", ErrNoMaterialization, step)
	}
	return &ms[0], nil
}

func scanMaterializations(rows *sql.Rows) ([]Materialization, error) {
	var out []Materialization
	for rows.Next() {
		var m Materialization
		var step, createdAt string
		var metaJSON, preview sql.NullString

		if err := rows.Scan(&m.ID, &m.RunID, &m.Variant, &step, &metaJSON, &preview, &createdAt); err != nil {
			return nil, err
		}

		m.Step = StepName(step)
		m.Preview = preview.String
		if metaJSON.Valid {
			json.Unmarshal([]byte(metaJSON.String), &m.Metadata)
		}
		if t, err := time.Parse(timestampLayout, createdAt); err == nil {
			m.CreatedAt = t
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
