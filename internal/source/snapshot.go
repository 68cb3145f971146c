package source

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ibeckermayer/hnpipe/internal/logger"
	"github.com/ibeckermayer/hnpipe/internal/types"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// kidsSeparator separates child ids in the snapshot. The snapshot writes
// ", " between ids.
const kidsSeparator = ","

// SnapshotSource reads every row of a table in a local SQLite snapshot.
type SnapshotSource struct {
	path  string
	table string
	log   logger.Logger
}

// NewSnapshotSource creates an adapter for table in the database at path.
func NewSnapshotSource(path, table string, log logger.Logger) (*SnapshotSource, error) {
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("invalid snapshot table name %q", table)
	}
	return &SnapshotSource{
		path:  path,
		table: table,
		log:   logger.Component(log, "snapshot_source"),
	}, nil
}

func (s *SnapshotSource) Variant() types.Variant { return types.VariantSnapshot }

// Fetch opens the snapshot read-only and maps its columns onto stories by name.
func (s *SnapshotSource) Fetch(ctx context.Context) ([]types.Story, error) {
	if _, err := os.Stat(s.path); err != nil {
		return nil, fmt.Errorf("snapshot database: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+s.path+"?mode=ro")
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `SELECT * FROM `+s.table)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot table %s: %w", s.table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var stories []types.Story
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		st, err := storyFromRow(cols, values)
		if err != nil {
			return nil, fmt.Errorf("snapshot row %d: %w", len(stories)+1, err)
		}
		stories = append(stories, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.log.Info("read snapshot", logger.String("table", s.table), logger.Int("records", len(stories)))
	return stories, nil
}

func storyFromRow(cols []string, values []any) (types.Story, error) {
	st := types.Story{TitleMissing: true}
	var err error

	for i, col := range cols {
		v := values[i]
		switch strings.ToLower(col) {
		case "id":
			st.ID, err = asInt64(v)
		case "title":
			st.Title, st.TitleMissing = asString(v), v == nil
		case "kids":
			st.Kids = parseKids(v)
		case "by":
			st.By = asString(v)
		case "time":
			st.Time, err = asInt64(v)
		case "score":
			var n int64
			n, err = asInt64(v)
			st.Score = int(n)
		case "url":
			st.URL = asString(v)
		case "type":
			st.Type = asString(v)
		case "descendants":
			var n int64
			n, err = asInt64(v)
			st.Descendants = int(n)
		case "text":
			st.Text = asString(v)
		}
		if err != nil {
			return st, fmt.Errorf("column %s: %w", col, err)
		}
	}

	return st, nil
}

// parseKids splits the serialized child list back into ids. Brackets and
// spacing around the separator are tolerated; elements that are not ids are
// skipped.
func parseKids(v any) []int64 {
	s := strings.Trim(strings.TrimSpace(asString(v)), "[]")
	if s == "" {
		return nil
	}

	var kids []int64
	for _, p := range strings.Split(s, kidsSeparator) {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			continue
		}
		kids = append(kids, id)
	}
	return kids
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func asInt64(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return x, nil
	case float64:
		return int64(x), nil
	case time.Time:
		return x.Unix(), nil
	case string:
		if x == "" {
			return 0, nil
		}
		return strconv.ParseInt(x, 10, 64)
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	default:
		return 0, fmt.Errorf("unsupported value %T", v)
	}
}
