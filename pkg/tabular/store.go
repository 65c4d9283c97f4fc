// Package tabular loads a JSON dataset into an in-memory SQL table and
// executes read-only queries against it.
package tabular

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Execution failure classes. Callers pick a retry hint strategy based on
// which one they get.
var (
	ErrSyntax    = errors.New("tabular: malformed query")
	ErrExecution = errors.New("tabular: query execution failed")
)

// Store holds one dataset as a single in-memory table.
type Store struct {
	db        *gorm.DB
	tableName string
	columns   []string
	logger    *log.Logger
}

// NewStore opens an empty in-memory database. Call LoadDataset before
// executing queries.
func NewStore(logger *log.Logger) (*Store, error) {
	// Shared cache keeps the memory database alive across pooled
	// connections.
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open in-memory database: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// LoadDataset reads a JSON file and (re)builds the table from it. The table
// is named after the file stem; a previous dataset is dropped first. The file
// may hold either a flat array of row objects or an object whose first array
// field holds the rows.
func (s *Store) LoadDataset(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read dataset: %w", err)
	}

	rows, err := extractRows(raw)
	if err != nil {
		return fmt.Errorf("parse dataset %s: %w", filepath.Base(path), err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("dataset %s holds no rows", filepath.Base(path))
	}

	tableName := sanitizeIdentifier(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))

	fields := collectFields(rows)
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.column
	}
	if len(columns) == 0 {
		return fmt.Errorf("dataset %s has no usable columns", filepath.Base(path))
	}

	if s.tableName != "" {
		if err := s.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %q", s.tableName)).Error; err != nil {
			return fmt.Errorf("drop previous table: %w", err)
		}
	}

	colDefs := make([]string, len(columns))
	for i, c := range columns {
		colDefs[i] = fmt.Sprintf("%q TEXT", c)
	}
	createStmt := fmt.Sprintf("CREATE TABLE %q (%s)", tableName, strings.Join(colDefs, ", "))
	if err := s.db.Exec(createStmt).Error; err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	insertStmt := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)", tableName, strings.Join(quoted, ", "), placeholders)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			values := make([]any, len(fields))
			for i, f := range fields {
				values[i] = stringifyValue(row[f.key])
			}
			if err := tx.Exec(insertStmt, values...).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert rows: %w", err)
	}

	s.tableName = tableName
	s.columns = columns
	s.logger.Printf("[TABULAR] Loaded %d rows into table %q (%d columns)", len(rows), tableName, len(columns))
	return nil
}

// Execute runs one read-only query and returns its rows. Non-SELECT
// statements and parser rejections map to ErrSyntax; runtime failures such as
// unknown columns map to ErrExecution.
func (s *Store) Execute(ctx context.Context, query string) ([]map[string]any, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty statement", ErrSyntax)
	}
	if !strings.HasPrefix(strings.ToUpper(trimmed), "SELECT") {
		return nil, fmt.Errorf("%w: only SELECT statements are allowed", ErrSyntax)
	}

	var rows []map[string]any
	if err := s.db.WithContext(ctx).Raw(trimmed).Scan(&rows).Error; err != nil {
		return nil, classifyExecError(err)
	}
	return rows, nil
}

// TableName returns the loaded table's name, empty before LoadDataset.
func (s *Store) TableName() string {
	return s.tableName
}

// Columns returns the loaded table's column names in schema order.
func (s *Store) Columns() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

func classifyExecError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "syntax error") || strings.Contains(msg, "incomplete input") {
		return fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return fmt.Errorf("%w: %v", ErrExecution, err)
}

// extractRows accepts three document shapes: the chunked export format (an
// array of wrapper objects keyed by chunk id, each value carrying the real
// rows in its "content" array), a flat JSON array of row objects, or an
// object whose first array-of-objects field holds the rows. Chunk detection
// runs first because a chunked file also parses as a flat array, which would
// turn the wrappers into rows and the chunk ids into columns.
func extractRows(raw []byte) ([]map[string]any, error) {
	if rows, ok := extractChunkRows(raw); ok {
		return rows, nil
	}

	var flat []map[string]any
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("unsupported document shape")
	}

	keys := make([]string, 0, len(wrapped))
	for k := range wrapped {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		var rows []map[string]any
		if err := json.Unmarshal(wrapped[k], &rows); err == nil && len(rows) > 0 {
			return rows, nil
		}
	}
	return nil, fmt.Errorf("no array of row objects found")
}

// extractChunkRows recognizes the chunked export shape and flattens every
// chunk's content rows in order. Chunk ids are stable across files, so they
// come out in sorted order within each wrapper for determinism. Any element
// that does not look like a chunk wrapper rejects the whole format.
func extractChunkRows(raw []byte) ([]map[string]any, bool) {
	var wrappers []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrappers); err != nil || len(wrappers) == 0 {
		return nil, false
	}

	type chunk struct {
		Content []map[string]any `json:"content"`
	}

	var rows []map[string]any
	matched := false
	for _, w := range wrappers {
		keys := make([]string, 0, len(w))
		for k := range w {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			var c chunk
			if err := json.Unmarshal(w[k], &c); err != nil || c.Content == nil {
				return nil, false
			}
			matched = true
			rows = append(rows, c.Content...)
		}
	}
	if !matched {
		return nil, false
	}
	return rows, true
}

// field ties a sanitized column name to the raw JSON key it came from.
type field struct {
	key    string
	column string
}

// collectFields gathers the union of keys across all rows, sanitized for SQL
// use. First row's keys come sorted for determinism, stragglers follow in the
// order rows introduce them.
func collectFields(rows []map[string]any) []field {
	var fields []field
	seen := make(map[string]bool)

	add := func(k string) {
		c := sanitizeIdentifier(k)
		if c != "" && !seen[c] {
			seen[c] = true
			fields = append(fields, field{key: k, column: c})
		}
	}

	first := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		first = append(first, k)
	}
	sort.Strings(first)
	for _, k := range first {
		add(k)
	}

	for _, row := range rows[1:] {
		extra := make([]string, 0)
		for k := range row {
			if !seen[sanitizeIdentifier(k)] {
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
		for _, k := range extra {
			add(k)
		}
	}

	return fields
}

func stringifyValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return val
	case float64, bool:
		return fmt.Sprintf("%v", val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}

// sanitizeIdentifier maps characters SQL identifiers cannot carry unquoted to
// underscores.
func sanitizeIdentifier(name string) string {
	replacer := strings.NewReplacer("/", "_", " ", "_", "-", "_")
	return replacer.Replace(strings.TrimSpace(name))
}
