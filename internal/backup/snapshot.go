// Package backup exports, encrypts, uploads and restores the full local
// state against a remote backup store.
package backup

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Veraticus/stillsuit/internal/service"
)

// SnapshotVersion is the only snapshot format this build reads or writes.
const SnapshotVersion = 1

// tableKeys maps snapshot JSON keys to store table names, in wire order.
var tableKeys = []struct {
	key   string
	table string
}{
	{"transactions", "transactions"},
	{"categories", "categories"},
	{"budgets", "budgets"},
	{"userSettings", "user_settings"},
	{"alertRules", "alert_rules"},
	{"aiTrainingExamples", "ai_training_examples"},
}

// Snapshot is the full export of local state.
type Snapshot struct {
	Tables        service.Tables
	Version       int
	SchemaVersion int
}

// RowCount returns the number of rows across every table.
func (s *Snapshot) RowCount() int {
	n := 0
	for _, rows := range s.Tables {
		n += len(rows)
	}
	return n
}

// MarshalJSON writes the snapshot wire form. Missing tables are written as
// empty arrays.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"version":%d,"schemaVersion":%d`, s.Version, s.SchemaVersion)
	for _, tk := range tableKeys {
		rows := s.Tables[tk.table]
		if rows == nil {
			rows = []service.Row{}
		}
		data, err := json.Marshal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", tk.key, err)
		}
		fmt.Fprintf(&buf, `,%q:`, tk.key)
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the snapshot wire form. Integral numbers decode as
// int64 and other numbers as float64, matching what the store exports.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var version, schemaVersion int
	if v, ok := raw["version"]; ok {
		if err := json.Unmarshal(v, &version); err != nil {
			return fmt.Errorf("invalid version: %w", err)
		}
	}
	if v, ok := raw["schemaVersion"]; ok {
		if err := json.Unmarshal(v, &schemaVersion); err != nil {
			return fmt.Errorf("invalid schemaVersion: %w", err)
		}
	}

	tables := make(service.Tables, len(tableKeys))
	for _, tk := range tableKeys {
		rows := []service.Row{}
		if v, ok := raw[tk.key]; ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			dec := json.NewDecoder(bytes.NewReader(v))
			dec.UseNumber()
			if err := dec.Decode(&rows); err != nil {
				return fmt.Errorf("invalid %s: %w", tk.key, err)
			}
			for _, row := range rows {
				for col, cell := range row {
					row[col] = normalizeNumber(cell)
				}
			}
		}
		tables[tk.table] = rows
	}

	s.Version = version
	s.SchemaVersion = schemaVersion
	s.Tables = tables
	return nil
}

func normalizeNumber(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case bool:
		if val {
			return int64(1)
		}
		return int64(0)
	default:
		return val
	}
}
