package repository

import (
	"time"

	"hrgate-backend/internal/erp"
	"hrgate-backend/internal/timeutil"
)

// The ERP serializes absent values as JSON false, many2one references as
// [id, display_name] pairs and numeric ids as floats. These helpers fold
// those shapes into Go types.

func recString(r erp.Record, key string) string {
	if s, ok := r[key].(string); ok {
		return s
	}
	return ""
}

func recInt64(r erp.Record, key string) int64 {
	switch v := r[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	}
	return 0
}

func recFloat(r erp.Record, key string) float64 {
	if f, ok := r[key].(float64); ok {
		return f
	}
	return 0
}

// recRefID extracts the id of a many2one reference ([id, name] or bare id).
func recRefID(r erp.Record, key string) (int64, bool) {
	switch v := r[key].(type) {
	case []any:
		if len(v) > 0 {
			if id, ok := v[0].(float64); ok {
				return int64(id), true
			}
		}
	case float64:
		return int64(v), true
	}
	return 0, false
}

// recIDs extracts a one2many/many2many id list.
func recIDs(r erp.Record, key string) []int64 {
	raw, ok := r[key].([]any)
	if !ok {
		return nil
	}
	ids := make([]int64, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(float64); ok {
			ids = append(ids, int64(f))
		}
	}
	return ids
}

// recTime parses a stored ERP timestamp; nil when the field is false/empty.
func recTime(r erp.Record, key string) *time.Time {
	s := recString(r, key)
	if s == "" {
		return nil
	}
	t, err := time.ParseInLocation(timeutil.ERPLayout, s, time.UTC)
	if err != nil {
		return nil
	}
	return &t
}
