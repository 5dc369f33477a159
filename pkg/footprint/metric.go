package footprint

import (
	"encoding/json"
	"fmt"
	"time"
)

// Fields is the open metric mapping stored per session. New keys may appear
// with later code versions; readers must tolerate unknown keys.
type Fields map[string]any

// SessionMetric is one derived record per (symbol, session date).
type SessionMetric struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Fields Fields    `json:"fields"`
}

// Float reads a numeric field. JSON round-trips deliver numbers as float64.
func (f Fields) Float(key string) (float64, bool) {
	v, ok := f[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// Bool reads a boolean field.
func (f Fields) Bool(key string) (bool, bool) {
	v, ok := f[key]
	if !ok || v == nil {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Clock reads an "HH:MM" event-time field. A nil value means the event never
// occurred in that session.
func (f Fields) Clock(key string) (string, bool) {
	v, ok := f[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Has reports whether the key exists, regardless of value.
func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// Clone returns a shallow copy of the mapping.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// MarshalCanonical serializes fields with sorted keys, giving byte-identical
// output for identical values. encoding/json sorts map keys.
func (f Fields) MarshalCanonical() ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("footprint: marshal fields: %w", err)
	}
	return data, nil
}

// DayLevels carries the prior session's extremes used for PDH/PDL metrics.
type DayLevels struct {
	High float64
	Low  float64
}

// LevelsOf extracts a session's day extremes for the next session's
// prior-level metrics. Returns nil when the metric lacks day aggregates.
func LevelsOf(m *SessionMetric) *DayLevels {
	if m == nil {
		return nil
	}
	high, okH := m.Fields.Float(KeyDayHigh)
	low, okL := m.Fields.Float(KeyDayLow)
	if !okH || !okL {
		return nil
	}
	return &DayLevels{High: high, Low: low}
}
