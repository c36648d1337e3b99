// Package series implements the reshape → densify → repair → aggregate
// pipeline that turns cumulative-count snapshots into daily, monotonic,
// chart-ready time series.
//
// Every function in this package is pure: it returns a new table and never
// mutates its input.
package series

import "strconv"

// Value is a metric reading that may be missing.
// A missing reading is never the same thing as a zero count.
type Value struct {
	V     float64
	Valid bool
}

// Missing is the missing-value marker.
var Missing = Value{}

// Some wraps a present reading.
func Some(v float64) Value { return Value{V: v, Valid: true} }

// Or returns the reading, or def when it is missing.
func (v Value) Or(def float64) float64 {
	if !v.Valid {
		return def
	}
	return v.V
}

// Ptr returns nil for a missing reading. Used by JSON encoders that need null.
func (v Value) Ptr() *float64 {
	if !v.Valid {
		return nil
	}
	x := v.V
	return &x
}

func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.V, 'f', -1, 64)
}
