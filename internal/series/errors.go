package series

import "fmt"

// FormatError reports a date header or cell that could not be parsed.
// It is fatal for the table being built.
type FormatError struct {
	Column string // header of the offending column
	Value  string // raw cell text; empty when the header itself is bad
	Err    error
}

func (e *FormatError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("series: unparseable column %q: %v", e.Column, e.Err)
	}
	return fmt.Sprintf("series: column %q: unparseable value %q: %v", e.Column, e.Value, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// ValidationError reports malformed identity fields or key collisions.
type ValidationError struct {
	Region string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Region == "" {
		return "series: invalid input: " + e.Reason
	}
	return fmt.Sprintf("series: region %q: %s", e.Region, e.Reason)
}

// MissingColumnError reports an expected metric column that is absent.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("series: missing column %q", e.Column)
}
