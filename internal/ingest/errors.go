package ingest

import "fmt"

// LineParseError rejects a single dump line. The pass carries on with the next one.
type LineParseError struct {
	Line  int
	Field string // empty when the line is not valid JSON
	Err   error
}

func (e *LineParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: field %s: %v", e.Line, e.Field, e.Err)
}

func (e *LineParseError) Unwrap() error {
	return e.Err
}

// StoreError is a failed save or lookup while handling one line.
type StoreError struct {
	Line int
	Op   string
	ID   string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("line %d: %s %s: %v", e.Line, e.Op, e.ID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
