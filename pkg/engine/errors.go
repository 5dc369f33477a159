package engine

import (
	"fmt"
	"strings"
	"time"
)

// FetchError wraps a market provider failure for one asset.
type FetchError struct {
	Asset string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("engine: fetch %s: %v", e.Asset, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// PersistenceError wraps a storage failure for one asset operation.
type PersistenceError struct {
	Asset string
	Op    string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("engine: %s %s: %v", e.Op, e.Asset, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// SchemaDriftDetected reports stored metric rows that are missing keys the
// current builder emits. It routes the asset into a full rebuild rather than
// failing the run.
type SchemaDriftDetected struct {
	Asset       string
	MissingKeys []string
}

func (e *SchemaDriftDetected) Error() string {
	return fmt.Sprintf("engine: schema drift on %s: missing %s", e.Asset, strings.Join(e.MissingKeys, ","))
}

// GapDetected reports trading days between the first and last stored session
// dates that have no metric row.
type GapDetected struct {
	Asset string
	Dates []time.Time
}

func (e *GapDetected) Error() string {
	return fmt.Sprintf("engine: %s is missing %d session rows", e.Asset, len(e.Dates))
}

// InsufficientHistory flags a report window holding fewer sessions than the
// configured minimum sample size.
type InsufficientHistory struct {
	Samples int
	Min     int
}

func (e *InsufficientHistory) Error() string {
	return fmt.Sprintf("engine: %d sessions below minimum %d", e.Samples, e.Min)
}
