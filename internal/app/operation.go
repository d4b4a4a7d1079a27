package app

import "time"

// Operation identifies one CLI invocation or server session in the log.
// Every record the app writes carries its ID.
type Operation struct {
	ID     string
	Name   string
	Status string // "success" or "error"
}

// NewOperation creates an operation named after the command being run. The
// ID is the UTC start time, which sorts log lines by invocation.
func NewOperation(name string, started time.Time) *Operation {
	return &Operation{
		ID:     started.UTC().Format("20060102T150405Z"),
		Name:   name,
		Status: "success",
	}
}

// Fail marks the operation as failed.
func (op *Operation) Fail() {
	op.Status = "error"
}
