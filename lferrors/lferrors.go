// Package lferrors defines the closed error taxonomy surfaced across the
// hazard and olist packages. It wraps github.com/agilira/go-errors so that
// every failure carries a stable code and structured context instead of an
// ad-hoc sentinel value.
package lferrors

import (
	goerrors "errors"

	"github.com/agilira/go-errors"
)

// Error codes for the lock-free ordered list and its SMR substrate.
const (
	CodeOutOfMemory   errors.ErrorCode = "OLIST_OUT_OF_MEMORY"
	CodeTooManyGuards errors.ErrorCode = "OLIST_TOO_MANY_GUARDS"
	CodeOutOfRecords  errors.ErrorCode = "OLIST_OUT_OF_RECORDS"
)

const (
	msgOutOfMemory   = "node allocation failed"
	msgTooManyGuards = "thread exceeded its protection-slot budget"
	msgOutOfRecords  = "hazard pointer registry is full"
)

// NewOutOfMemory reports that a node allocation failed during insert. No
// state is mutated before this error is returned.
func NewOutOfMemory() error {
	return errors.New(CodeOutOfMemory, msgOutOfMemory)
}

// NewTooManyGuards reports that a thread tried to nest more guarded
// traversals than its configured slot budget allows.
func NewTooManyGuards(slotsPerThread int) error {
	return errors.NewWithField(CodeTooManyGuards, msgTooManyGuards, "slots_per_thread", slotsPerThread)
}

// NewOutOfRecords reports that the hazard pointer registry has no free
// per-thread record left at Register time.
func NewOutOfRecords(maxThreads int) error {
	return errors.NewWithField(CodeOutOfRecords, msgOutOfRecords, "max_threads", maxThreads)
}

// IsOutOfMemory reports whether err is (or wraps) a CodeOutOfMemory error.
func IsOutOfMemory(err error) bool {
	return errors.HasCode(err, CodeOutOfMemory)
}

// IsTooManyGuards reports whether err is (or wraps) a CodeTooManyGuards error.
func IsTooManyGuards(err error) bool {
	return errors.HasCode(err, CodeTooManyGuards)
}

// IsOutOfRecords reports whether err is (or wraps) a CodeOutOfRecords error.
func IsOutOfRecords(err error) bool {
	return errors.HasCode(err, CodeOutOfRecords)
}

// Code extracts the ErrorCode from err, or "" if err carries none.
func Code(err error) errors.ErrorCode {
	if err == nil {
		return ""
	}
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		return coder.ErrorCode()
	}
	return ""
}
