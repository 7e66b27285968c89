package services

import (
	"fmt"
	"strings"
)

// CrossRef points the caller at an existing record that collided with the
// upload, so the UI can route the user to it.
type CrossRef struct {
	PersonID uint   `json:"person_id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// ValidationError reports why an upload failed validation. It is surfaced to
// the caller verbatim and never retried; the upload is fully rejected.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Reasons, "; ")
}

// DuplicateError reports a resolver REJECT: the upload adds nothing over
// records already on file. Not a system fault.
type DuplicateError struct {
	Message string
	Links   []CrossRef
}

func (e *DuplicateError) Error() string {
	return e.Message
}

// PersistenceFault is a storage or transaction failure. The original cause is
// kept for logs and unwrapping; callers surface only the generic message.
type PersistenceFault struct {
	Err error
}

func (e *PersistenceFault) Error() string {
	return "server error occurred"
}

func (e *PersistenceFault) Unwrap() error {
	return e.Err
}

func persistenceFault(format string, args ...interface{}) *PersistenceFault {
	return &PersistenceFault{Err: fmt.Errorf(format, args...)}
}
