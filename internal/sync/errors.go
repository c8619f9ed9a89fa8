package sync

import (
	"github.com/stacklok/toolhive-replication-server/internal/resource"
)

// ErrorKind classifies an Error
type ErrorKind string

const (
	// KindConfiguration marks errors that no retry can fix
	KindConfiguration ErrorKind = "Configuration"
)

// Error represents a structured sync error that stops the sync pass
type Error struct {
	Err      error
	Message  string
	Kind     ErrorKind
	Resource resource.Key
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}
