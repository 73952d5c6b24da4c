package flow

import (
	"errors"
	"fmt"
)

// ValidationError is a structural problem with the input. It aborts the
// whole operation before any remote call is made.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validationf builds a ValidationError.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// FormatError rejects an image reference: a missing archive entry, an
// unsupported extension or a download that is not an image.
type FormatError struct {
	Ref     string
	Message string
}

func (e *FormatError) Error() string {
	return e.Message
}

// RemoteError wraps a failed call to a remote collaborator.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// asRemote wraps err as a RemoteError unless it already carries one of the
// engine's error types.
func asRemote(op string, err error) error {
	var re *RemoteError
	var ve *ValidationError
	var fe *FormatError
	if errors.As(err, &re) || errors.As(err, &ve) || errors.As(err, &fe) {
		return err
	}
	return &RemoteError{Op: op, Err: err}
}

// Message is the text shown to operators for an isolated failure. Remote
// errors show the remote's own message without the operation prefix.
func Message(err error) string {
	if err == nil {
		return "unknown error"
	}
	var re *RemoteError
	if errors.As(err, &re) && re.Err != nil {
		err = re.Err
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "unknown error"
}
