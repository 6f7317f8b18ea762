package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

var (
	// common errors
	ErrAccountNotFound = errors.New("account not found")
	ErrEmailNotFound   = errors.New("email not found")
	ErrFolderNotFound  = errors.New("folder not found on server")

	// sync errors
	ErrSyncInProgress = errors.New("sync already in progress for this account")
)

// ConnectionReason classifies why a connection attempt failed. Auth failures
// are terminal; everything else is considered transient and worth one retry.
type ConnectionReason string

const (
	ReasonTimeout ConnectionReason = "timeout"
	ReasonNetwork ConnectionReason = "network"
	ReasonTLS     ConnectionReason = "tls"
	ReasonAuth    ConnectionReason = "auth"
)

type ConnectionError struct {
	Reason ConnectionReason
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error (%s): %v", e.Reason, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *ConnectionError) Retryable() bool {
	return e.Reason != ReasonAuth
}

func NewConnectionError(reason ConnectionReason, err error) *ConnectionError {
	return &ConnectionError{Reason: reason, Err: err}
}

// AsConnectionError unwraps err down to a ConnectionError, if there is one.
func AsConnectionError(err error) (*ConnectionError, bool) {
	var connErr *ConnectionError
	if stderrors.As(err, &connErr) {
		return connErr, true
	}
	return nil, false
}

// ParseError marks a malformed message source. The offending message is
// skipped and the sync pass continues.
type ParseError struct {
	UID uint32
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for uid %d: %v", e.UID, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ProtocolError marks an unexpected server response shape. The offending
// item is skipped and the sync pass continues.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// StorageError marks a local write failure. It is fatal to the current sync
// pass: the cursor must not advance past the failed write.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %v", e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func IsStorageError(err error) bool {
	var storageErr *StorageError
	return stderrors.As(err, &storageErr)
}
