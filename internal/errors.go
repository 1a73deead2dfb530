package internal

import (
	"errors"
	"fmt"
)

var (
	ErrNoHistory          = errors.New("repository has no commits")
	ErrConflictingRange   = errors.New("a starting commit and a commit count are mutually exclusive")
	ErrNotInitialized     = errors.New("contexthub is not initialized in this repository")
	ErrAlreadyInitialized = errors.New("contexthub is already initialized")
	ErrNotGitRepository   = errors.New("not a git repository")
)

// ReferenceNotFoundError is returned when a user-supplied commit reference
// does not resolve in the repository.
type ReferenceNotFoundError struct {
	Ref string
	Err error
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("reference not found: %s", e.Ref)
}

func (e *ReferenceNotFoundError) Unwrap() error { return e.Err }

// ModelUnavailableError aborts a sync before any commit is processed.
type ModelUnavailableError struct {
	Endpoint string
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model endpoint %s is not available", e.Endpoint)
}

// ModelRequestError covers transport failures, non-success statuses and
// timeouts of a single generation call.
type ModelRequestError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ModelRequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("model %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("model %s: %v", e.Op, e.Err)
}

func (e *ModelRequestError) Unwrap() error { return e.Err }

// ResponseParseError means the model output did not match the extracted
// context schema.
type ResponseParseError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *ResponseParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse model response: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parse model response: %s", e.Reason)
}

func (e *ResponseParseError) Unwrap() error { return e.Err }

// DuplicateCommitError signals that the dedup filter let an already stored
// commit through to the ledger.
type DuplicateCommitError struct {
	Hash string
}

func (e *DuplicateCommitError) Error() string {
	return fmt.Sprintf("commit %s is already stored in the ledger", e.Hash)
}

// StorageError wraps any ledger I/O or constraint failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// CommitError reports which commit failed and how far it got.
type CommitError struct {
	Hash  string
	State CommitState
	Err   error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit %s failed after %s: %v", ShortHash(e.Hash), e.State, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

func wrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	var de *DuplicateCommitError
	if errors.As(err, &se) || errors.As(err, &de) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
