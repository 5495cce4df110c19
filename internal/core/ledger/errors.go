package ledger

import "errors"

// Ledger-specific errors
var (
	ErrCommitInProgress   = errors.New("a commit is already in flight")
	ErrEmptyField         = errors.New("field name is empty")
	ErrEmptyID            = errors.New("entity id is empty")
	ErrUnknownEntity      = errors.New("entity not loaded")
	ErrUnknownField       = errors.New("field has no known original value")
	ErrRequiredFieldEmpty = errors.New("required field is empty")
	ErrCommitRejected     = errors.New("server rejected the batch")
	ErrUnmappedField      = errors.New("field has no relationship mapping")
)
