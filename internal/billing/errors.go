package billing

import "errors"

var (
	// ErrValidation reports input the caller must fix before retrying, such
	// as missing fees or nothing left to invoice.
	ErrValidation = errors.New("validation failed")
	// ErrReferentialIntegrity reports a delete refused because billing
	// history still references the record.
	ErrReferentialIntegrity = errors.New("referential integrity violation")
	ErrNotFound             = errors.New("not found")
	// ErrParse reports a malformed date, amount or member type at the boundary.
	ErrParse = errors.New("parse error")
)

// StorageError wraps a failure of the underlying database.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
