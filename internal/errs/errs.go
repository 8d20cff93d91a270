// Package errs defines the error kinds shared by the catalog, the table store,
// the ingestion pipeline and the statistics engine.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error so callers can decide how to surface it.
type Kind uint8

const (
	KindUnknown Kind = iota
	// DuplicateName: a catalog entry or a table with the name already exists.
	DuplicateName
	// NotFound: the requested table or catalog entry is absent.
	NotFound
	// InvalidName: empty or otherwise unusable dataset identifier.
	InvalidName
	// ParseError: malformed input rows or a value that does not fit its column type.
	ParseError
	// StorageFailure: the underlying store is unavailable or corrupt. Not recoverable.
	StorageFailure
	// InsufficientData: not enough numeric columns for the requested computation.
	InsufficientData
)

func (k Kind) String() string {
	switch k {
	case DuplicateName:
		return "duplicate name"
	case NotFound:
		return "not found"
	case InvalidName:
		return "invalid name"
	case ParseError:
		return "parse error"
	case StorageFailure:
		return "storage failure"
	case InsufficientData:
		return "insufficient data"
	default:
		return "unknown error"
	}
}

// Error carries the kind of failure, the operation and the dataset involved.
type Error struct {
	Kind Kind
	Op   string // e.g. "store.CreateTable"
	Name string // dataset or table name, if any
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Kind.String()
	if e.Name != "" {
		msg = fmt.Sprintf("%s: %q", msg, e.Name)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind. The sentinels below
// carry only a kind, so errors.Is(err, errs.ErrNotFound) matches any NotFound.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrDuplicateName    = &Error{Kind: DuplicateName}
	ErrNotFound         = &Error{Kind: NotFound}
	ErrInvalidName      = &Error{Kind: InvalidName}
	ErrParse            = &Error{Kind: ParseError}
	ErrStorage          = &Error{Kind: StorageFailure}
	ErrInsufficientData = &Error{Kind: InsufficientData}
)

// E builds an *Error.
func E(kind Kind, op, name string, err error) *Error {
	return &Error{Kind: kind, Op: op, Name: name, Err: err}
}

// Storage wraps err as a StorageFailure unless it already carries a kind.
func Storage(op, name string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return E(StorageFailure, op, name, err)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Recoverable reports whether the caller can act on err (pick another name,
// fix the input, ...). Storage failures and unclassified errors are not.
func Recoverable(err error) bool {
	switch KindOf(err) {
	case DuplicateName, NotFound, InvalidName, ParseError, InsufficientData:
		return true
	default:
		return false
	}
}
