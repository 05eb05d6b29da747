package services

import "errors"

// Kind classifies a service failure so controllers can pick a status
// code without string matching.
type Kind int

const (
	KindStore Kind = iota // unclassified storage failure, retryable-unknown
	KindNotFound
	KindForbidden
	KindConflict
	KindInvalid
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "storage error"
}

func (e *Error) Unwrap() error { return e.Err }

func notFound(msg string) error  { return &Error{Kind: KindNotFound, Message: msg} }
func forbidden(msg string) error { return &Error{Kind: KindForbidden, Message: msg} }
func conflict(msg string) error  { return &Error{Kind: KindConflict, Message: msg} }
func invalid(msg string) error   { return &Error{Kind: KindInvalid, Message: msg} }

func storeErr(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindStore, Err: err}
}

// KindOf reports the classification of err, defaulting to KindStore for
// anything that did not come out of this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStore
}
