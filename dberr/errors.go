package dberr

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	Internal Kind = iota
	InvalidArgument
	NotFound
	AlreadyExists
	Unsupported
	NotImplemented
	TypeMismatch
	ParamCountMismatch
	EmptyNotAllowed
	Inconsistent
	NotStarted
	StartFailed
)

func (k Kind) String() string {
	switch k {
	case Internal:
		return "internal"
	case InvalidArgument:
		return "invalid_argument"
	case NotFound:
		return "not_found"
	case AlreadyExists:
		return "already_exists"
	case Unsupported:
		return "unsupported"
	case NotImplemented:
		return "not_implemented"
	case TypeMismatch:
		return "type_mismatch"
	case ParamCountMismatch:
		return "param_count_mismatch"
	case EmptyNotAllowed:
		return "empty_not_allowed"
	case Inconsistent:
		return "inconsistent"
	case NotStarted:
		return "not_started"
	case StartFailed:
		return "start_failed"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// sentinels usable with errors.Is, matching any *Error of the same kind
var (
	ErrInternal           = &Error{Kind: Internal}
	ErrInvalidArgument    = &Error{Kind: InvalidArgument}
	ErrNotFound           = &Error{Kind: NotFound}
	ErrAlreadyExists      = &Error{Kind: AlreadyExists}
	ErrUnsupported        = &Error{Kind: Unsupported}
	ErrNotImplemented     = &Error{Kind: NotImplemented}
	ErrTypeMismatch       = &Error{Kind: TypeMismatch}
	ErrParamCountMismatch = &Error{Kind: ParamCountMismatch}
	ErrEmptyNotAllowed    = &Error{Kind: EmptyNotAllowed}
	ErrInconsistent       = &Error{Kind: Inconsistent}
	ErrNotStarted         = &Error{Kind: NotStarted}
	ErrStartFailed        = &Error{Kind: StartFailed}
)

type Error struct {
	Kind Kind
	Msg  string

	cause error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s", msg, e.cause.Error())
	}

	return msg
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, cause error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), cause: cause}
}

// KindOf returns the kind of the outermost *Error in the chain, Internal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

func Is(err error, kind Kind) bool {
	return errors.Is(err, &Error{Kind: kind})
}
