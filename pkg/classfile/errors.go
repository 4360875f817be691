package classfile

import (
	"errors"
	"fmt"
)

// ErrMalformedClassFile matches every [*Error] returned by this package via [errors.Is].
var ErrMalformedClassFile = errors.New("malformed class file")

// ErrDecoderState is returned when Decoder steps are called out of order.
var ErrDecoderState = errors.New("classfile: decoder step out of order")

// Reason classifies why a class file was rejected.
type Reason int

// Rejection reasons.
const (
	ReasonBadMagic Reason = iota
	ReasonBadTag
	ReasonBadIndex
	ReasonWrongKind
	ReasonTruncated
	ReasonBadUTF8
	ReasonBadAttribute
)

var reasonNames = [...]string{
	ReasonBadMagic:     "bad magic",
	ReasonBadTag:       "unrecognized constant tag",
	ReasonBadIndex:     "constant pool index out of range",
	ReasonWrongKind:    "constant pool entry has wrong kind",
	ReasonTruncated:    "truncated",
	ReasonBadUTF8:      "invalid modified utf-8",
	ReasonBadAttribute: "invalid attribute",
}

func (r Reason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return fmt.Sprintf("reason(%d)", int(r))
	}

	return reasonNames[r]
}

// Error describes a class file that cannot be parsed.
// Index is the constant pool slot involved, or zero when not applicable.
type Error struct {
	Reason Reason
	Index  int
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	msg := ErrMalformedClassFile.Error() + ": " + e.Reason.String()
	if e.Index > 0 {
		msg += fmt.Sprintf(" (#%d)", e.Index)
	}

	if e.Msg != "" {
		msg += ": " + e.Msg
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is ErrMalformedClassFile.
func (e *Error) Is(target error) bool {
	return target == ErrMalformedClassFile //nolint:errorlint // sentinel identity
}

func malformed(reason Reason, index int, format string, args ...any) *Error {
	return &Error{Reason: reason, Index: index, Msg: fmt.Sprintf(format, args...)}
}

// ReasonOf returns the rejection reason carried by err.
func ReasonOf(err error) (Reason, bool) {
	var cfErr *Error
	if errors.As(err, &cfErr) {
		return cfErr.Reason, true
	}

	return 0, false
}
