// Package errors classifies the failures surfaced by the market data client.
//
// Every error produced by an exchange adapter is an *Error carrying one of
// five classes. Callers branch on the class through the Is predicates or
// ClassOf rather than matching message text. Transient errors are safe to
// retry after a backoff; every other class is permanent for the request that
// produced it.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Class identifies the failure category of an Error.
type Class string

const (
	// ClassMarketData covers vendor rejections and malformed or empty
	// payloads that do not fit a more specific class.
	ClassMarketData Class = "market_data"

	// ClassSymbolNotSupported marks symbols the exchange rejected as
	// unknown or unavailable.
	ClassSymbolNotSupported Class = "symbol_not_supported"

	// ClassIntervalNotSupported marks intervals the exchange has no
	// mapping for.
	ClassIntervalNotSupported Class = "interval_not_supported"

	// ClassTransient marks network failures, throttling and server-side
	// errors. Requests that fail with this class may be retried.
	ClassTransient Class = "exchange_transient"

	// ClassInvalidArgument marks caller mistakes detected before any
	// network activity.
	ClassInvalidArgument Class = "invalid_argument"
)

// Error is the concrete error type returned by every adapter and by query
// validation. Exchange is empty for errors raised before an exchange was
// involved.
type Error struct {
	Class    Class
	Exchange string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Exchange != "" {
		msg = e.Exchange + ": " + msg
	}
	if e.Cause != nil {
		msg = msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether the error is transient.
func (e *Error) Retryable() bool { return e.Class == ClassTransient }

// Is matches target when it is an *Error of the same class. A target with an
// empty Exchange matches any exchange.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Class != e.Class {
		return false
	}
	return t.Exchange == "" || t.Exchange == e.Exchange
}

func newError(class Class, exchange, message string, cause error) *Error {
	return &Error{Class: class, Exchange: exchange, Message: message, Cause: cause}
}

// New returns a generic market data error.
func New(exchange, message string) *Error {
	return newError(ClassMarketData, exchange, message, nil)
}

// Newf returns a generic market data error with a formatted message.
func Newf(exchange, format string, args ...any) *Error {
	return newError(ClassMarketData, exchange, fmt.Sprintf(format, args...), nil)
}

// Wrap returns a generic market data error with a cause.
func Wrap(exchange, message string, cause error) *Error {
	return newError(ClassMarketData, exchange, message, cause)
}

// NewSymbolNotSupported reports a symbol the exchange does not recognize.
func NewSymbolNotSupported(exchange, message string) *Error {
	return newError(ClassSymbolNotSupported, exchange, message, nil)
}

// NewIntervalNotSupported reports an interval the exchange does not offer.
func NewIntervalNotSupported(exchange, message string) *Error {
	return newError(ClassIntervalNotSupported, exchange, message, nil)
}

// NewTransient reports a retryable failure.
func NewTransient(exchange, message string) *Error {
	return newError(ClassTransient, exchange, message, nil)
}

// NewTransientf reports a retryable failure with a formatted message.
func NewTransientf(exchange, format string, args ...any) *Error {
	return newError(ClassTransient, exchange, fmt.Sprintf(format, args...), nil)
}

// WrapTransient reports a retryable failure with a cause.
func WrapTransient(exchange, message string, cause error) *Error {
	return newError(ClassTransient, exchange, message, cause)
}

// NewInvalidArgument reports a caller mistake caught before any request was
// sent.
func NewInvalidArgument(message string) *Error {
	return newError(ClassInvalidArgument, "", message, nil)
}

// NewInvalidArgumentf reports a caller mistake with a formatted message.
func NewInvalidArgumentf(format string, args ...any) *Error {
	return newError(ClassInvalidArgument, "", fmt.Sprintf(format, args...), nil)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ClassOf returns the class of err, or an empty Class when err does not wrap
// an *Error.
func ClassOf(err error) Class {
	if e, ok := As(err); ok {
		return e.Class
	}
	return ""
}

func hasClass(err error, class Class) bool {
	e, ok := As(err)
	return ok && e.Class == class
}

// IsMarketData reports whether err belongs to the taxonomy at all, whatever
// its class.
func IsMarketData(err error) bool {
	_, ok := As(err)
	return ok
}

// IsSymbolNotSupported reports whether err is a symbol rejection.
func IsSymbolNotSupported(err error) bool {
	return hasClass(err, ClassSymbolNotSupported)
}

// IsIntervalNotSupported reports whether err is an interval rejection.
func IsIntervalNotSupported(err error) bool {
	return hasClass(err, ClassIntervalNotSupported)
}

// IsTransient reports whether err may be retried after a backoff.
func IsTransient(err error) bool {
	return hasClass(err, ClassTransient)
}

// IsInvalidArgument reports whether err was raised by input validation.
func IsInvalidArgument(err error) bool {
	return hasClass(err, ClassInvalidArgument)
}
