package errors

import (
	stderrors "errors"
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is used when a requested record does not exist.
	ErrNotFound = Register(2, "not found")

	// ErrInvalidInput stands for general input problems.
	ErrInvalidInput = Register(3, "invalid input")

	// ErrInvalidState is returned when a voucher or session is in a state
	// that does not allow the requested operation.
	ErrInvalidState = Register(4, "invalid state")

	// ErrDuplicate is returned when a record with the same key already exists
	// and may not be replaced.
	ErrDuplicate = Register(5, "duplicate")

	// ErrDatabase wraps failures of the underlying key-value store.
	ErrDatabase = Register(6, "database")

	// ErrPanic is only set when we recover from a panic.
	ErrPanic = Register(20, "panic")
)

var (
	// ErrInsufficientShares is returned when fewer than two shares are
	// available for reconstruction.
	ErrInsufficientShares = Register(100, "insufficient shares")

	// ErrInvalidShare is returned when the supplied shares do not lie on the
	// same secret or do not reconstruct the expected voucher key.
	ErrInvalidShare = Register(101, "invalid share")

	// ErrAuthenticationFailed is returned when a sealed share does not
	// verify. Treat it as a security event.
	ErrAuthenticationFailed = Register(102, "authentication failed")

	// ErrAlreadyLocked is returned when a live transfer lock exists.
	ErrAlreadyLocked = Register(103, "already locked")

	// ErrExpired is returned when a lock or voucher outlived its validity.
	ErrExpired = Register(104, "expired")

	// ErrOfferStale is returned by a receiver for an offer outside its
	// validity window, even if its signature verifies.
	ErrOfferStale = Register(105, "offer stale")

	// ErrMissingWitnessShare is returned when the public log has no witness
	// share for the voucher yet.
	ErrMissingWitnessShare = Register(106, "missing witness share")

	// ErrCommitMismatch is returned when a commit did not match the live lock.
	ErrCommitMismatch = Register(107, "commit mismatch")

	// ErrInvalidSignature is returned when a signature does not verify.
	ErrInvalidSignature = Register(108, "invalid signature")

	// ErrObsoleteFormat is returned for wire formats older than the
	// supported version.
	ErrObsoleteFormat = Register(109, "obsolete format")

	// ErrUnsupportedVersion is returned for wire formats newer than the
	// supported version.
	ErrUnsupportedVersion = Register(110, "unsupported version")

	// ErrInvalidLength is returned when a payload length matches no known
	// message layout.
	ErrInvalidLength = Register(111, "invalid length")

	// ErrCancelled is returned when the user or caller abandoned a handshake.
	ErrCancelled = Register(112, "cancelled")

	// ErrDeclined is returned when the receiver refused an offer.
	ErrDeclined = Register(113, "declined")

	// ErrTransportTimeout is returned when a byte exchange attempt timed out.
	ErrTransportTimeout = Register(114, "transport timeout")

	// ErrTransportUnavailable is returned when the channel cannot be used.
	ErrTransportUnavailable = Register(115, "transport unavailable")
)

// retryable lists root errors that leave no partial state behind and may be
// retried by the caller.
var retryable = []*Error{
	ErrAlreadyLocked,
	ErrExpired,
	ErrOfferStale,
	ErrMissingWitnessShare,
	ErrCancelled,
	ErrTransportTimeout,
	ErrTransportUnavailable,
}

// Retryable reports whether err may be retried automatically. Cryptographic
// verification failures and commit mismatches are never retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	for _, kind := range retryable {
		if kind.Is(err) {
			return true
		}
	}
	return false
}

// Register returns an error instance that should be used as the base for
// creating error instances during runtime.
//
// Attempt to reuse an error code results in panic. Use this function only
// during a program startup phase.
func Register(code uint32, description string) *Error {
	if e, ok := usedCodes[code]; ok {
		panic(fmt.Sprintf("error with code %d is already registered: %q", code, e.desc))
	}
	err := &Error{
		code: code,
		desc: description,
	}
	usedCodes[err.code] = err
	return err
}

// usedCodes is keeping track of used codes to ensure their uniqueness.
var usedCodes = map[uint32]*Error{
	1: nil, // Code 1 is reserved for errors from outside this package.
}

// Error represents a root error. Every error returned by the voucher core
// wraps one of the registered root errors so callers can branch on kind.
type Error struct {
	code uint32
	desc string
}

func (e Error) Error() string {
	return e.desc
}

// Code returns the registered numeric code.
func (e Error) Code() uint32 {
	return e.code
}

// New returns a new error wrapping this root error.
func (e *Error) New(description string) error {
	return Wrap(e, description)
}

// Newf is New with formatting capabilities.
func (e *Error) Newf(description string, args ...interface{}) error {
	return e.New(fmt.Sprintf(description, args...))
}

// Is checks if given error instance is of this kind. This involves
// unwrapping the given error using the Cause method if available.
func (kind *Error) Is(err error) bool {
	// Reflect usage is necessary to correctly compare with
	// a nil implementation of an error.
	if kind == nil {
		if err == nil {
			return true
		}
		return reflect.ValueOf(err).IsNil()
	}

	for {
		if err == kind {
			return true
		}

		if c, ok := err.(causer); ok {
			err = c.Cause()
		} else {
			return false
		}
	}
}

// Wrap extends given error with an additional information.
//
// If err is nil, this returns nil.
func Wrap(err error, description string) error {
	if err == nil {
		return nil
	}

	// Attach a stacktrace only once, at the innermost wrap.
	if stackTrace(err) == nil {
		err = errors.WithStack(err)
	}

	return &wrappedError{
		parent: err,
		msg:    description,
	}
}

// Wrapf extends given error with an additional formatted information.
func Wrapf(err error, format string, args ...interface{}) error {
	desc := fmt.Sprintf(format, args...)
	return Wrap(err, desc)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// Recover captures a panic and stops its propagation. Call it using defer.
func Recover(err *error) {
	if r := recover(); r != nil {
		*err = Wrapf(ErrPanic, "%v", r)
	}
}

type wrappedError struct {
	// This error layer description.
	msg string
	// The underlying error that triggered this one.
	parent error
}

func (e *wrappedError) Error() string {
	return fmt.Sprintf("%s: %s", e.msg, e.parent.Error())
}

func (e *wrappedError) Cause() error {
	return e.parent
}

func (e *wrappedError) Unwrap() error {
	return e.parent
}

// Format prints the error message for %s and %v, and the full stack for %+v.
func (e *wrappedError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "%s: %+v", e.msg, e.parent)
		return
	}
	fmt.Fprint(s, e.Error())
}

// causer is implemented by an error that supports wrapping.
type causer interface {
	Cause() error
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// stackTrace returns the first found stack trace frame carried by given error.
func stackTrace(err error) errors.StackTrace {
	for {
		if st, ok := err.(stackTracer); ok {
			return st.StackTrace()
		}
		if c, ok := err.(causer); ok {
			err = c.Cause()
		} else {
			return nil
		}
	}
}
