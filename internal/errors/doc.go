/*
Package errors implements the coded error taxonomy of the voucher core.

Each failure the core can surface is a registered root error (Register(code,
description)). Create instances with ErrXyz.New("...") or Wrap(err, "...")
at the point of failure so a stack trace is attached once, at the lowest
frame. Test an error's kind with ErrXyz.Is(err) or the stdlib-compatible
Is(err, ErrXyz).

Retryable encodes the propagation policy: timeouts, missing dependencies and
lock contention leave no partial state and may be retried; cryptographic
verification failures and commit mismatches may indicate an attack and are
never retried automatically.

Formatting:

	%s  the error message
	%+v the message followed by the stack trace of the creation point
*/
package errors
