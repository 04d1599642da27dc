package transport

import (
	"context"

	"bons/internal/domain"
	"bons/internal/errors"
)

// Channel is the byte-exchange primitive used by the transfer service.
type Channel = domain.Channel

// ctxError maps a finished context to the transport error taxonomy.
func ctxError(ctx context.Context, op string) error {
	if ctx.Err() == context.DeadlineExceeded {
		return errors.ErrTransportTimeout.Newf("%s timed out", op)
	}
	return errors.ErrCancelled.Newf("%s cancelled", op)
}
