package transfer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"bons/internal/crypto"
	"bons/internal/domain"
	"bons/internal/errors"
	"bons/internal/transport"
)

// Give runs the donor side over ch: offer, show, then wait for an ack
// until the lock expires. Receive attempts that time out are retried;
// payloads that do not decode or parse are ignored.
func (s *Service) Give(ctx context.Context, id domain.VoucherID, ch domain.Channel) (Result, error) {
	sess, err := s.Offer(ctx, id)
	if err != nil {
		return Result{}, err
	}
	return s.Continue(ctx, sess, ch)
}

// Continue drives an existing donor session to completion over ch. It is
// used after Offer or ResumeDonor.
func (s *Service) Continue(ctx context.Context, sess *DonorSession, ch domain.Channel) (Result, error) {
	hctx, cancel := context.WithTimeout(ctx, sess.ExpiresAt().Sub(s.now()))
	defer cancel()

	if err := s.attempt(hctx, func(actx context.Context) error {
		return ch.Send(actx, sess.OfferBytes())
	}); err != nil {
		return Result{}, s.abandon(ctx, hctx, sess, err)
	}
	sess.Shown()

	for {
		var raw []byte
		err := s.attempt(hctx, func(actx context.Context) (err error) {
			raw, err = ch.Receive(actx)
			return err
		})
		if err != nil {
			if hctx.Err() == nil && errors.ErrTransportTimeout.Is(err) {
				continue
			}
			if hctx.Err() == nil && errors.ErrInvalidInput.Is(err) {
				s.log.Warn().Err(err).
					Str("voucher", crypto.VoucherFingerprint(sess.id)).
					Msg("ignoring unreadable acknowledgement")
				continue
			}
			return Result{}, s.abandon(ctx, hctx, sess, err)
		}

		err = sess.HandleAck(hctx, raw)
		if err == nil {
			return sess.result(s), nil
		}
		if sess.State().Terminal() {
			return Result{}, err
		}
		s.log.Warn().Err(err).
			Str("voucher", crypto.VoucherFingerprint(sess.id)).
			Msg("ignoring unusable acknowledgement")
	}
}

// abandon ends a donor session whose exchange stopped, classifying why.
func (s *Service) abandon(ctx, hctx context.Context, sess *DonorSession, err error) error {
	switch {
	case ctx.Err() != nil:
		if cerr := sess.Cancel(); cerr != nil {
			return cerr
		}
		return errors.Wrap(errors.ErrCancelled, "handshake cancelled")
	case hctx.Err() != nil:
		return sess.expire()
	}
	sess.fail(err)
	return err
}

// Take runs the receiver side over ch: wait for an offer, validate it,
// ask confirm, accept and send the ack. A nil confirm accepts. Once the
// voucher is committed a failure to send the ack is returned together with
// the result.
func (s *Service) Take(ctx context.Context, ch domain.Channel, confirm func(Details) bool) (Result, error) {
	var raw []byte
	for {
		err := s.attempt(ctx, func(actx context.Context) (err error) {
			raw, err = ch.Receive(actx)
			return err
		})
		if err == nil {
			break
		}
		if ctx.Err() == nil && errors.ErrTransportTimeout.Is(err) {
			continue
		}
		if ctx.Err() == nil && errors.ErrInvalidInput.Is(err) {
			s.log.Warn().Err(err).Msg("ignoring unreadable offer payload")
			continue
		}
		if ctx.Err() != nil {
			return Result{}, errors.Wrap(errors.ErrCancelled, "waiting for an offer")
		}
		return Result{}, err
	}

	sess, err := s.Scan(ctx, raw)
	if err != nil {
		return Result{}, err
	}
	details := sess.Details()
	if confirm != nil && !confirm(details) {
		if err := sess.Decline(); err != nil {
			return Result{}, err
		}
		return Result{}, errors.ErrDeclined.New("offer declined")
	}

	ack, err := sess.Accept(ctx)
	if err != nil {
		return Result{}, err
	}
	res, err := s.receivedResult(details, sess)
	if err != nil {
		return Result{}, err
	}
	err = s.attempt(context.WithoutCancel(ctx), func(actx context.Context) error {
		return ch.Send(actx, ack)
	})
	if err != nil {
		return res, errors.Wrapf(err, "voucher received but the acknowledgement was not delivered")
	}
	sess.Delivered()
	return res, nil
}

// RunLoopback runs donor and receiver concurrently over an in-memory
// channel pair and returns both results.
func RunLoopback(
	ctx context.Context,
	donor, receiver *Service,
	id domain.VoucherID,
	confirm func(Details) bool,
) (given, taken Result, err error) {
	a, b := transport.Pipe()
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		given, err = donor.Give(gctx, id, a)
		return err
	})
	g.Go(func() error {
		var err error
		taken, err = receiver.Take(gctx, b, confirm)
		return err
	})
	err = g.Wait()
	return given, taken, err
}

// attempt runs fn under the per-attempt timeout.
func (s *Service) attempt(ctx context.Context, fn func(context.Context) error) error {
	actx, cancel := context.WithTimeout(ctx, s.cfg.AttemptTimeout)
	defer cancel()
	return fn(actx)
}

func (d *DonorSession) result(s *Service) Result {
	return Result{
		VoucherID:     d.id,
		Role:          domain.RoleDonor,
		Value:         d.snapshot.Value,
		IssuerName:    d.snapshot.IssuerName,
		TransferCount: d.snapshot.TransferCount + 1,
		Duration:      s.now().Sub(d.started),
	}
}

func (s *Service) receivedResult(d Details, sess *ReceiverSession) (Result, error) {
	v, ok, err := s.ledger.Get(d.VoucherID)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		VoucherID:  d.VoucherID,
		Role:       domain.RoleReceiver,
		Value:      d.Value,
		IssuerName: d.IssuerName,
		Duration:   s.now().Sub(sess.started),
	}
	if ok {
		res.TransferCount = v.TransferCount
	}
	return res, nil
}
