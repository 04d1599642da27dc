package shares

import (
	"crypto/subtle"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/group/edwards25519"
	"go.dedis.ch/kyber/v3/share"

	"bons/internal/crypto"
	"bons/internal/domain"
	"bons/internal/errors"
	"bons/internal/util/memzero"
)

const (
	threshold = 2
	total     = 3
)

// Share positions on the polynomial. kyber numbers shares from zero and
// evaluates share i at x = i+1.
const (
	anchorIndex   = 0
	travelerIndex = 1
	witnessIndex  = 2
)

// Codec is a (2,3) Shamir sharing over the Ed25519 scalar field.
type Codec struct {
	suite *edwards25519.SuiteEd25519
}

// NewCodec returns a Codec using the Ed25519 group with a Blake2/SHA-256
// random stream.
func NewCodec() *Codec {
	return &Codec{suite: edwards25519.NewBlakeSHA256Ed25519()}
}

// NewScalar returns a fresh random canonical scalar. The caller owns the
// buffer and must zero it.
func (c *Codec) NewScalar() ([]byte, error) {
	s := c.suite.Scalar().Pick(c.suite.RandomStream())
	defer s.Zero()
	b, err := s.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, err.Error())
	}
	return b, nil
}

// Split shares scalar so that any two of the three shares rebuild it and a
// single share reveals nothing about it.
func (c *Codec) Split(scalar []byte) (domain.ShareSet, error) {
	var set domain.ShareSet
	secret, err := c.scalar(scalar)
	if err != nil {
		return set, errors.Wrap(errors.ErrInvalidInput, "secret is not a canonical scalar")
	}

	poly := share.NewPriPoly(c.suite, threshold, secret, c.suite.RandomStream())
	defer func() {
		for _, coeff := range poly.Coefficients() {
			coeff.Zero()
		}
	}()

	out := poly.Shares(total)
	defer func() {
		for _, ps := range out {
			ps.V.Zero()
		}
	}()

	targets := [total]*domain.Share{
		anchorIndex:   &set.Anchor,
		travelerIndex: &set.Traveler,
		witnessIndex:  &set.Witness,
	}
	for _, ps := range out {
		if err := c.put(targets[ps.I], ps.V); err != nil {
			crypto.WipeShare(&set.Anchor)
			crypto.WipeShare(&set.Traveler)
			crypto.WipeShare(&set.Witness)
			return domain.ShareSet{}, err
		}
	}
	return set, nil
}

// Combine rebuilds the voucher scalar from any two shares; nil marks an
// absent share. With all three present every pair must agree. The result
// must derive the voucher id, which is what exposes shares taken from a
// different split. The caller owns the returned buffer and must zero it.
func (c *Codec) Combine(id domain.VoucherID, anchor, traveler, witness *domain.Share) ([]byte, error) {
	given := make([]*share.PriShare, 0, total)
	in := [total]*domain.Share{
		anchorIndex:   anchor,
		travelerIndex: traveler,
		witnessIndex:  witness,
	}
	for i, s := range in {
		if s == nil {
			continue
		}
		v, err := c.scalar(s[:])
		if err != nil {
			zeroAll(given)
			return nil, errors.Wrap(errors.ErrInvalidShare, "share is not a canonical scalar")
		}
		given = append(given, &share.PriShare{I: i, V: v})
	}
	defer zeroAll(given)

	if len(given) < threshold {
		return nil, errors.ErrInsufficientShares.Newf("have %d of %d", len(given), threshold)
	}

	secret, err := c.interpolate(given[0], given[1])
	if err != nil {
		return nil, err
	}
	defer secret.Zero()

	if len(given) == total {
		for _, pair := range [][2]*share.PriShare{{given[0], given[2]}, {given[1], given[2]}} {
			other, err := c.interpolate(pair[0], pair[1])
			if err != nil {
				return nil, err
			}
			same := other.Equal(secret)
			other.Zero()
			if !same {
				return nil, errors.ErrInvalidShare.New("shares do not lie on one polynomial")
			}
		}
	}

	out, err := secret.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidShare, err.Error())
	}
	pub, err := crypto.VoucherPublicKey(out)
	if err != nil {
		memzero.Zero(out)
		return nil, errors.Wrap(errors.ErrInvalidShare, err.Error())
	}
	if subtle.ConstantTimeCompare(pub[:], id[:]) != 1 {
		memzero.Zero(out)
		return nil, errors.ErrInvalidShare.New("shares do not rebuild this voucher")
	}
	return out, nil
}

// PublicKey returns the voucher id derived from scalar.
func (c *Codec) PublicKey(scalar []byte) (domain.VoucherID, error) {
	id, err := crypto.VoucherPublicKey(scalar)
	if err != nil {
		return id, errors.Wrap(errors.ErrInvalidInput, err.Error())
	}
	return id, nil
}

func (c *Codec) interpolate(a, b *share.PriShare) (kyber.Scalar, error) {
	secret, err := share.RecoverSecret(c.suite, []*share.PriShare{a, b}, threshold, total)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidShare, err.Error())
	}
	return secret, nil
}

// scalar decodes b and rejects encodings that are not reduced modulo the
// group order, so every share and secret has exactly one byte form.
func (c *Codec) scalar(b []byte) (kyber.Scalar, error) {
	if len(b) != domain.ShareSize {
		return nil, errors.ErrInvalidInput.Newf("want %d bytes, got %d", domain.ShareSize, len(b))
	}
	s := c.suite.Scalar().SetBytes(b)
	enc, err := s.MarshalBinary()
	if err != nil {
		s.Zero()
		return nil, err
	}
	defer memzero.Zero(enc)
	if subtle.ConstantTimeCompare(enc, b) != 1 {
		s.Zero()
		return nil, errors.ErrInvalidInput.New("non-canonical scalar")
	}
	return s, nil
}

func (c *Codec) put(dst *domain.Share, v kyber.Scalar) error {
	b, err := v.MarshalBinary()
	if err != nil {
		return errors.Wrap(errors.ErrInvalidShare, err.Error())
	}
	defer memzero.Zero(b)
	copy(dst[:], b)
	return nil
}

func zeroAll(ps []*share.PriShare) {
	for _, p := range ps {
		p.V.Zero()
	}
}

// Compile-time assertion that Codec implements domain.ShareCodec.
var _ domain.ShareCodec = (*Codec)(nil)
