package wire

import (
	"encoding/binary"
	"strings"
	"unicode/utf8"

	"bons/internal/domain"
	"bons/internal/errors"
)

const (
	// OfferVersion is the only offer layout this package accepts.
	OfferVersion uint8 = 0x02
	// LegacyOfferVersion lacks authenticated value and issuer fields.
	LegacyOfferVersion uint8 = 0x01

	// OfferSize is the encoded length of a current offer.
	OfferSize = 240
	// LegacyOfferSize is the encoded length of a legacy offer.
	LegacyOfferSize = 177

	// IssuerNameSize is the fixed width of the issuer name field.
	IssuerNameSize = 27
)

// Offer v2 field offsets.
const (
	offVersion   = 0
	offVoucherID = offVersion + 1
	offValue     = offVoucherID + 32
	offIssuerPub = offValue + 4
	offIssuer    = offIssuerPub + 32
	offCipher    = offIssuer + IssuerNameSize
	offNonce     = offCipher + domain.ShareSize
	offTag       = offNonce + domain.NonceSize
	offChallenge = offTag + domain.TagSize
	offTimestamp = offChallenge + domain.ChallengeSize
	offSignature = offTimestamp + 4

	// signedLen is the prefix covered by the offer signature.
	signedLen = offSignature
)

// TruncateName cuts name to at most IssuerNameSize bytes without splitting
// a UTF-8 sequence.
func TruncateName(name string) string {
	if len(name) <= IssuerNameSize {
		return name
	}
	cut := IssuerNameSize
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}

// EncodeOffer writes o in the current layout. A zero Version is taken as
// the current one; the issuer name is truncated on a rune boundary.
func EncodeOffer(o domain.Offer) ([]byte, error) {
	buf, err := encodeOffer(o)
	if err != nil {
		return nil, err
	}
	copy(buf[offSignature:], o.Signature[:])
	return buf, nil
}

// OfferSigningBytes returns the bytes an offer signature covers: the whole
// encoding except the signature itself.
func OfferSigningBytes(o domain.Offer) ([]byte, error) {
	buf, err := encodeOffer(o)
	if err != nil {
		return nil, err
	}
	return buf[:signedLen], nil
}

func encodeOffer(o domain.Offer) ([]byte, error) {
	switch {
	case o.Version == 0 || o.Version == OfferVersion:
	case o.Version < OfferVersion:
		return nil, errors.ErrObsoleteFormat.Newf("offer version %d", o.Version)
	default:
		return nil, errors.ErrUnsupportedVersion.Newf("offer version %d", o.Version)
	}
	name := TruncateName(o.IssuerName)
	if strings.IndexByte(name, 0) >= 0 {
		return nil, errors.ErrInvalidInput.New("issuer name contains NUL")
	}
	if !utf8.ValidString(name) {
		return nil, errors.ErrInvalidInput.New("issuer name is not UTF-8")
	}

	buf := make([]byte, OfferSize)
	buf[offVersion] = OfferVersion
	copy(buf[offVoucherID:], o.VoucherID[:])
	binary.BigEndian.PutUint32(buf[offValue:], uint32(o.Value))
	copy(buf[offIssuerPub:], o.IssuerPublicKey[:])
	copy(buf[offIssuer:offCipher], name)
	copy(buf[offCipher:], o.Sealed.Ciphertext[:])
	copy(buf[offNonce:], o.Sealed.Nonce[:])
	copy(buf[offTag:], o.Sealed.Tag[:])
	copy(buf[offChallenge:], o.Challenge[:])
	binary.BigEndian.PutUint32(buf[offTimestamp:], o.Timestamp)
	return buf, nil
}

// DecodeOffer parses a current-version offer. It never returns a partially
// populated value: on error the Offer is zero.
//
//   - ErrInvalidLength: the length matches no known layout
//   - ErrObsoleteFormat: an older version tag, in any known length
//   - ErrUnsupportedVersion: a version tag newer than OfferVersion
//   - ErrInvalidInput: a malformed issuer name
func DecodeOffer(b []byte) (domain.Offer, error) {
	if len(b) == 0 {
		return domain.Offer{}, errors.ErrInvalidLength.New("empty offer")
	}
	version := b[offVersion]
	switch {
	case version > OfferVersion:
		return domain.Offer{}, errors.ErrUnsupportedVersion.Newf("offer version %d", version)
	case len(b) == LegacyOfferSize && version == LegacyOfferVersion:
		return domain.Offer{}, errors.ErrObsoleteFormat.New("legacy offer lacks authenticated value and issuer")
	case len(b) != OfferSize:
		return domain.Offer{}, errors.ErrInvalidLength.Newf("offer of %d bytes", len(b))
	case version < OfferVersion:
		return domain.Offer{}, errors.ErrObsoleteFormat.Newf("offer version %d", version)
	}

	rawName := b[offIssuer:offCipher]
	if i := indexNUL(rawName); i >= 0 {
		for _, c := range rawName[i:] {
			if c != 0 {
				return domain.Offer{}, errors.ErrInvalidInput.New("issuer name padding is not NUL")
			}
		}
		rawName = rawName[:i]
	}
	if !utf8.Valid(rawName) {
		return domain.Offer{}, errors.ErrInvalidInput.New("issuer name is not UTF-8")
	}

	var o domain.Offer
	o.Version = version
	copy(o.VoucherID[:], b[offVoucherID:offValue])
	o.Value = domain.Amount(binary.BigEndian.Uint32(b[offValue:offIssuerPub]))
	copy(o.IssuerPublicKey[:], b[offIssuerPub:offIssuer])
	o.IssuerName = string(rawName)
	copy(o.Sealed.Ciphertext[:], b[offCipher:offNonce])
	copy(o.Sealed.Nonce[:], b[offNonce:offTag])
	copy(o.Sealed.Tag[:], b[offTag:offChallenge])
	copy(o.Challenge[:], b[offChallenge:offTimestamp])
	o.Timestamp = binary.BigEndian.Uint32(b[offTimestamp:offSignature])
	copy(o.Signature[:], b[offSignature:OfferSize])
	return o, nil
}

func indexNUL(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}
