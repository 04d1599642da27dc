package publog

import (
	"bons/internal/crypto"
	"bons/internal/domain"
	"bons/internal/errors"
)

// recordDomain separates witness record signatures from any other use of
// the issuer key.
const recordDomain = "bons/witness/v2"

// SigningBytes is what the issuer signs: a domain tag followed by the CBOR
// encoding of rec without its signature.
func SigningBytes(rec domain.WitnessRecord) ([]byte, error) {
	rec.IssuerSignature = nil
	enc, err := MarshalRecord(rec)
	if err != nil {
		return nil, err
	}
	return append([]byte(recordDomain), enc...), nil
}

// SignRecord fills rec.IssuerSignature using the issuer identity.
func SignRecord(rec domain.WitnessRecord, issuer domain.Identity) (domain.WitnessRecord, error) {
	if rec.IssuerPublicKey != issuer.EdPub {
		return rec, errors.ErrInvalidInput.New("record names another issuer")
	}
	msg, err := SigningBytes(rec)
	if err != nil {
		return rec, err
	}
	rec.IssuerSignature = crypto.SignEd25519(issuer.EdPriv, msg)
	return rec, nil
}

// VerifyRecord checks the issuer signature on rec.
func VerifyRecord(rec domain.WitnessRecord) error {
	msg, err := SigningBytes(rec)
	if err != nil {
		return err
	}
	if !crypto.VerifyEd25519(rec.IssuerPublicKey, msg, rec.IssuerSignature) {
		return errors.ErrInvalidSignature.New("witness record issuer signature")
	}
	return nil
}
