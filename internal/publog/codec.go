package publog

import (
	"github.com/fxamacker/cbor/v2"

	"bons/internal/domain"
	"bons/internal/errors"
)

// ContentType is the media type of an encoded witness record.
const ContentType = "application/cbor"

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	// Core Deterministic Encoding: the same record always has the same bytes,
	// which the issuer signature and append-only comparison rely on.
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxArrayElements: 64,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// MarshalRecord encodes rec as a deterministic CBOR array.
func MarshalRecord(rec domain.WitnessRecord) ([]byte, error) {
	b, err := encMode.Marshal(rec)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, err.Error())
	}
	return b, nil
}

// UnmarshalRecord decodes a CBOR witness record.
func UnmarshalRecord(b []byte) (domain.WitnessRecord, error) {
	var rec domain.WitnessRecord
	if err := decMode.Unmarshal(b, &rec); err != nil {
		return domain.WitnessRecord{}, errors.Wrap(errors.ErrInvalidInput, "witness record: "+err.Error())
	}
	return rec, nil
}
