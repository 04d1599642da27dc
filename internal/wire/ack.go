package wire

import (
	"bons/internal/domain"
	"bons/internal/errors"
)

// AckSize is the encoded length of an acknowledgement.
const AckSize = 32 + domain.SignatureSize + 1

// ackDomain separates acknowledgement signatures from offer signatures made
// with the same voucher key.
const ackDomain = "bons/ack/v2"

// EncodeAck writes a in its fixed layout.
func EncodeAck(a domain.Ack) ([]byte, error) {
	if a.Status != domain.AckReceived {
		return nil, errors.ErrInvalidInput.Newf("ack status 0x%02x", uint8(a.Status))
	}
	buf := make([]byte, AckSize)
	copy(buf[0:32], a.VoucherID[:])
	copy(buf[32:32+domain.SignatureSize], a.Signature[:])
	buf[AckSize-1] = byte(a.Status)
	return buf, nil
}

// DecodeAck parses an acknowledgement. On error the Ack is zero.
func DecodeAck(b []byte) (domain.Ack, error) {
	if len(b) != AckSize {
		return domain.Ack{}, errors.ErrInvalidLength.Newf("ack of %d bytes", len(b))
	}
	status := domain.AckStatus(b[AckSize-1])
	if status != domain.AckReceived {
		return domain.Ack{}, errors.ErrInvalidInput.Newf("ack status 0x%02x", uint8(status))
	}
	var a domain.Ack
	copy(a.VoucherID[:], b[0:32])
	copy(a.Signature[:], b[32:32+domain.SignatureSize])
	a.Status = status
	return a, nil
}

// AckSigningBytes is the message a receiver signs with the rebuilt voucher
// key: a domain tag, the voucher id and the donor's challenge.
func AckSigningBytes(id domain.VoucherID, challenge domain.Challenge) []byte {
	msg := make([]byte, 0, len(ackDomain)+len(id)+len(challenge))
	msg = append(msg, ackDomain...)
	msg = append(msg, id[:]...)
	msg = append(msg, challenge[:]...)
	return msg
}
