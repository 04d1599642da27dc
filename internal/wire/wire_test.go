package wire_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bons/internal/domain"
	"bons/internal/errors"
	"bons/internal/wire"
)

func sampleOffer() domain.Offer {
	o := domain.Offer{
		Version:    wire.OfferVersion,
		Value:      500,
		IssuerName: "Café Müller",
		Timestamp:  1_700_000_123,
	}
	fill := func(b []byte, seed byte) {
		for i := range b {
			b[i] = seed + byte(i)
		}
	}
	fill(o.VoucherID[:], 1)
	fill(o.IssuerPublicKey[:], 40)
	fill(o.Sealed.Ciphertext[:], 80)
	fill(o.Sealed.Nonce[:], 120)
	fill(o.Sealed.Tag[:], 140)
	fill(o.Challenge[:], 160)
	fill(o.Signature[:], 180)
	return o
}

func TestOffer_RoundTrip(t *testing.T) {
	o := sampleOffer()
	b, err := wire.EncodeOffer(o)
	require.NoError(t, err)
	require.Len(t, b, wire.OfferSize)

	got, err := wire.DecodeOffer(b)
	require.NoError(t, err)
	assert.Equal(t, o, got)
}

func TestOffer_Layout(t *testing.T) {
	o := sampleOffer()
	b, err := wire.EncodeOffer(o)
	require.NoError(t, err)

	assert.Equal(t, byte(0x02), b[0])
	assert.Equal(t, o.VoucherID[:], b[1:33])
	assert.Equal(t, []byte{0x00, 0x00, 0x01, 0xf4}, b[33:37])
	assert.Equal(t, o.IssuerPublicKey[:], b[37:69])
	assert.Equal(t, []byte(o.IssuerName), bytes.TrimRight(b[69:96], "\x00"))
	assert.Equal(t, o.Sealed.Ciphertext[:], b[96:128])
	assert.Equal(t, o.Sealed.Nonce[:], b[128:140])
	assert.Equal(t, o.Sealed.Tag[:], b[140:156])
	assert.Equal(t, o.Challenge[:], b[156:172])
	assert.Equal(t, []byte{0x65, 0x53, 0xf1, 0x7b}, b[172:176])
	assert.Equal(t, o.Signature[:], b[176:240])

	signed, err := wire.OfferSigningBytes(o)
	require.NoError(t, err)
	assert.Equal(t, b[:176], signed)
}

func TestOffer_SigningBytesIgnoreSignature(t *testing.T) {
	a := sampleOffer()
	b := a
	b.Signature = [64]byte{}
	sa, err := wire.OfferSigningBytes(a)
	require.NoError(t, err)
	sb, err := wire.OfferSigningBytes(b)
	require.NoError(t, err)
	assert.Equal(t, sa, sb)
}

func TestOffer_Truncation(t *testing.T) {
	b, err := wire.EncodeOffer(sampleOffer())
	require.NoError(t, err)

	for n := 0; n < len(b); n++ {
		got, err := wire.DecodeOffer(b[:n])
		require.Error(t, err, "length %d", n)
		assert.Equal(t, domain.Offer{}, got, "length %d", n)
	}

	long := append(append([]byte(nil), b...), 0)
	_, err = wire.DecodeOffer(long)
	assert.True(t, errors.ErrInvalidLength.Is(err), "got %v", err)
}

func TestOffer_VersionChecks(t *testing.T) {
	b, err := wire.EncodeOffer(sampleOffer())
	require.NoError(t, err)

	legacy := make([]byte, wire.LegacyOfferSize)
	legacy[0] = wire.LegacyOfferVersion

	oldTag := append([]byte(nil), b...)
	oldTag[0] = 0x01

	newTag := append([]byte(nil), b...)
	newTag[0] = 0x03

	cases := map[string]struct {
		in   []byte
		kind *errors.Error
	}{
		"legacy layout":          {in: legacy, kind: errors.ErrObsoleteFormat},
		"current length old tag": {in: oldTag, kind: errors.ErrObsoleteFormat},
		"zero tag":               {in: append([]byte{0x00}, b[1:]...), kind: errors.ErrObsoleteFormat},
		"newer tag":              {in: newTag, kind: errors.ErrUnsupportedVersion},
		"legacy length new tag":  {in: append([]byte{0x02}, legacy[1:]...), kind: errors.ErrInvalidLength},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := wire.DecodeOffer(tc.in)
			assert.True(t, tc.kind.Is(err), "got %v", err)
			assert.Equal(t, domain.Offer{}, got)
		})
	}
}

func TestOffer_EncodeRejectsOldVersion(t *testing.T) {
	o := sampleOffer()
	o.Version = wire.LegacyOfferVersion
	_, err := wire.EncodeOffer(o)
	assert.True(t, errors.ErrObsoleteFormat.Is(err), "got %v", err)
}

func TestOffer_NameHandling(t *testing.T) {
	long := "Genossenschaft Bäckerei Sonnenschein"
	cut := wire.TruncateName(long)
	assert.LessOrEqual(t, len(cut), wire.IssuerNameSize)
	assert.True(t, len(cut) > 0)

	// "ä" straddles the boundary at byte 27 when preceded by 26 ASCII bytes.
	straddle := "abcdefghijklmnopqrstuvwxyzä"
	assert.Equal(t, "abcdefghijklmnopqrstuvwxyz", wire.TruncateName(straddle))

	o := sampleOffer()
	o.IssuerName = long
	b, err := wire.EncodeOffer(o)
	require.NoError(t, err)
	got, err := wire.DecodeOffer(b)
	require.NoError(t, err)
	assert.Equal(t, cut, got.IssuerName)

	o.IssuerName = "bad\x00name"
	_, err = wire.EncodeOffer(o)
	assert.True(t, errors.ErrInvalidInput.Is(err), "got %v", err)
}

func TestOffer_RejectsGarbagePadding(t *testing.T) {
	o := sampleOffer()
	o.IssuerName = "ab"
	b, err := wire.EncodeOffer(o)
	require.NoError(t, err)
	b[69+5] = 'x'
	_, err = wire.DecodeOffer(b)
	assert.True(t, errors.ErrInvalidInput.Is(err), "got %v", err)
}

func TestAck_RoundTrip(t *testing.T) {
	a := domain.Ack{Status: domain.AckReceived}
	a.VoucherID[0] = 9
	a.Signature[63] = 7

	b, err := wire.EncodeAck(a)
	require.NoError(t, err)
	require.Len(t, b, 97)
	assert.Equal(t, byte(0x01), b[96])

	got, err := wire.DecodeAck(b)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestAck_Rejects(t *testing.T) {
	a := domain.Ack{Status: domain.AckReceived}
	b, err := wire.EncodeAck(a)
	require.NoError(t, err)

	_, err = wire.DecodeAck(b[:96])
	assert.True(t, errors.ErrInvalidLength.Is(err), "got %v", err)

	bad := append([]byte(nil), b...)
	bad[96] = 0x02
	got, err := wire.DecodeAck(bad)
	assert.True(t, errors.ErrInvalidInput.Is(err), "got %v", err)
	assert.Equal(t, domain.Ack{}, got)

	_, err = wire.EncodeAck(domain.Ack{})
	assert.True(t, errors.ErrInvalidInput.Is(err), "got %v", err)
}

func TestAckSigningBytes(t *testing.T) {
	var id domain.VoucherID
	var ch domain.Challenge
	id[0], ch[0] = 1, 2
	msg := wire.AckSigningBytes(id, ch)
	assert.Equal(t, "bons/ack/v2", string(msg[:11]))
	assert.Len(t, msg, 11+32+16)

	ch2 := ch
	ch2[15] = 1
	assert.NotEqual(t, msg, wire.AckSigningBytes(id, ch2))
}
