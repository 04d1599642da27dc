package crypto_test

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"testing"

	"bons/internal/crypto"
)

func TestWithVoucherKey_ZeroesScalarOnSuccess(t *testing.T) {
	scalar := bytes.Repeat([]byte{7}, 32)
	want, err := crypto.VoucherPublicKey(scalar)
	if err != nil {
		t.Fatalf("public key: %v", err)
	}

	var sig []byte
	err = crypto.WithVoucherKey(scalar, func(key ed25519.PrivateKey) error {
		sig = ed25519.Sign(key, []byte("msg"))
		return nil
	})
	if err != nil {
		t.Fatalf("with key: %v", err)
	}
	if !bytes.Equal(scalar, make([]byte, 32)) {
		t.Fatal("scalar not zeroed")
	}
	if !crypto.VerifyVoucher(want, []byte("msg"), sig) {
		t.Fatal("signature does not verify against voucher id")
	}
}

func TestWithVoucherKey_ZeroesOnErrorAndPanic(t *testing.T) {
	scalar := bytes.Repeat([]byte{9}, 32)
	var seen ed25519.PrivateKey
	boom := errors.New("boom")
	err := crypto.WithVoucherKey(scalar, func(key ed25519.PrivateKey) error {
		seen = key
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	if !bytes.Equal(scalar, make([]byte, 32)) {
		t.Fatal("scalar not zeroed on error")
	}
	if !bytes.Equal(seen, make([]byte, len(seen))) {
		t.Fatal("expanded key not zeroed on error")
	}

	scalar = bytes.Repeat([]byte{3}, 32)
	func() {
		defer func() { _ = recover() }()
		_ = crypto.WithVoucherKey(scalar, func(key ed25519.PrivateKey) error {
			panic("fail")
		})
	}()
	if !bytes.Equal(scalar, make([]byte, 32)) {
		t.Fatal("scalar not zeroed on panic")
	}
}

func TestWithVoucherKey_RejectsShortScalar(t *testing.T) {
	called := false
	err := crypto.WithVoucherKey(make([]byte, 31), func(ed25519.PrivateKey) error {
		called = true
		return nil
	})
	if err == nil || called {
		t.Fatal("expected rejection of short scalar")
	}
}

func TestEd25519_SignVerify(t *testing.T) {
	priv, pub, err := crypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	sig := crypto.SignEd25519(priv, []byte("record"))
	if !crypto.VerifyEd25519(pub, []byte("record"), sig) {
		t.Fatal("valid signature rejected")
	}
	if crypto.VerifyEd25519(pub, []byte("other"), sig) {
		t.Fatal("signature over other message accepted")
	}
	if crypto.VerifyEd25519(pub, []byte("record"), sig[:10]) {
		t.Fatal("short signature accepted")
	}
}

func TestFingerprint_Length(t *testing.T) {
	if got := crypto.Fingerprint([]byte("k")).String(); len(got) != 20 {
		t.Fatalf("fingerprint length %d", len(got))
	}
}
