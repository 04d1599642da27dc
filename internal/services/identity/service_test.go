package identity_test

import (
	"testing"

	"bons/internal/errors"
	"bons/internal/services/identity"
	"bons/internal/store"
)

const pass = "Correct-Horse-9-Battery"

func TestGenerateAndLoad(t *testing.T) {
	svc := identity.New(store.NewIdentityFileStore(t.TempDir()))

	id, fp, err := svc.GenerateIdentity(pass, "  Corner Bakery of the Long Street Market  ")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(id.Name) > 27 || id.Name != "Corner Bakery of the Long S" {
		t.Fatalf("name not trimmed to field width: %q", id.Name)
	}

	loaded, err := svc.LoadIdentity(pass)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != id {
		t.Fatalf("loaded identity differs")
	}

	got, err := svc.FingerprintIdentity(pass)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if got != fp || len(got) != 20 {
		t.Fatalf("fingerprint = %q, want %q", got, fp)
	}
}

func TestWeakPassphrase(t *testing.T) {
	svc := identity.New(store.NewIdentityFileStore(t.TempDir()))
	for _, p := range []string{"short", "alllowercase-123", "NoDigitsHere!!", "NoSymbols12345"} {
		if _, _, err := svc.GenerateIdentity(p, "Issuer"); !errors.ErrInvalidInput.Is(err) {
			t.Fatalf("%q: want invalid input, got %v", p, err)
		}
	}
}

func TestEmptyName(t *testing.T) {
	svc := identity.New(store.NewIdentityFileStore(t.TempDir()))
	if _, _, err := svc.GenerateIdentity(pass, "   "); !errors.ErrInvalidInput.Is(err) {
		t.Fatalf("want invalid input, got %v", err)
	}
}

func TestWrongPassphrase(t *testing.T) {
	svc := identity.New(store.NewIdentityFileStore(t.TempDir()))
	if _, _, err := svc.GenerateIdentity(pass, "Issuer"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.LoadIdentity(pass + "x"); !errors.ErrAuthenticationFailed.Is(err) {
		t.Fatalf("want authentication failure, got %v", err)
	}
}
