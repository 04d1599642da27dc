package app_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bons/internal/app"
	"bons/internal/domain"
	"bons/internal/publog"
	"bons/internal/services/transfer"
)

const pass = "Correct-Horse-9-Battery"

func open(t *testing.T, backend string, pub domain.PublicLog) *app.App {
	t.Helper()
	cfg := app.DefaultConfig(t.TempDir())
	cfg.Store = backend
	cfg.Passphrase = pass
	a, err := app.Open(cfg, zerolog.Nop(), pub)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestOpenBackendsAndTransfer(t *testing.T) {
	ctx := context.Background()
	pub := publog.NewMemory()

	issuer := open(t, app.StoreLevelDB, pub)
	holder := open(t, app.StoreFile, pub)

	_, _, err := issuer.Identity.GenerateIdentity(pass, "Corner Bakery")
	require.NoError(t, err)
	v, err := issuer.Issuance.Issue(ctx, pass, 500, 0)
	require.NoError(t, err)

	_, taken, err := transfer.RunLoopback(ctx, issuer.Transfer, holder.Transfer, v.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(500), taken.Value)

	held, ok, err := holder.Ledger.Get(v.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.StatusActive, held.Status)
}

func TestOpenWithoutPublicLogURL(t *testing.T) {
	cfg := app.DefaultConfig(t.TempDir())
	cfg.Store = app.StoreMemory
	cfg.PublicLogURL = ""
	a, err := app.Open(cfg, zerolog.Nop(), nil)
	require.NoError(t, err)
	defer a.Close()
	_, ok := a.PublicLog.(*publog.Memory)
	assert.True(t, ok)
}

func TestOpenUnknownStore(t *testing.T) {
	cfg := app.DefaultConfig(t.TempDir())
	cfg.Store = "tape"
	_, err := app.Open(cfg, zerolog.Nop(), nil)
	assert.Error(t, err)
}
