package publog_test

import (
	"context"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bons/internal/crypto"
	"bons/internal/domain"
	"bons/internal/errors"
	"bons/internal/publog"
	"bons/internal/store"
)

func issuer(t *testing.T) domain.Identity {
	t.Helper()
	priv, pub, err := crypto.GenerateEd25519()
	require.NoError(t, err)
	return domain.Identity{Name: "Corner Bakery", EdPub: pub, EdPriv: priv}
}

func signedRecord(t *testing.T, id domain.Identity) domain.WitnessRecord {
	t.Helper()
	var rec domain.WitnessRecord
	_, err := rand.Read(rec.VoucherID[:])
	require.NoError(t, err)
	_, err = rand.Read(rec.Witness[:])
	require.NoError(t, err)
	rec.Value = 500
	rec.IssuerPublicKey = id.EdPub
	rec.IssuerName = id.Name
	rec.CreatedAt = time.Unix(1_700_000_000, 0).Unix()
	rec.ExpiresAt = time.Unix(1_800_000_000, 0).Unix()
	rec, err = publog.SignRecord(rec, id)
	require.NoError(t, err)
	return rec
}

func TestRecordCodecDeterministic(t *testing.T) {
	rec := signedRecord(t, issuer(t))
	a, err := publog.MarshalRecord(rec)
	require.NoError(t, err)
	b, err := publog.MarshalRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	got, err := publog.UnmarshalRecord(a)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	require.NoError(t, publog.VerifyRecord(got))

	_, err = publog.UnmarshalRecord(a[:len(a)-3])
	assert.True(t, errors.ErrInvalidInput.Is(err))
}

func TestVerifyRecordRejectsTampering(t *testing.T) {
	id := issuer(t)
	rec := signedRecord(t, id)

	tampered := rec
	tampered.Value = 50000
	assert.True(t, errors.ErrInvalidSignature.Is(publog.VerifyRecord(tampered)))

	tampered = rec
	tampered.Witness[0] ^= 1
	assert.True(t, errors.ErrInvalidSignature.Is(publog.VerifyRecord(tampered)))

	other := issuer(t)
	_, err := publog.SignRecord(rec, other)
	assert.True(t, errors.ErrInvalidInput.Is(err))
}

func TestMemoryAppendOnly(t *testing.T) {
	ctx := context.Background()
	id := issuer(t)
	mem := publog.NewMemory()
	rec := signedRecord(t, id)

	_, err := mem.Fetch(ctx, rec.VoucherID)
	assert.True(t, errors.ErrNotFound.Is(err))

	require.NoError(t, mem.Publish(ctx, rec))
	require.NoError(t, mem.Publish(ctx, rec), "identical republish is accepted")

	changed := rec
	changed.ExpiresAt++
	changed, err = publog.SignRecord(changed, id)
	require.NoError(t, err)
	assert.True(t, errors.ErrDuplicate.Is(mem.Publish(ctx, changed)))

	got, err := mem.Fetch(ctx, rec.VoucherID)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	assert.Equal(t, 1, mem.Len())

	unsigned := signedRecord(t, id)
	unsigned.IssuerSignature = nil
	assert.True(t, errors.ErrInvalidSignature.Is(mem.Publish(ctx, unsigned)))
}

func TestMemoryEvents(t *testing.T) {
	ctx := context.Background()
	mem := publog.NewMemory()
	rec := signedRecord(t, issuer(t))

	evs, err := mem.Events(ctx, rec.VoucherID)
	require.NoError(t, err)
	assert.Empty(t, evs)

	at := time.Unix(1_700_000_100, 0).UTC()
	e1 := domain.AuditEvent{ID: "e1", VoucherID: rec.VoucherID, Kind: domain.EventIssued, At: at}
	e2 := domain.AuditEvent{ID: "e2", VoucherID: rec.VoucherID, Kind: domain.EventTransferred, TransferCount: 1, At: at}
	require.NoError(t, mem.Append(ctx, e1))
	require.NoError(t, mem.Append(ctx, e2))
	require.NoError(t, mem.Append(ctx, e1))

	evs, err = mem.Events(ctx, rec.VoucherID)
	require.NoError(t, err)
	assert.Equal(t, []domain.AuditEvent{e1, e2}, evs)

	// Events alone do not count as a published record.
	assert.Equal(t, 0, mem.Len())

	assert.True(t, errors.ErrInvalidInput.Is(mem.Append(ctx, domain.AuditEvent{VoucherID: rec.VoucherID})))
}

func TestMemoryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := publog.NewMemory().Fetch(ctx, domain.VoucherID{1})
	assert.True(t, errors.ErrCancelled.Is(err))
}

func TestMemorySurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	id := issuer(t)
	rec := signedRecord(t, id)

	kv, err := store.OpenLevelKV(dir)
	require.NoError(t, err)
	mem, err := publog.OpenMemory(kv)
	require.NoError(t, err)

	at := time.Unix(1_700_000_100, 0).UTC()
	e1 := domain.AuditEvent{ID: "e1", VoucherID: rec.VoucherID, Kind: domain.EventIssued, At: at}
	e2 := domain.AuditEvent{ID: "e2", VoucherID: rec.VoucherID, Kind: domain.EventTransferred, TransferCount: 1, At: at}
	require.NoError(t, mem.Publish(ctx, rec))
	require.NoError(t, mem.Append(ctx, e1))
	require.NoError(t, mem.Append(ctx, e2))
	require.NoError(t, kv.Close())

	kv, err = store.OpenLevelKV(dir)
	require.NoError(t, err)
	defer kv.Close()
	mem, err = publog.OpenMemory(kv)
	require.NoError(t, err)

	got, err := mem.Fetch(ctx, rec.VoucherID)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	assert.Equal(t, 1, mem.Len())

	evs, err := mem.Events(ctx, rec.VoucherID)
	require.NoError(t, err)
	assert.Equal(t, []domain.AuditEvent{e1, e2}, evs)

	// Append-only still holds against what was loaded.
	changed := rec
	changed.Value++
	changed, err = publog.SignRecord(changed, id)
	require.NoError(t, err)
	assert.True(t, errors.ErrDuplicate.Is(mem.Publish(ctx, changed)))
	require.NoError(t, mem.Append(ctx, e1))
	evs, err = mem.Events(ctx, rec.VoucherID)
	require.NoError(t, err)
	assert.Len(t, evs, 2)
}

func newServer(t *testing.T) (*publog.HTTP, *publog.Memory) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mem := publog.NewMemory()
	srv := httptest.NewServer(publog.NewServer(mem, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return publog.NewHTTP(srv.URL+"/", srv.Client()), mem
}

func TestHTTPRoundTrip(t *testing.T) {
	ctx := context.Background()
	client, mem := newServer(t)
	id := issuer(t)
	rec := signedRecord(t, id)

	_, err := client.Fetch(ctx, rec.VoucherID)
	assert.True(t, errors.ErrNotFound.Is(err), "got %v", err)

	require.NoError(t, client.Publish(ctx, rec))
	require.NoError(t, client.Publish(ctx, rec))
	assert.Equal(t, 1, mem.Len())

	got, err := client.Fetch(ctx, rec.VoucherID)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	changed := rec
	changed.Value = 1
	changed, err = publog.SignRecord(changed, id)
	require.NoError(t, err)
	assert.True(t, errors.ErrDuplicate.Is(client.Publish(ctx, changed)))

	forged := signedRecord(t, id)
	forged.Value++
	assert.True(t, errors.ErrInvalidSignature.Is(client.Publish(ctx, forged)))
}

func TestHTTPEvents(t *testing.T) {
	ctx := context.Background()
	client, _ := newServer(t)
	vid := domain.VoucherID{7}

	evs, err := client.Events(ctx, vid)
	require.NoError(t, err)
	assert.Empty(t, evs)

	ev := domain.AuditEvent{
		ID:        "4f1c",
		VoucherID: vid,
		Kind:      domain.EventRedeemed,
		At:        time.Unix(1_700_000_000, 0).UTC(),
	}
	require.NoError(t, client.Append(ctx, ev))

	evs, err = client.Events(ctx, vid)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, ev.ID, evs[0].ID)
	assert.Equal(t, ev.Kind, evs[0].Kind)
	assert.True(t, ev.At.Equal(evs[0].At))
}

func TestHTTPUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := publog.NewHTTP(url, nil)
	_, err := client.Fetch(context.Background(), domain.VoucherID{1})
	assert.True(t, errors.ErrTransportUnavailable.Is(err), "got %v", err)
	assert.True(t, errors.Retryable(err))
}

func TestHTTPBadVoucherPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := publog.NewServer(publog.NewMemory(), zerolog.Nop())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/witness/zz", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
