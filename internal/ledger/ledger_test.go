package ledger_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bons/internal/domain"
	"bons/internal/errors"
	"bons/internal/ledger"
	"bons/internal/store"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: time.Unix(1_700_000_000, 0)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func held(id byte, clk *clock) domain.Voucher {
	traveler := domain.Share{id, 0xaa}
	witness := domain.Share{id, 0xbb}
	return domain.Voucher{
		ID:            domain.VoucherID{id},
		Value:         500,
		IssuerName:    "Bakery",
		CreatedAt:     clk.Now(),
		ExpiresAt:     clk.Now().Add(24 * time.Hour),
		Status:        domain.StatusActive,
		TravelerShare: &traveler,
		WitnessShare:  &witness,
	}
}

func setup(t *testing.T) (*ledger.Ledger, *store.MemKV, *clock) {
	t.Helper()
	kv := store.NewMemKV()
	clk := newClock()
	return ledger.New(kv, clk.Now), kv, clk
}

func TestLock_DonorHappyCommit(t *testing.T) {
	l, _, clk := setup(t)
	v := held(1, clk)
	require.NoError(t, l.Put(v))

	ch := domain.Challenge{1, 2, 3}
	locked, err := l.Lock(v.ID, ch, 150*time.Second, domain.RoleDonor, nil)
	require.NoError(t, err)
	assert.Equal(t, *v.TravelerShare, *locked.Voucher.TravelerShare)
	assert.Equal(t, domain.LockHeld, locked.Lock.State)

	got, _, err := l.Get(v.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLocked, got.Status)

	ok, err := l.CommitReceive(v.ID, ch)
	require.NoError(t, err)
	require.True(t, ok)

	got, found, err := l.Get(v.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.StatusSpent, got.Status)
	assert.Nil(t, got.TravelerShare)
	assert.Equal(t, uint32(1), got.TransferCount)

	_, present, err := l.GetLock(v.ID)
	require.NoError(t, err)
	assert.False(t, present)
}

func TestLock_ReceiverCommit(t *testing.T) {
	l, _, clk := setup(t)
	in := held(2, clk)
	ch := domain.Challenge{9}

	_, err := l.Lock(in.ID, ch, time.Minute, domain.RoleReceiver, &in)
	require.NoError(t, err)

	_, found, err := l.Get(in.ID)
	require.NoError(t, err)
	assert.False(t, found, "receiver voucher must not exist before commit")

	ok, err := l.CommitReceive(in.ID, ch)
	require.NoError(t, err)
	require.True(t, ok)

	got, found, err := l.Get(in.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.StatusActive, got.Status)
	require.NotNil(t, got.TravelerShare)
	assert.Equal(t, *in.TravelerShare, *got.TravelerShare)
	assert.Equal(t, uint32(1), got.TransferCount)
}

func TestLock_ReceiverRejectsAlreadyHeld(t *testing.T) {
	l, _, clk := setup(t)
	v := held(3, clk)
	require.NoError(t, l.Put(v))

	_, err := l.Lock(v.ID, domain.Challenge{}, time.Minute, domain.RoleReceiver, &v)
	assert.True(t, errors.ErrInvalidState.Is(err), "got %v", err)

	_, err = l.Lock(v.ID, domain.Challenge{}, time.Minute, domain.RoleReceiver, nil)
	assert.True(t, errors.ErrInvalidInput.Is(err), "got %v", err)
}

func TestLock_DonorPreconditions(t *testing.T) {
	l, _, clk := setup(t)

	_, err := l.Lock(domain.VoucherID{4}, domain.Challenge{}, time.Minute, domain.RoleDonor, nil)
	assert.True(t, errors.ErrNotFound.Is(err), "got %v", err)

	spent := held(5, clk)
	spent.Status = domain.StatusSpent
	spent.TravelerShare = nil
	require.NoError(t, l.Put(spent))
	_, err = l.Lock(spent.ID, domain.Challenge{}, time.Minute, domain.RoleDonor, nil)
	assert.True(t, errors.ErrInvalidState.Is(err), "got %v", err)

	old := held(6, clk)
	old.ExpiresAt = clk.Now().Add(-time.Second)
	require.NoError(t, l.Put(old))
	_, err = l.Lock(old.ID, domain.Challenge{}, time.Minute, domain.RoleDonor, nil)
	assert.True(t, errors.ErrExpired.Is(err), "got %v", err)

	_, err = l.Lock(old.ID, domain.Challenge{}, 0, domain.RoleDonor, nil)
	assert.True(t, errors.ErrInvalidInput.Is(err), "got %v", err)
}

func TestLock_ConcurrentExclusivity(t *testing.T) {
	l, _, clk := setup(t)
	v := held(7, clk)
	require.NoError(t, l.Put(v))

	const racers = 16
	var wins, locked int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := l.Lock(v.ID, domain.Challenge{byte(i)}, time.Minute, domain.RoleDonor, nil)
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.ErrAlreadyLocked.Is(err):
				atomic.AddInt32(&locked, 1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(racers-1), locked)
}

func TestCommit_MismatchLeavesStateUnchanged(t *testing.T) {
	l, kv, clk := setup(t)
	v := held(8, clk)
	require.NoError(t, l.Put(v))
	_, err := l.Lock(v.ID, domain.Challenge{1}, time.Minute, domain.RoleDonor, nil)
	require.NoError(t, err)

	before, err := kv.Snapshot()
	require.NoError(t, err)

	ok, err := l.CommitReceive(v.ID, domain.Challenge{2})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.CommitReceive(domain.VoucherID{99}, domain.Challenge{1})
	require.NoError(t, err)
	assert.False(t, ok)

	after, err := kv.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCommit_ExpiredLockRefused(t *testing.T) {
	l, kv, clk := setup(t)
	v := held(9, clk)
	require.NoError(t, l.Put(v))
	_, err := l.Lock(v.ID, domain.Challenge{1}, time.Minute, domain.RoleDonor, nil)
	require.NoError(t, err)

	clk.Advance(time.Minute)
	before, err := kv.Snapshot()
	require.NoError(t, err)

	ok, err := l.CommitReceive(v.ID, domain.Challenge{1})
	require.NoError(t, err)
	assert.False(t, ok)

	after, err := kv.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLock_ExpiryRestoresUsability(t *testing.T) {
	l, _, clk := setup(t)
	v := held(10, clk)
	require.NoError(t, l.Put(v))

	_, err := l.Lock(v.ID, domain.Challenge{1}, 150*time.Second, domain.RoleDonor, nil)
	require.NoError(t, err)

	_, err = l.Lock(v.ID, domain.Challenge{2}, 150*time.Second, domain.RoleDonor, nil)
	assert.True(t, errors.ErrAlreadyLocked.Is(err), "got %v", err)

	clk.Advance(150 * time.Second)
	got, _, err := l.Get(v.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)

	locked, err := l.Lock(v.ID, domain.Challenge{3}, 150*time.Second, domain.RoleDonor, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.Challenge{3}, locked.Lock.Challenge)
}

func TestCancel_Idempotent(t *testing.T) {
	l, _, clk := setup(t)
	v := held(11, clk)
	require.NoError(t, l.Put(v))
	_, err := l.Lock(v.ID, domain.Challenge{1}, time.Minute, domain.RoleDonor, nil)
	require.NoError(t, err)

	require.NoError(t, l.Cancel(v.ID))
	require.NoError(t, l.Cancel(v.ID))

	got, _, err := l.Get(v.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)
	assert.NotNil(t, got.TravelerShare)
}

func TestMarkOffered(t *testing.T) {
	l, _, clk := setup(t)
	v := held(12, clk)
	require.NoError(t, l.Put(v))
	_, err := l.Lock(v.ID, domain.Challenge{1}, time.Minute, domain.RoleDonor, nil)
	require.NoError(t, err)

	assert.True(t, errors.ErrInvalidState.Is(l.MarkOffered(v.ID, domain.Challenge{2}, []byte("x"))))
	require.NoError(t, l.MarkOffered(v.ID, domain.Challenge{1}, []byte("offer")))

	lock, ok, err := l.GetLock(v.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.LockOfferIssued, lock.State)
	assert.Equal(t, []byte("offer"), lock.Offer)
}

func TestRecover_RemovesExpiredLocks(t *testing.T) {
	l, _, clk := setup(t)
	a, b := held(13, clk), held(14, clk)
	require.NoError(t, l.Put(a))
	require.NoError(t, l.Put(b))
	_, err := l.Lock(a.ID, domain.Challenge{1}, time.Second, domain.RoleDonor, nil)
	require.NoError(t, err)
	_, err = l.Lock(b.ID, domain.Challenge{1}, time.Hour, domain.RoleDonor, nil)
	require.NoError(t, err)

	n, err := l.Recover(clk.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, err := l.GetLock(a.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = l.GetLock(b.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSweep_RevokesExpired(t *testing.T) {
	l, _, clk := setup(t)
	v := held(15, clk)
	fresh := held(16, clk)
	fresh.ExpiresAt = clk.Now().Add(72 * time.Hour)
	require.NoError(t, l.Put(v))
	require.NoError(t, l.Put(fresh))

	ids, err := l.Sweep(clk.Now().Add(48 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []domain.VoucherID{v.ID}, ids)

	got, _, err := l.Get(v.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRevoked, got.Status)
	assert.Nil(t, got.TravelerShare)

	got, _, err = l.Get(fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)
}

func TestPut_RejectsLockedStatus(t *testing.T) {
	l, _, clk := setup(t)
	v := held(17, clk)
	v.Status = domain.StatusLocked
	assert.True(t, errors.ErrInvalidInput.Is(l.Put(v)))
}

func TestList_DerivesLockedStatus(t *testing.T) {
	l, _, clk := setup(t)
	a, b := held(18, clk), held(19, clk)
	require.NoError(t, l.Put(a))
	require.NoError(t, l.Put(b))
	_, err := l.Lock(b.ID, domain.Challenge{1}, time.Minute, domain.RoleDonor, nil)
	require.NoError(t, err)

	all, err := l.List()
	require.NoError(t, err)
	require.Len(t, all, 2)
	status := map[domain.VoucherID]domain.Status{}
	for _, v := range all {
		status[v.ID] = v.Status
	}
	assert.Equal(t, domain.StatusActive, status[a.ID])
	assert.Equal(t, domain.StatusLocked, status[b.ID])
}
