package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIs(t *testing.T) {
	cases := map[string]struct {
		kind *Error
		err  error
		want bool
	}{
		"same root": {
			kind: ErrAlreadyLocked,
			err:  ErrAlreadyLocked,
			want: true,
		},
		"wrapped once": {
			kind: ErrInvalidShare,
			err:  ErrInvalidShare.New("shares disagree"),
			want: true,
		},
		"wrapped twice": {
			kind: ErrAuthenticationFailed,
			err:  Wrap(ErrAuthenticationFailed.New("tag"), "open"),
			want: true,
		},
		"different kind": {
			kind: ErrExpired,
			err:  ErrOfferStale.New("old"),
			want: false,
		},
		"stdlib error": {
			kind: ErrNotFound,
			err:  stderrors.New("plain"),
			want: false,
		},
		"nil kind and nil error": {
			kind: nil,
			err:  nil,
			want: true,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.kind.Is(tc.err))
		})
	}
}

func TestStdlibIsCompatible(t *testing.T) {
	err := Wrapf(ErrMissingWitnessShare.New("fetch"), "voucher %s", "ab12")
	assert.True(t, Is(err, ErrMissingWitnessShare))
	assert.True(t, stderrors.Is(err, ErrMissingWitnessShare))
	assert.False(t, stderrors.Is(err, ErrNotFound))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "nothing"))
	assert.Nil(t, Wrapf(nil, "nothing %d", 1))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(ErrExpired.New("lock")))
	assert.True(t, Retryable(Wrap(ErrMissingWitnessShare, "fetch")))
	assert.True(t, Retryable(ErrAlreadyLocked))
	assert.False(t, Retryable(ErrAuthenticationFailed.New("tag")))
	assert.False(t, Retryable(ErrCommitMismatch.New("challenge")))
	assert.False(t, Retryable(ErrInvalidShare))
	assert.False(t, Retryable(nil))
}

func TestStackTraceAttachedOnce(t *testing.T) {
	err := Wrap(Wrap(ErrDatabase, "inner"), "outer")
	require.NotNil(t, stackTrace(err))
	assert.Contains(t, fmt.Sprintf("%+v", err), "errors_test.go")
	assert.Equal(t, "outer: inner: database", err.Error())
}

func TestRegisterDuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register(ErrInvalidShare.Code(), "again")
	})
}

func TestRecover(t *testing.T) {
	fn := func() (err error) {
		defer Recover(&err)
		panic("boom")
	}
	err := fn()
	assert.True(t, ErrPanic.Is(err))
}
