package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"stop placement", fmt.Errorf("open: %w", ErrInvalidStopPlacement), KindValidation},
		{"already open", fmt.Errorf("open BTC-USD: %w", ErrPositionAlreadyOpen), KindStateConflict},
		{"loosen", ErrStopWouldLoosen, KindStateConflict},
		{"history", fmt.Errorf("rsi: %w", ErrInsufficientHistory), KindInsufficientHistory},
		{"persistence", Persistence("append", errors.New("disk full")), KindPersistence},
		{"plain", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestSpecificSentinelsMatchKind(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("adjust: %w: 100 < 101", ErrStopWouldLoosen)
	assert.ErrorIs(t, err, ErrStopWouldLoosen)
	assert.ErrorIs(t, err, ErrStateConflict)
	assert.NotErrorIs(t, err, ErrValidation)
}

func TestPersistenceKeepsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("database is locked")
	err := Persistence("append event", cause)

	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, cause)
	assert.True(t, Retryable(err))
	assert.Contains(t, err.Error(), "database is locked")
	assert.Nil(t, Persistence("noop", nil))
}

func TestRetryableOnlyForPersistence(t *testing.T) {
	t.Parallel()

	assert.False(t, Retryable(ErrInvalidSize))
	assert.False(t, Retryable(ErrNoOpenPosition))
	assert.False(t, Retryable(nil))
}
