package scheduler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	t.Parallel()
	base := errors.New("boom")

	tests := []struct {
		name string
		err  error
		is   func(error) bool
	}{
		{"validation", &ValidationError{Field: "fire_at", Err: ErrNotFuture}, IsValidation},
		{"storage", &StorageError{Op: "add_reminder", Err: base}, IsStorage},
		{"delivery", &DeliveryError{JobID: "j", ExternalID: 1, Err: base}, IsDelivery},
		{"restore row", &RestoreRowError{JobID: "j", Err: base}, IsRestoreRow},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			wrapped := fmt.Errorf("outer: %w", tc.err)
			require.True(t, tc.is(wrapped))
			require.False(t, tc.is(base))
		})
	}
	require.ErrorIs(t, &StorageError{Op: "x", Err: base}, base)
	require.Equal(t, "invalid fire_at: fire moment is not in the future", (&ValidationError{Field: "fire_at", Err: ErrNotFuture}).Error())
}
