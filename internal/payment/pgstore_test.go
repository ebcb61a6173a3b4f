package payment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOrderKeyNormalisesUUID(t *testing.T) {
	key, err := orderKey("3F2504E0-4F89-11D3-9A0C-0305E82C3301")
	require.NoError(t, err)
	require.Equal(t, "3f2504e0-4f89-11d3-9a0c-0305e82c3301", key)

	_, err = orderKey("order_ABC1234567")
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestPGStoreRejectsMalformedIDWithoutQuerying(t *testing.T) {
	// A nil pool panics if any of these reach the database.
	store := &PGStore{}
	ctx := context.Background()

	_, err := store.GetByID(ctx, "not-a-uuid")
	require.ErrorIs(t, err, ErrOrderNotFound)

	_, err = store.MarkPaid(ctx, "1 OR 1=1", "pay_abc123", time.Now())
	require.ErrorIs(t, err, ErrOrderNotFound)

	_, err = store.MarkFailed(ctx, "", "pay_abc123")
	require.ErrorIs(t, err, ErrOrderNotFound)
}
