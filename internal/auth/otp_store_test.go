package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_InMemoryOTPStore_IssueAndConsume(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryOTPStore(time.Minute)

	code, err := store.Issue(ctx, "teller@nordbank.example")
	require.NoError(t, err)
	require.Len(t, code, defaultOTPLength)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9')
	}

	t.Run("wrong code is rejected without consuming", func(t *testing.T) {
		ok, consumeErr := store.Consume(ctx, "teller@nordbank.example", "000000x")
		require.NoError(t, consumeErr)
		assert.False(t, ok)

		ok, consumeErr = store.Consume(ctx, "teller@nordbank.example", code)
		require.NoError(t, consumeErr)
		assert.True(t, ok)
	})

	t.Run("a code can be consumed only once", func(t *testing.T) {
		ok, consumeErr := store.Consume(ctx, "teller@nordbank.example", code)
		require.NoError(t, consumeErr)
		assert.False(t, ok)
	})

	t.Run("unknown email has no code", func(t *testing.T) {
		ok, consumeErr := store.Consume(ctx, "nobody@nordbank.example", "123456")
		require.NoError(t, consumeErr)
		assert.False(t, ok)
	})
}

func Test_InMemoryOTPStore_reissueReplacesCode(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryOTPStore(time.Minute)

	first, err := store.Issue(ctx, "ops@nordbank.example")
	require.NoError(t, err)
	second, err := store.Issue(ctx, "ops@nordbank.example")
	require.NoError(t, err)

	if first != second {
		ok, consumeErr := store.Consume(ctx, "ops@nordbank.example", first)
		require.NoError(t, consumeErr)
		assert.False(t, ok, "replaced code must not be consumable")
	}

	ok, err := store.Consume(ctx, "ops@nordbank.example", second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func Test_InMemoryOTPStore_expiry(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryOTPStore(20 * time.Millisecond)

	code, err := store.Issue(ctx, "teller@nordbank.example")
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	ok, err := store.Consume(ctx, "teller@nordbank.example", code)
	require.NoError(t, err)
	assert.False(t, ok)
}
