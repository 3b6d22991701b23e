package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPutAndLookup(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	tok := &oauth2.Token{AccessToken: "tok-abc", RefreshToken: "ref-1"}
	require.NoError(t, store.Put(ctx, 100, 7, tok))

	got, err := store.Token(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", got.AccessToken)
	assert.Equal(t, "ref-1", got.RefreshToken)
	assert.Equal(t, "Bearer", got.TokenType)

	customerID, err := store.CustomerID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(7), customerID)

	telegramID, err := store.UserByCustomer(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(100), telegramID)
}

func TestPutReplacesCredential(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, 100, 7, &oauth2.Token{AccessToken: "old"}))
	require.NoError(t, store.Put(ctx, 100, 8, &oauth2.Token{AccessToken: "new"}))

	got, err := store.Token(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "new", got.AccessToken)

	customerID, err := store.CustomerID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(8), customerID)
}

func TestMissingSessionIsErrNoSession(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Token(ctx, 999)
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = store.CustomerID(ctx, 999)
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = store.UserByCustomer(ctx, 999)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestExpiredCredentialIsErrNoSession(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	expired := &oauth2.Token{AccessToken: "tok", Expiry: time.Now().Add(-time.Hour)}
	require.NoError(t, store.Put(ctx, 100, 7, expired))

	_, err := store.Token(ctx, 100)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, 100, 7, &oauth2.Token{AccessToken: "tok"}))
	require.NoError(t, store.Delete(ctx, 100))

	_, err := store.Token(ctx, 100)
	assert.ErrorIs(t, err, ErrNoSession)

	// Deleting a missing row is not an error.
	assert.NoError(t, store.Delete(ctx, 100))
}

func TestTokenSourceSeesRevocation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, 100, 7, &oauth2.Token{AccessToken: "tok"}))
	ts := store.TokenSource(100)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok", tok.AccessToken)

	require.NoError(t, store.Delete(ctx, 100))
	_, err = ts.Token()
	assert.ErrorIs(t, err, ErrNoSession, "revocation must take effect on the next call")
}
