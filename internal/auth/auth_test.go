package auth

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerifier(t *testing.T) (*Verifier, *RevocationStore) {
	t.Helper()
	store, err := NewRevocationStore(filepath.Join(t.TempDir(), "revoked.json"))
	require.NoError(t, err)
	return NewVerifier("test-secret", store), store
}

func TestVerifyValidToken(t *testing.T) {
	v, _ := newTestVerifier(t)
	token := v.Issue(Claims{ID: "u1", Username: "alice", Expiry: time.Now().Add(time.Hour).Unix()})

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.ID)
	assert.Equal(t, "alice", claims.Username)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	v, _ := newTestVerifier(t)
	token := v.Issue(Claims{ID: "u1", Username: "alice", Expiry: time.Now().Add(-time.Minute).Unix()})

	_, err := v.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	v, _ := newTestVerifier(t)
	token := v.Issue(Claims{ID: "u1", Username: "alice", Expiry: time.Now().Add(time.Hour).Unix()})
	tampered := token[:len(token)-2] + "xx"

	_, err := v.Verify(tampered)
	assert.Error(t, err)
}

func TestVerifyRejectsRevokedToken(t *testing.T) {
	v, store := newTestVerifier(t)
	token := v.Issue(Claims{ID: "u1", Username: "alice", Expiry: time.Now().Add(time.Hour).Unix()})

	require.NoError(t, store.Revoke(token, time.Now().Add(time.Hour)))

	_, err := v.Verify(token)
	assert.Error(t, err)
}

func TestRevocationStorePersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "revoked.json")
	store1, err := NewRevocationStore(path)
	require.NoError(t, err)
	require.NoError(t, store1.Revoke("some-token", time.Now().Add(time.Hour)))

	store2, err := NewRevocationStore(path)
	require.NoError(t, err)
	assert.True(t, store2.IsRevoked("some-token"))
}

func TestRevocationStorePrunesExpiredEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "revoked.json")
	store, err := NewRevocationStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Revoke("old-token", time.Now().Add(-time.Hour)))
	assert.False(t, store.IsRevoked("old-token"))

	require.NoError(t, store.Revoke("fresh-token", time.Now().Add(time.Hour)))
	assert.Len(t, store.entries, 1)
}
