package security

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCredentialStore(t *testing.T) *CredentialStore {
	t.Helper()
	return NewCredentialStore(filepath.Join(t.TempDir(), "admin.cred"))
}

func TestCredentialStoreSetAndVerify(t *testing.T) {
	store := newCredentialStore(t)

	require.NoError(t, store.Set("correct horse battery"))
	assert.True(t, store.Exists())

	ok, err := store.Verify("correct horse battery")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Verify("wrong password")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCredentialStoreReplace(t *testing.T) {
	store := newCredentialStore(t)

	require.NoError(t, store.Set("first"))
	require.NoError(t, store.Set("second"))

	ok, err := store.Verify("first")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Verify("second")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCredentialStoreUnconfigured(t *testing.T) {
	store := newCredentialStore(t)

	assert.False(t, store.Exists())
	_, err := store.Verify("anything")
	assert.ErrorIs(t, err, ErrNoCredential)
}
