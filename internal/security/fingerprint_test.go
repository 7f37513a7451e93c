package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIsDeterministic(t *testing.T) {
	fm := NewFingerprintManager()

	first, err := fm.Generate()
	require.NoError(t, err)
	require.NotEmpty(t, first.Fingerprint)

	// Same call again, including with the cache cleared, must yield the
	// same identifier on the same hardware.
	second, err := fm.Generate()
	require.NoError(t, err)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)

	fm.ClearCache()
	third, err := fm.Generate()
	require.NoError(t, err)
	assert.Equal(t, first.Fingerprint, third.Fingerprint)
}

func TestGenerateAcrossManagers(t *testing.T) {
	// Two independent managers simulate two process runs.
	a, err := NewFingerprintManager().Generate()
	require.NoError(t, err)
	b, err := NewFingerprintManager().Generate()
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint, b.Fingerprint)
}

func TestGenerateFingerprintShape(t *testing.T) {
	fp, err := NewFingerprintManager().Generate()
	require.NoError(t, err)

	// SHA-256 hex
	assert.Len(t, fp.Fingerprint, 64)
	assert.Regexp(t, "^[0-9a-f]+$", fp.Fingerprint)
	assert.NotEmpty(t, fp.OS)
	assert.NotEmpty(t, fp.Platform)
	assert.WithinDuration(t, time.Now(), fp.GeneratedAt, time.Minute)
}

func TestGenerateUsesCache(t *testing.T) {
	fm := NewFingerprintManager()

	first, err := fm.Generate()
	require.NoError(t, err)

	second, err := fm.Generate()
	require.NoError(t, err)

	// Cached copy keeps the original generation time.
	assert.Equal(t, first.GeneratedAt, second.GeneratedAt)

	fm.ClearCache()
	third, err := fm.Generate()
	require.NoError(t, err)
	assert.True(t, third.GeneratedAt.After(first.GeneratedAt) || third.GeneratedAt.Equal(first.GeneratedAt))
}

func TestValidate(t *testing.T) {
	fm := NewFingerprintManager()

	fp, err := fm.Generate()
	require.NoError(t, err)

	ok, err := fm.Validate(fp.Fingerprint)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = fm.Validate("0000000000000000000000000000000000000000000000000000000000000000")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestComponents(t *testing.T) {
	components := NewFingerprintManager().Components()

	assert.Contains(t, components, "machine_id")
	assert.Contains(t, components, "hostname")
	assert.Contains(t, components, "cpu_id")
	assert.NotEmpty(t, components["os"])
}
