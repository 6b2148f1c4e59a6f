package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	c, err := New(key, "test", zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := newTestCipher(t)

	cases := []string{
		"hello",
		"a longer draft body with spaces and punctuation!",
		"unicode content: héllo wörld ✓",
		`{"nested":"json","n":42}`,
	}

	for _, plaintext := range cases {
		ciphertext, err := c.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, ciphertext)
		assert.Equal(t, plaintext, c.Decrypt(ciphertext))
	}
}

func TestEmptyInputPassesThrough(t *testing.T) {
	c := newTestCipher(t)

	ciphertext, err := c.Encrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", ciphertext)

	assert.Equal(t, "", c.Decrypt(""))
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	c := newTestCipher(t)

	first, err := c.Encrypt("same input")
	require.NoError(t, err)
	second, err := c.Encrypt("same input")
	require.NoError(t, err)

	// Random nonce per call
	assert.NotEqual(t, first, second)
}

func TestDecryptWrongKeyReturnsSentinel(t *testing.T) {
	first := newTestCipher(t)
	second := newTestCipher(t)

	ciphertext, err := first.Encrypt("secret")
	require.NoError(t, err)

	assert.Equal(t, Sentinel, second.Decrypt(ciphertext))
}

func TestDecryptMalformedInputReturnsSentinel(t *testing.T) {
	c := newTestCipher(t)

	t.Run("not base64", func(t *testing.T) {
		assert.Equal(t, Sentinel, c.Decrypt("!!! not base64 !!!"))
	})

	t.Run("too short for nonce", func(t *testing.T) {
		assert.Equal(t, Sentinel, c.Decrypt("YWJj"))
	})

	t.Run("valid base64 garbage", func(t *testing.T) {
		assert.Equal(t, Sentinel, c.Decrypt("YWJjZGVmZ2hpamtsbW5vcHFyc3R1dnd4eXoxMjM0NTY="))
	})
}

func TestMissingKeyFatalInProduction(t *testing.T) {
	_, err := New("", "production", zap.NewNop())
	assert.ErrorIs(t, err, ErrKeyRequired)
}

func TestMissingKeyToleratedOutsideProduction(t *testing.T) {
	c, err := New("", "development", zap.NewNop())
	require.NoError(t, err)

	ciphertext, err := c.Encrypt("hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", c.Decrypt(ciphertext))
}

func TestInvalidKeyMaterial(t *testing.T) {
	t.Run("not base64", func(t *testing.T) {
		_, err := New("not-valid-base64!!!", "production", zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("wrong length", func(t *testing.T) {
		_, err := New("c2hvcnQ=", "production", zap.NewNop())
		assert.Error(t, err)
	})
}
