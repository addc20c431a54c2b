package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testCipher(t *testing.T) *FieldCipher {
	t.Helper()
	key, err := KeyFromHex("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	require.NoError(t, err)
	c, err := NewFieldCipher(key)
	require.NoError(t, err)
	return c
}

func TestFieldCipherRoundTrip(t *testing.T) {
	c := testCipher(t)

	for _, plaintext := range []string{
		"Aigerim",
		"77011234567",
		"",
		"эл. почта: test@example.kz",
		strings.Repeat("long plaintext ", 50),
	} {
		token, err := c.Encrypt(&plaintext)
		require.NoError(t, err)
		require.NotNil(t, token)
		require.Contains(t, *token, ":")

		decrypted, err := c.Decrypt(token)
		require.NoError(t, err)
		require.NotNil(t, decrypted)
		require.Equal(t, plaintext, *decrypted)
	}
}

func TestFieldCipherFreshIVPerCall(t *testing.T) {
	c := testCipher(t)
	plaintext := "same plaintext"

	first, err := c.Encrypt(&plaintext)
	require.NoError(t, err)
	second, err := c.Encrypt(&plaintext)
	require.NoError(t, err)

	require.NotEqual(t, *first, *second, "tokens must differ because the IV is random per call")

	for _, token := range []*string{first, second} {
		decrypted, err := c.Decrypt(token)
		require.NoError(t, err)
		require.Equal(t, plaintext, *decrypted)
	}
}

func TestFieldCipherNilPassthrough(t *testing.T) {
	c := testCipher(t)

	token, err := c.Encrypt(nil)
	require.NoError(t, err)
	require.Nil(t, token)

	plain, err := c.Decrypt(nil)
	require.NoError(t, err)
	require.Nil(t, plain)
}

func TestFieldCipherMalformedTokens(t *testing.T) {
	c := testCipher(t)

	cases := map[string]string{
		"no separator":        "deadbeef",
		"bad iv hex":          "zz:deadbeef",
		"short iv":            "deadbeef:00112233445566778899aabbccddeeff",
		"bad ciphertext hex":  "000102030405060708090a0b0c0d0e0f:nothex",
		"empty ciphertext":    "000102030405060708090a0b0c0d0e0f:",
		"partial block":       "000102030405060708090a0b0c0d0e0f:deadbeef",
	}

	for name, token := range cases {
		token := token
		t.Run(name, func(t *testing.T) {
			_, err := c.Decrypt(&token)
			require.ErrorIs(t, err, ErrMalformedToken)
		})
	}
}

func TestFieldCipherWrongKey(t *testing.T) {
	c := testCipher(t)
	plaintext := "sensitive value that must not survive a key change"
	token, err := c.Encrypt(&plaintext)
	require.NoError(t, err)

	otherKey, err := GenerateKey()
	require.NoError(t, err)
	other, err := NewFieldCipher(otherKey)
	require.NoError(t, err)

	decrypted, err := other.Decrypt(token)
	if err == nil {
		// CBC padding can, rarely, validate by chance under the wrong
		// key; the recovered bytes still must not match.
		require.NotEqual(t, plaintext, *decrypted)
	} else {
		require.ErrorIs(t, err, ErrDecryptFailed)
	}
}

func TestNewFieldCipherRejectsBadKey(t *testing.T) {
	_, err := NewFieldCipher([]byte("too short"))
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestKeyFromHex(t *testing.T) {
	_, err := KeyFromHex("not hex at all")
	require.Error(t, err)

	_, err = KeyFromHex("deadbeef")
	require.ErrorIs(t, err, ErrInvalidKey)

	key, err := KeyFromHex(strings.Repeat("ab", KeySize))
	require.NoError(t, err)
	require.Len(t, key, KeySize)
}

func TestGenerateKeyIsRandom(t *testing.T) {
	first, err := GenerateKey()
	require.NoError(t, err)
	second, err := GenerateKey()
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}
