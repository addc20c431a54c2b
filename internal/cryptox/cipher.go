// Package cryptox implements the field-level encryption used for
// personal data at rest. Each sensitive column stores a
// hex(iv):hex(ciphertext) token produced by AES-256-CBC under a
// process-wide key, with a fresh random IV per encryption.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	ivSize  = aes.BlockSize
)

var (
	// ErrInvalidKey indicates the supplied key is not a valid AES-256 key.
	ErrInvalidKey = errors.New("encryption key must be 32 bytes")
	// ErrMalformedToken indicates a stored token could not be parsed.
	ErrMalformedToken = errors.New("malformed ciphertext token")
	// ErrDecryptFailed indicates the cipher rejected the ciphertext
	// (wrong key or corrupted data).
	ErrDecryptFailed = errors.New("unable to decrypt ciphertext")
)

// FieldCipher encrypts and decrypts individual string fields.
// The key is injected at construction so stores can be tested with
// fixed keys; there is no package-level key state.
type FieldCipher struct {
	key []byte
}

// NewFieldCipher constructs a cipher around a 32-byte key.
func NewFieldCipher(key []byte) (*FieldCipher, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	c := &FieldCipher{key: make([]byte, KeySize)}
	copy(c.key, key)
	return c, nil
}

// Encrypt turns plaintext into a storable token. A nil input passes
// through unchanged so absent fields stay absent. Every call draws a
// fresh random IV; tokens for identical plaintext differ.
func (c *FieldCipher) Encrypt(plaintext *string) (*string, error) {
	if plaintext == nil {
		return nil, nil
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}

	padded := pkcs7Pad([]byte(*plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	token := hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext)
	return &token, nil
}

// Decrypt is the inverse of Encrypt. A nil token yields nil.
func (c *FieldCipher) Decrypt(token *string) (*string, error) {
	if token == nil {
		return nil, nil
	}

	parts := strings.SplitN(*token, ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: missing separator", ErrMalformedToken)
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid iv encoding", ErrMalformedToken)
	}
	if len(iv) != ivSize {
		return nil, fmt.Errorf("%w: iv must be %d bytes", ErrMalformedToken, ivSize)
	}

	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ciphertext encoding", ErrMalformedToken)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length not a block multiple", ErrMalformedToken)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plain, err := pkcs7Unpad(padded, aes.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}

	result := string(plain)
	return &result, nil
}

// KeyFromHex decodes a hex-encoded AES-256 key.
func KeyFromHex(encoded string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	return key, nil
}

// GenerateKey produces a random AES-256 key. Data encrypted under a
// generated key is unreadable after a restart; deployments must
// supply the key externally.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate encryption key: %w", err)
	}
	return key, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-padding], nil
}
