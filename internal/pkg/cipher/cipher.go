// Package cipher encrypts and decrypts the payloads exchanged with Pesepay.
//
// The processor expects AES-256-CBC where the IV is the first 16 bytes of the
// merchant encryption key. Every message therefore reuses the same IV, which
// leaks equality of plaintext prefixes. This cannot change without breaking
// interoperability with the processor, so the scheme is kept behind Codec and
// callers never see how the IV is chosen.
package cipher

import (
	"bytes"
	"crypto/aes"
	gocipher "crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
)

const keySize = 32

var (
	ErrDecryption       = errors.New("payload decryption failed")
	ErrKeyNotConfigured = errors.New("encryption key is not configured")
	errInvalidPadding   = errors.New("invalid padding")
	errInvalidBlockSize = errors.New("ciphertext is not a multiple of the block size")
	errEmptyCiphertext  = errors.New("empty ciphertext")
)

// Codec turns plaintext into the base64 text carried in an envelope and back.
type Codec interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(payload string) ([]byte, error)
}

// KeyDerivedCBC is the processor's wire scheme.
type KeyDerivedCBC struct {
	key []byte
	iv  []byte
}

// NewKeyDerivedCBC accepts the merchant key as configured in the dashboard.
// Short keys are zero-padded and long keys truncated to 32 bytes, the same
// normalisation the processor applies.
func NewKeyDerivedCBC(key string) *KeyDerivedCBC {
	if key == "" {
		return &KeyDerivedCBC{}
	}
	k := make([]byte, keySize)
	copy(k, key)
	return &KeyDerivedCBC{key: k, iv: k[:aes.BlockSize]}
}

func (c *KeyDerivedCBC) Encrypt(plaintext []byte) (string, error) {
	if len(c.key) == 0 {
		return "", ErrKeyNotConfigured
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	gocipher.NewCBCEncrypter(block, c.iv).CryptBlocks(out, padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (c *KeyDerivedCBC) Decrypt(payload string) ([]byte, error) {
	if len(c.key) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, ErrKeyNotConfigured)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64: %v", ErrDecryption, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, errEmptyCiphertext)
	}
	if len(raw)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, errInvalidBlockSize)
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("%w: init cipher: %v", ErrDecryption, err)
	}
	out := make([]byte, len(raw))
	gocipher.NewCBCDecrypter(block, c.iv).CryptBlocks(out, raw)
	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return plain, nil
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(append(make([]byte, 0, len(b)+n), b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, errInvalidPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size {
		return nil, errInvalidPadding
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, errInvalidPadding
		}
	}
	return b[:len(b)-n], nil
}
