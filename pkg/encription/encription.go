// Package encription seals queued location payloads at rest.
package encription

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

var ErrCiphertextTooShort = errors.New("ciphertext too short")

type Enc struct {
	key []byte
}

// NewEnc derives a 256-bit key from the passphrase.
func NewEnc(key string) *Enc {
	hash := sha256.New()
	hash.Write([]byte(key))
	return &Enc{
		key: hash.Sum(nil),
	}
}

func isBase64(s string) bool {
	_, err := base64.URLEncoding.DecodeString(s)
	return err == nil
}

// Encrypt returns base64(nonce || ciphertext) of data.
func (e *Enc) Encrypt(data string) (string, error) {
	aead, err := chacha20poly1305.New(e.key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(data)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := aead.Seal(nonce, nonce, []byte(data), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

func (e *Enc) Decrypt(encryptedText string) (string, error) {
	if !isBase64(encryptedText) {
		return "", errors.New("invalid base64 data")
	}
	ciphertext, err := base64.URLEncoding.DecodeString(encryptedText)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64 data: %w", err)
	}

	aead, err := chacha20poly1305.New(e.key)
	if err != nil {
		return "", err
	}

	if len(ciphertext) < aead.NonceSize()+aead.Overhead() {
		return "", ErrCiphertextTooShort
	}

	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to open payload: %w", err)
	}

	return string(plain), nil
}
