// Package crypto implements the symmetric room encryption used for message content.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const keySize = chacha20poly1305.KeySize

// CryptoError represents an encryption/decryption error.
type CryptoError struct {
	Message string
}

func (e *CryptoError) Error() string {
	return e.Message
}

// GenerateKey returns a new base64-encoded room key.
func GenerateKey() (string, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate room key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

func decodeKey(key string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, &CryptoError{Message: fmt.Sprintf("invalid room key: %v", err)}
	}
	if len(raw) != keySize {
		return nil, &CryptoError{Message: fmt.Sprintf("invalid room key length: %d, expected %d", len(raw), keySize)}
	}
	return raw, nil
}

// Encrypt seals plaintext with XChaCha20-Poly1305.
// Wire format: base64(nonce || ciphertext || tag).
func Encrypt(plaintext, key string) (string, error) {
	raw, err := decodeKey(key)
	if err != nil {
		return "", err
	}

	aead, err := chacha20poly1305.NewX(raw)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open is the strict counterpart of Encrypt.
func Open(ciphertext, key string) (string, error) {
	raw, err := decodeKey(key)
	if err != nil {
		return "", err
	}

	wire, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", &CryptoError{Message: fmt.Sprintf("invalid ciphertext encoding: %v", err)}
	}

	aead, err := chacha20poly1305.NewX(raw)
	if err != nil {
		return "", err
	}

	if len(wire) < aead.NonceSize()+aead.Overhead() {
		return "", &CryptoError{Message: fmt.Sprintf("ciphertext too short: %d bytes", len(wire))}
	}

	nonce, sealed := wire[:aead.NonceSize()], wire[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", &CryptoError{Message: "decryption failed"}
	}
	return string(plaintext), nil
}

// Decrypt returns the plaintext of content, or content itself when the room
// has no key or the content does not decrypt. Rows written before a room had
// a key are stored as plaintext and pass through unchanged.
func Decrypt(content, key string) string {
	if key == "" {
		return content
	}
	plaintext, err := Open(content, key)
	if err != nil || plaintext == "" {
		return content
	}
	return plaintext
}
