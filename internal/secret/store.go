// Package secret encrypts the two stored credentials (service-account private
// key and AI API key) with a key derived from the process-wide site secret.
package secret

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"

	"ga4revenue/internal/apperr"
)

const (
	// blobDelimiter separates the ciphertext text from the raw IV inside a blob
	blobDelimiter = "::"

	keyInfo = "ga4revenue secret store v1"
	keySize = 32
)

// Store encrypts and decrypts credential blobs.
type Store struct {
	key  []byte
	rand io.Reader
}

// NewStore derives the AES-256 key from siteSecret.
func NewStore(siteSecret string) (*Store, error) {
	if strings.TrimSpace(siteSecret) == "" {
		return nil, apperr.New(apperr.InvalidInput, "site secret is not configured")
	}

	key := make([]byte, keySize)
	kdf := hkdf.New(sha256.New, []byte(siteSecret), nil, []byte(keyInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	return &Store{key: key, rand: rand.Reader}, nil
}

// Encrypt returns base64(base64(ciphertext) + "::" + iv) using a fresh IV.
func (s *Store) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(s.rand, iv); err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}

	padded := pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	var buf bytes.Buffer
	buf.WriteString(base64.StdEncoding.EncodeToString(ciphertext))
	buf.WriteString(blobDelimiter)
	buf.Write(iv)

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decrypt reverses Encrypt. Every malformed input yields a DecryptError.
func (s *Store) Decrypt(blob string) (string, error) {
	if strings.TrimSpace(blob) == "" {
		return "", apperr.New(apperr.DecryptError, "no encrypted value stored")
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(blob))
	if err != nil {
		return "", apperr.Wrap(apperr.DecryptError, "encrypted value is not valid base64", err)
	}

	encoded, iv, found := bytes.Cut(raw, []byte(blobDelimiter))
	if !found {
		return "", apperr.New(apperr.DecryptError, "encrypted value has no IV delimiter")
	}
	if len(iv) != aes.BlockSize {
		return "", apperr.Newf(apperr.DecryptError, "invalid IV length %d", len(iv))
	}

	ciphertext, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return "", apperr.Wrap(apperr.DecryptError, "ciphertext is not valid base64", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", apperr.New(apperr.DecryptError, "ciphertext is not a whole number of blocks")
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)

	unpadded, err := unpad(plain, aes.BlockSize)
	if err != nil {
		return "", apperr.Wrap(apperr.DecryptError, "wrong key or corrupted value", err)
	}

	return string(unpadded), nil
}

// Reveal decrypts blob and treats any failure as "not configured".
func (s *Store) Reveal(blob string) string {
	if s == nil || blob == "" {
		return ""
	}
	plain, err := s.Decrypt(blob)
	if err != nil {
		return ""
	}
	return plain
}

// pad applies PKCS#7 padding
func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty plaintext")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("invalid padding size %d", n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("invalid padding byte")
		}
	}
	return data[:len(data)-n], nil
}
