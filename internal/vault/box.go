// Package vault seals user secrets before they are written to the database.
package vault

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var (
	ErrCorrupt  = errors.New("sealed data is corrupt")
	ErrEmptyKey = errors.New("vault key is empty")
)

// Box seals and opens byte slices with a single symmetric key. The sealed
// form is nonce || secretbox output.
type Box struct {
	key [32]byte
}

// New derives the box key from a configured secret.
func New(secret string) (*Box, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrEmptyKey
	}
	return &Box{key: sha256.Sum256([]byte(secret))}, nil
}

func (b *Box) Seal(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &b.key), nil
}

func (b *Box) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrCorrupt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plaintext, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &b.key)
	if !ok {
		return nil, ErrCorrupt
	}
	return plaintext, nil
}
