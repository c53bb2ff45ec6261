// Package apikey issues operator API keys. Only the hash of a key is stored.
package apikey

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/ManuelReschke/ChatFox/app/models"
)

const (
	Prefix = "cf_"
	Length = 40
)

// Base62
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// RandomToken creates a cryptographically secure random Base62 string.
func RandomToken(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid token length: %d", length)
	}

	// Rejection sampling to avoid modulo bias.
	// 248 is the largest multiple of 62 below 256.
	const maxRandomByte = 248

	token := make([]byte, length)
	buf := make([]byte, length*2)
	written := 0

	for written < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read secure random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= maxRandomByte {
				continue
			}
			token[written] = alphabet[int(b)%len(alphabet)]
			written++
			if written == length {
				break
			}
		}
	}
	return string(token), nil
}

// Key is a freshly issued key. Plain is shown to the operator once.
type Key struct {
	Plain string
	Hash  string
}

// New issues a key and its lookup hash.
func New() (Key, error) {
	token, err := RandomToken(Length)
	if err != nil {
		return Key{}, err
	}
	plain := Prefix + token
	return Key{Plain: plain, Hash: models.HashAPIKey(plain)}, nil
}

// LooksValid is a cheap syntax check before the hash lookup.
func LooksValid(key string) bool {
	if !strings.HasPrefix(key, Prefix) || len(key) != len(Prefix)+Length {
		return false
	}
	for i := len(Prefix); i < len(key); i++ {
		if strings.IndexByte(alphabet, key[i]) == -1 {
			return false
		}
	}
	return true
}
