// Package internal holds identifier and token minting shared by the engine and
// its stores. All generators draw from crypto/rand; callers are responsible for
// existence checks and silent regeneration on collision.
package internal

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	// ConfirmationIDLength is the digit count of pre-entry confirmation ids.
	ConfirmationIDLength = 8
	// AuthIDLength is the digit count of authorization grant ids and codes.
	AuthIDLength = 16
	// SystemIDLength is the digit count of system identifiers.
	SystemIDLength = 13
	// OpaqueTokenLength is the character count of access and refresh tokens.
	OpaqueTokenLength = 256
)

const alnum = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func randomDigits(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}

// NewConfirmationID returns an 8-digit pre-entry confirmation id.
func NewConfirmationID() (string, error) {
	return randomDigits(ConfirmationIDLength)
}

// NewAuthID returns a 16-digit authorization grant id or code.
func NewAuthID() (string, error) {
	return randomDigits(AuthIDLength)
}

// NewSystemID returns a fresh 13-digit system identifier with a non-zero
// leading digit.
func NewSystemID() (string, error) {
	lead, err := rand.Int(rand.Reader, big.NewInt(9))
	if err != nil {
		return "", err
	}
	rest, err := randomDigits(SystemIDLength - 1)
	if err != nil {
		return "", err
	}
	return string(byte('1'+lead.Int64())) + rest, nil
}

// NewOpaqueToken returns a 256-character alphanumeric bearer string.
func NewOpaqueToken() (string, error) {
	buf := make([]byte, OpaqueTokenLength)
	max := big.NewInt(int64(len(alnum)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = alnum[idx.Int64()]
	}
	return string(buf), nil
}

// NewVirtualID returns a virtual identifier: "vid-" + dashless UUIDv4.
func NewVirtualID() string {
	return "vid-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewAppID returns an application identifier: "app-" + dashless UUIDv4.
func NewAppID() string {
	return "app-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
