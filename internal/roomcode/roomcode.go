// Package roomcode generates and normalises the short codes people type
// to meet in a room.
package roomcode

import (
	"errors"
	"strings"

	"github.com/pion/randutil"
)

// Length is the number of characters in a generated code.
const Length = 6

// Alphabet is uppercase base36.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ErrInvalid is returned by Normalize for codes that cannot be typed back.
var ErrInvalid = errors.New("room code must be letters and digits only")

// New returns a fresh random code.
func New() (string, error) {
	return randutil.GenerateCryptoRandomString(Length, Alphabet)
}

// Canonical is the form a code is stored and looked up in.
func Canonical(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Normalize upper-cases a user supplied code and rejects anything outside
// the alphabet. Codes of other lengths are accepted so older or custom
// rooms still work.
func Normalize(code string) (string, error) {
	code = Canonical(code)
	if code == "" {
		return "", ErrInvalid
	}
	for _, r := range code {
		if !strings.ContainsRune(Alphabet, r) {
			return "", ErrInvalid
		}
	}
	return code, nil
}
