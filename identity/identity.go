package identity

import (
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

// Alphabet is the short-code symbol set: digits and uppercase letters with
// I and O removed because they read as 1 and 0.
const Alphabet = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// ShortCodeLength is the fixed length of every short code.
const ShortCodeLength = 12

// Identity is the result of deriving credentials. ID acts as both username
// and password-proof towards the rendezvous service; ShortCode is the
// human-shareable discovery handle.
type Identity struct {
	ID          string
	ShortCode   string
	Username    string
	DisplayName string
}

// Derive computes the identity for the given credentials.
//
// The username is case-insensitive. Derivation is pure: no randomness, no
// clock, no storage, so two processes deriving from the same triple always
// agree on the ID and short code.
func Derive(username, secret, pin string) Identity {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(strings.ToLower(username)))
	h.Write([]byte{0})
	h.Write([]byte(secret))
	h.Write([]byte{0})
	h.Write([]byte(pin))
	digest := h.Sum(nil)

	id := Identity{
		ID:        hex.EncodeToString(digest),
		ShortCode: encodeShortCode(digest),
		Username:  strings.ToLower(username),
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Derive",
		"username":   id.Username,
		"short_code": id.ShortCode,
	}).Debug("Derived identity from credentials")

	return id
}

// encodeShortCode maps fixed-width slices of the digest into the
// alphabet. Each of the 12 symbols consumes two digest bytes, read
// big-endian and reduced modulo the alphabet size.
func encodeShortCode(digest []byte) string {
	var b strings.Builder
	b.Grow(ShortCodeLength)
	for i := 0; i < ShortCodeLength; i++ {
		v := binary.BigEndian.Uint16(digest[2*i : 2*i+2])
		b.WriteByte(Alphabet[int(v)%len(Alphabet)])
	}
	return b.String()
}

// NormalizeShortCode uppercases a user-entered code and strips every rune
// outside the alphabet, so "7xkq-2m9r ht4b" resolves the same as the
// canonical form.
func NormalizeShortCode(code string) string {
	var b strings.Builder
	b.Grow(len(code))
	for _, r := range strings.ToUpper(code) {
		if strings.ContainsRune(Alphabet, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
