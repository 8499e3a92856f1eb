package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// PasswordHasher hashes and verifies local passwords
type PasswordHasher interface {
	Hash(password string) (string, error)

	// Verify reports whether password matches digest. It never fails:
	// unreadable digests simply do not match.
	Verify(password, digest string) bool
}

// Defaults for the PBKDF2 hasher
const (
	DefaultPBKDF2Rounds   = 200
	DefaultPBKDF2SaltSize = 16

	pbkdf2KeyLen = 32
	pbkdf2Ident  = "pbkdf2-sha256"
)

// PBKDF2Hasher produces "$pbkdf2-sha256$<rounds>$<salt>$<checksum>" digests.
// Salt and checksum use the adapted base64 alphabet ("." instead of "+", no
// padding) so digests stay interchangeable with passlib's pbkdf2_sha256.
type PBKDF2Hasher struct {
	Rounds   int
	SaltSize int
}

func NewPBKDF2Hasher() *PBKDF2Hasher {
	return &PBKDF2Hasher{Rounds: DefaultPBKDF2Rounds, SaltSize: DefaultPBKDF2SaltSize}
}

func (h *PBKDF2Hasher) Hash(password string) (string, error) {
	rounds := h.Rounds
	if rounds <= 0 {
		rounds = DefaultPBKDF2Rounds
	}
	saltSize := h.SaltSize
	if saltSize <= 0 {
		saltSize = DefaultPBKDF2SaltSize
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(password), salt, rounds, pbkdf2KeyLen, sha256.New)
	return fmt.Sprintf("$%s$%d$%s$%s", pbkdf2Ident, rounds, ab64Encode(salt), ab64Encode(key)), nil
}

func (h *PBKDF2Hasher) Verify(password, digest string) bool {
	// "", ident, rounds, salt, checksum
	parts := strings.Split(digest, "$")
	if len(parts) != 5 || parts[0] != "" || parts[1] != pbkdf2Ident {
		return false
	}
	rounds, err := strconv.Atoi(parts[2])
	if err != nil || rounds <= 0 {
		return false
	}
	salt, err := ab64Decode(parts[3])
	if err != nil {
		return false
	}
	want, err := ab64Decode(parts[4])
	if err != nil || len(want) == 0 {
		return false
	}

	got := pbkdf2.Key([]byte(password), salt, rounds, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func ab64Encode(b []byte) string {
	return strings.ReplaceAll(base64.RawStdEncoding.EncodeToString(b), "+", ".")
}

func ab64Decode(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.ReplaceAll(s, ".", "+"))
}
