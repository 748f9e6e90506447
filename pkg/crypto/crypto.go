package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// inviteAlphabet deliberately omits 0/O and 1/I so codes survive being read
// aloud or retyped from a screenshot.
const inviteAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// HashPassword returns a bcrypt hash of the supplied password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares the hashed password with the plaintext candidate.
func VerifyPassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// GenerateToken returns a random URL-safe token of the requested byte length.
func GenerateToken(length int) (string, error) {
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}

// ValidInviteCodeFormat reports whether every character of the candidate can
// appear in a generated invite code. Case is the caller's concern.
func ValidInviteCodeFormat(code string) bool {
	if code == "" {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !isInviteChar(code[i]) {
			return false
		}
	}
	return true
}

func isInviteChar(c byte) bool {
	for i := 0; i < len(inviteAlphabet); i++ {
		if inviteAlphabet[i] == c {
			return true
		}
	}
	return false
}

// GenerateInviteCode returns a random code of the requested length drawn from
// the invite alphabet. Uniqueness is the caller's responsibility.
func GenerateInviteCode(length int) (string, error) {
	max := big.NewInt(int64(len(inviteAlphabet)))
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = inviteAlphabet[n.Int64()]
	}
	return string(code), nil
}
