package crypto

import (
	"strings"
	"testing"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}

	if !VerifyPassword(hash, "secret") {
		t.Fatal("expected password verification to succeed")
	}

	if VerifyPassword(hash, "incorrect") {
		t.Fatal("expected password verification to fail")
	}
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken(32)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	if len(token) == 0 {
		t.Fatal("expected token to be non-empty")
	}
}

func TestGenerateInviteCode(t *testing.T) {
	code, err := GenerateInviteCode(8)
	if err != nil {
		t.Fatalf("invite code error: %v", err)
	}

	if len(code) != 8 {
		t.Fatalf("expected 8 characters, got %d", len(code))
	}

	for _, r := range code {
		if !strings.ContainsRune(inviteAlphabet, r) {
			t.Fatalf("character %q outside invite alphabet", r)
		}
	}

	// Ambiguous glyphs must never appear.
	for _, banned := range "0O1I" {
		if strings.ContainsRune(code, banned) {
			t.Fatalf("code %s contains banned character %q", code, banned)
		}
	}
}

func TestValidInviteCodeFormat(t *testing.T) {
	if !ValidInviteCodeFormat("ABCD2345") {
		t.Fatal("expected alphabet characters to be accepted")
	}
	for _, bad := range []string{"", "abcd2345", "ABCD23O5", "ABCD-345"} {
		if ValidInviteCodeFormat(bad) {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}
