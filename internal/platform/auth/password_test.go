package auth

import "testing"

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct-horse-battery")
	if err != nil {
		t.Fatalf("HashPassword() error: %v", err)
	}
	if hash == "correct-horse-battery" {
		t.Error("hash must not equal the plaintext")
	}
	if !CheckPassword(hash, "correct-horse-battery") {
		t.Error("expected matching password to verify")
	}
	if CheckPassword(hash, "wrong-password-entirely") {
		t.Error("expected wrong password to fail")
	}
}

func TestHashPassword_TooShort(t *testing.T) {
	if _, err := HashPassword("short"); err == nil {
		t.Error("expected error for password below minimum length")
	}
}

func TestCheckPassword_InvalidHash(t *testing.T) {
	if CheckPassword("not-a-bcrypt-hash", "whatever-password") {
		t.Error("expected invalid hash to fail verification")
	}
}
