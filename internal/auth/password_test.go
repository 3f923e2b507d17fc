package auth

import (
	"errors"
	"testing"
)

func TestCheckPasswordStrength(t *testing.T) {
	cases := map[string]bool{
		"Str0ng!Pass":    true,
		"An0ther$Good":   true,
		"short1A!":       true,
		"sh0r!A":         false, // too short
		"alllowercase1!": false,
		"ALLUPPERCASE1!": false,
		"NoDigitsHere!":  false,
		"NoSymbols123A":  false,
		"":               false,
	}
	for pw, ok := range cases {
		err := CheckPasswordStrength(pw)
		if ok && err != nil {
			t.Errorf("password %q: unexpected error %v", pw, err)
		}
		if !ok && !errors.Is(err, ErrWeakPassword) {
			t.Errorf("password %q: expected ErrWeakPassword, got %v", pw, err)
		}
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Str0ng!Pass")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "Str0ng!Pass" {
		t.Fatal("hash must not equal plaintext")
	}
	if err := VerifyPassword(hash, "Str0ng!Pass"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if err := VerifyPassword(hash, "wrong-password"); err == nil {
		t.Fatal("expected mismatch error")
	}

	again, err := HashPassword("Str0ng!Pass")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if again == hash {
		t.Fatal("bcrypt must salt each hash")
	}
}

func TestHashPasswordEmpty(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Fatal("expected error for empty password")
	}
	if err := VerifyPassword("", "anything"); err == nil {
		t.Fatal("expected error for empty hash")
	}
}
