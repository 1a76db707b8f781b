package service

import (
	"strings"
	"testing"
)

// =============================================================================
// Email Validation Tests
// =============================================================================

func TestValidateEmail(t *testing.T) {
	testCases := []struct {
		name  string
		email string
		valid bool
	}{
		{"simple address", "ada@example.com", true},
		{"subdomain", "ada@mail.example.com", true},
		{"plus tag", "ada+test@example.com", true},
		{"empty", "", false},
		{"no at sign", "ada.example.com", false},
		{"two at signs", "ada@@example.com", false},
		{"missing local part", "@example.com", false},
		{"missing domain", "ada@", false},
		{"domain without dot", "ada@localhost", false},
		{"consecutive dots", "ada..b@example.com", false},
		{"over length limit", strings.Repeat("a", 250) + "@e.com", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateEmail(tc.email)
			if tc.valid && err != nil {
				t.Errorf("expected valid, got error: %v", err)
			}
			if !tc.valid && err == nil {
				t.Errorf("expected error for %q", tc.email)
			}
		})
	}
}

// =============================================================================
// Password Validation Tests
// =============================================================================

func TestValidatePassword_Length(t *testing.T) {
	testCases := []struct {
		name     string
		password string
		valid    bool
	}{
		{"too short - 7 chars", "Abcdef1", false},
		{"minimum - 8 chars", "Abcdef12", true},
		{"at bcrypt limit - 72 chars", strings.Repeat("a", 72), true},
		{"over bcrypt limit - 73 chars", strings.Repeat("a", 73), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validatePassword(tc.password)
			if tc.valid && err != nil {
				t.Errorf("expected valid, got error: %v", err)
			}
			if !tc.valid && err == nil {
				t.Error("expected error")
			}
		})
	}
}

// =============================================================================
// Session Token Tests
// =============================================================================

func TestGenerateSessionToken(t *testing.T) {
	token, err := generateSessionToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 32 random bytes hex-encoded
	if len(token) != 64 {
		t.Errorf("expected 64 character token, got %d", len(token))
	}

	other, err := generateSessionToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == other {
		t.Error("tokens must be unique")
	}
}

func TestHashSessionToken(t *testing.T) {
	hash := hashSessionToken("tok-123")

	// SHA-256 hex digest
	if len(hash) != 64 {
		t.Errorf("expected 64 character hash, got %d", len(hash))
	}
	if hash == "tok-123" {
		t.Error("hash must differ from token")
	}
	if hashSessionToken("tok-123") != hash {
		t.Error("hashing must be deterministic")
	}
	if hashSessionToken("tok-124") == hash {
		t.Error("different tokens must hash differently")
	}
}
