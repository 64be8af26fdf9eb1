package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	userID := uuid.Must(uuid.NewV7())

	tok, err := issuer.Issue(userID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	got, err := issuer.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != userID {
		t.Fatalf("got %s, want %s", got, userID)
	}
}

func TestTokenIssuerRejectsWrongSecret(t *testing.T) {
	userID := uuid.Must(uuid.NewV7())
	tok, err := NewTokenIssuer("secret-a", time.Hour).Issue(userID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewTokenIssuer("secret-b", time.Hour).Verify(tok); err == nil {
		t.Fatal("expected verification failure with mismatched secret")
	}
}

func TestTokenIssuerRejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", -time.Second)
	tok, err := issuer.Issue(uuid.Must(uuid.NewV7()))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.Verify(tok); err == nil {
		t.Fatal("expected expiry to fail verification")
	}
}

func TestExtractBearerToken(t *testing.T) {
	cases := map[string]string{
		"":                   "",
		"Bearer abc123":      "abc123",
		"Basic abc123":       "",
		"Bearer ":            "",
	}
	for header, want := range cases {
		if got := ExtractBearerToken(header); got != want {
			t.Errorf("ExtractBearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestAPIKeyGenerateAndVerify(t *testing.T) {
	raw, prefix, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(prefix) != KeyPrefixLen {
		t.Fatalf("prefix length = %d, want %d", len(prefix), KeyPrefixLen)
	}
	hash := HashAPIKey(raw)
	if !VerifyAPIKey(raw, hash) {
		t.Fatal("expected raw key to verify against its own hash")
	}
	if VerifyAPIKey("wrong-key", hash) {
		t.Fatal("expected mismatched key to fail verification")
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hash, "correct horse battery staple") {
		t.Fatal("expected correct password to verify")
	}
	if CheckPassword(hash, "wrong password") {
		t.Fatal("expected incorrect password to fail")
	}
}
