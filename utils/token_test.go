package utils

import (
	"testing"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("user-1", "user1@example.com")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("Subject = %q, want user-1", claims.Subject)
	}
	if claims.Email != "user1@example.com" {
		t.Errorf("Email = %q, want user1@example.com", claims.Email)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	for _, tok := range []string{"", "garbage", "a.b.c"} {
		if _, err := ValidateToken(tok); err == nil {
			t.Errorf("Expected error for token %q", tok)
		}
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret-one")
	token, err := GenerateToken("user-1", "user1@example.com")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	t.Setenv("JWT_SECRET", "secret-two")
	if _, err := ValidateToken(token); err == nil {
		t.Error("Expected signature mismatch error")
	}
}
