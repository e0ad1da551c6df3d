package auth

import (
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	token, exp, err := Issue(100, "attendbot", "secret", 15*time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if until := time.Until(exp); until < 14*time.Minute || until > 16*time.Minute {
		t.Fatalf("expiry %v from now, want about 15m", until)
	}

	claims, err := Parse(token, "secret", "attendbot")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "100" {
		t.Errorf("Subject = %q, want 100", claims.Subject)
	}
	if claims.Role != "admin" {
		t.Errorf("Role = %q, want admin", claims.Role)
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	token, _, err := Issue(100, "attendbot", "secret", 15*time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Parse(token, "other-secret", "attendbot"); err == nil {
		t.Fatal("token signed with another key should be rejected")
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	token, _, err := Issue(100, "someone-else", "secret", 15*time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Parse(token, "secret", "attendbot"); err == nil {
		t.Fatal("token from another issuer should be rejected")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	token, _, err := Issue(100, "attendbot", "secret", -time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Parse(token, "secret", "attendbot"); err == nil {
		t.Fatal("expired token should be rejected")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse("not.a.token", "secret", "attendbot"); err == nil {
		t.Fatal("garbage should be rejected")
	}
}
