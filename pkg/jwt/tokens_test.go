package jwt

import (
	"testing"
	"time"
)

func TestServiceTokenRoundTrip(t *testing.T) {
	token, err := GenerateServiceToken("reports", "internal-secret", time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := Parse(token, "internal-secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Service != "reports" || claims.Issuer != Issuer {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseRejectsWrongSecretAndExpiredTokens(t *testing.T) {
	token, err := GenerateServiceToken("reports", "internal-secret", time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := Parse(token, "other-secret"); err == nil {
		t.Fatalf("expected signature failure")
	}

	expired, err := GenerateServiceToken("reports", "internal-secret", -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := Parse(expired, "internal-secret"); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestEmptySecretIsRejected(t *testing.T) {
	if _, err := GenerateServiceToken("reports", " ", time.Minute); err == nil {
		t.Fatalf("expected error for empty signing secret")
	}
	if _, err := Parse("anything", ""); err == nil {
		t.Fatalf("expected error for empty verification secret")
	}
}
