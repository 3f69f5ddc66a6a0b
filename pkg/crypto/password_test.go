package crypto

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHashIsSaltedAndVerifiable(t *testing.T) {
	h := Bcrypt{Cost: bcrypt.MinCost}
	first, err := h.Hash("p")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	second, err := h.Hash("p")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct salted digests")
	}
	if first == "p" {
		t.Fatalf("digest must not equal the plaintext")
	}
	if !h.Verify("p", first) || !h.Verify("p", second) {
		t.Fatalf("expected both digests to verify")
	}
	if h.Verify("q", first) {
		t.Fatalf("wrong password must not verify")
	}
}

func TestBcryptVerifyRejectsMalformedDigest(t *testing.T) {
	h := Bcrypt{Cost: bcrypt.MinCost}
	if h.Verify("p", "") {
		t.Fatalf("empty digest must not verify")
	}
	if h.Verify("p", "cA==") {
		t.Fatalf("legacy base64 digest must not verify")
	}
}

func TestBcryptRejectsOverlongPassword(t *testing.T) {
	_, err := Bcrypt{Cost: bcrypt.MinCost}.Hash(strings.Repeat("x", 73))
	if !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}
