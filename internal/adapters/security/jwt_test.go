package security

import (
	"testing"
	"time"

	"github.com/orbitacademy/subscription-service/internal/ports"
)

func TestJWTSignerRoundTrip(t *testing.T) {
	signer, err := NewJWTSigner("unit-test-secret")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	token, err := signer.Sign(ports.AuthClaims{
		Email:     "a@x.com",
		Role:      "user",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := signer.ParseAndValidate(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Email != "a@x.com" || claims.Role != "user" {
		t.Fatalf("claims: %+v", claims)
	}
	if !claims.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expires_at: got=%v want=%v", claims.ExpiresAt, now.Add(time.Hour))
	}
}

func TestJWTSignerRejectsExpiredToken(t *testing.T) {
	signer, _ := NewJWTSigner("unit-test-secret")
	past := time.Now().UTC().Add(-2 * time.Hour)
	token, err := signer.Sign(ports.AuthClaims{
		Email:     "a@x.com",
		IssuedAt:  past,
		ExpiresAt: past.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := signer.ParseAndValidate(token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestJWTSignerRejectsOtherSecret(t *testing.T) {
	a, _ := NewJWTSigner("secret-a")
	b, _ := NewJWTSigner("secret-b")
	now := time.Now().UTC()
	token, err := a.Sign(ports.AuthClaims{Email: "a@x.com", IssuedAt: now, ExpiresAt: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := b.ParseAndValidate(token); err == nil {
		t.Fatal("token signed with another secret accepted")
	}
}

func TestJWTSignerRequiresSecret(t *testing.T) {
	if _, err := NewJWTSigner(""); err == nil {
		t.Fatal("empty secret accepted")
	}
}
