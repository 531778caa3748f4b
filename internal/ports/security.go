package ports

import "time"

// WebhookVerifier authenticates a raw webhook body against its signature
// header. Verification happens before any parsing; downstream components only
// ever see bodies that passed this gate.
type WebhookVerifier interface {
	Verify(rawBody []byte, signatureHeader string, now time.Time) error
}

// PasswordHasher hashes account passwords captured on the signup-with-checkout
// path.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// AuthClaims is the identity attached to an authenticated request.
type AuthClaims struct {
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenSigner signs and validates bearer tokens for the account and admin
// endpoints. Token issuance itself lives with the auth frontend; this service
// only needs the shared-secret validation side, plus Sign for tooling/tests.
type TokenSigner interface {
	Sign(claims AuthClaims) (string, error)
	ParseAndValidate(token string) (AuthClaims, error)
}
