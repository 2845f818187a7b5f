// Package signing produces tamper-evident trace receipts for response
// envelopes: a compact JWT, HMAC-signed over traceRef + runSessionId +
// state, that the out-of-scope transport layer can forward to audit
// tooling (spec.md SPEC_FULL §4.1).
package signing

import (
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

// ReceiptClaims is the claim set embedded in a trace receipt.
type ReceiptClaims struct {
	jwt.RegisteredClaims
	TraceRef     string `json:"trace_ref"`
	RunSessionID string `json:"run_session_id"`
	State        string `json:"state"`
}

// Signer issues and verifies trace receipts using a single HMAC secret,
// mirroring the teacher's TokenManager shape (core/pkg/identity/token.go)
// but with symmetric signing in place of the teacher's RSA KeySet, since
// turnctl has no multi-tenant key-rotation requirement to justify the
// asymmetric machinery.
type Signer struct {
	secret []byte
	issuer string
}

// NewSigner constructs a Signer. secret must be non-empty. The HMAC key
// actually used to sign receipts is not secret itself but a 32-byte key
// derived from it via HKDF-SHA256 (info bound to issuer), the same
// derive-don't-reuse-raw-key-material approach as the teacher's
// Keyring.DeriveForTenant (core/pkg/governance/keyring.go): two Signers
// built from the same operator-supplied secret but different issuers
// never sign with the same bytes.
func NewSigner(secret []byte, issuer string) (*Signer, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("signing: secret must not be empty")
	}
	if issuer == "" {
		issuer = "turnctl.dispatcher"
	}
	derived := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, []byte("turnctl-receipt-kdf"), []byte(issuer)), derived); err != nil {
		return nil, fmt.Errorf("signing: derive HMAC key: %w", err)
	}
	return &Signer{secret: derived, issuer: issuer}, nil
}

// IssueReceipt signs a compact JWT over traceRef + runSessionId + state,
// valid for ttl from now.
func (s *Signer) IssueReceipt(traceRef, runSessionID, state string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := ReceiptClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    s.issuer,
			Subject:   runSessionID,
		},
		TraceRef:     traceRef,
		RunSessionID: runSessionID,
		State:        state,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing: sign receipt: %w", err)
	}
	return signed, nil
}

// VerifyReceipt parses and validates a receipt token, returning its claims.
func (s *Signer) VerifyReceipt(tokenString string) (*ReceiptClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ReceiptClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("signing: unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*ReceiptClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	return claims, nil
}
