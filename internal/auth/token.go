// Package auth implements C8: verification of signed bearer tokens against
// a revocation store (spec §4.8). Built in the teacher's "small owned
// service, explicit lifecycle, no ambient globals" style (spec §9) since
// the corpus has no direct auth-token component to ground this on —
// cryptographic primitives are stdlib here exactly as they are throughout
// the teacher repo, which never reaches for a third-party HMAC library.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/velotype/velotype/internal/apperr"
)

// Claims is the verified identity carried by a valid token.
type Claims struct {
	ID       string `json:"sub"`
	Username string `json:"username"`
	IssuedAt int64  `json:"iat"`
	Expiry   int64  `json:"exp"`
	Remember bool   `json:"remember"`
}

type header struct {
	Alg string `json:"alg"`
}

// Verifier validates tokens of the form headerB64.payloadB64.signatureB64,
// consulting a RevocationStore before trusting the signature.
type Verifier struct {
	secret     []byte
	revocation *RevocationStore
	now        func() time.Time
}

// NewVerifier builds a Verifier over the process HMAC secret and a
// revocation store.
func NewVerifier(secret string, revocation *RevocationStore) *Verifier {
	return &Verifier{secret: []byte(secret), revocation: revocation, now: time.Now}
}

// Verify runs the four-step check from spec §4.8 and returns the caller's
// identity on success.
func (v *Verifier) Verify(token string) (Claims, error) {
	if v.revocation.IsRevoked(token) {
		return Claims{}, apperr.ErrUnauthorized
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Claims{}, apperr.ErrUnauthorized
	}
	headerB64, payloadB64, sigB64 := parts[0], parts[1], parts[2]

	expectedSig := sign(v.secret, headerB64+"."+payloadB64)
	gotSig, err := base64.RawURLEncoding.DecodeString(sigB64)
	if err != nil {
		return Claims{}, apperr.ErrUnauthorized
	}
	if subtle.ConstantTimeCompare(expectedSig, gotSig) != 1 {
		return Claims{}, apperr.ErrUnauthorized
	}

	payloadRaw, err := base64.RawURLEncoding.DecodeString(payloadB64)
	if err != nil {
		return Claims{}, apperr.ErrUnauthorized
	}
	var claims Claims
	if err := json.Unmarshal(payloadRaw, &claims); err != nil {
		return Claims{}, apperr.ErrUnauthorized
	}

	if claims.Expiry <= v.now().Unix() {
		return Claims{}, apperr.ErrUnauthorized
	}

	return claims, nil
}

// Issue builds a signed token for the given claims — used by tests and by
// the out-of-scope login/register HTTP surface that mints tokens this
// Verifier then checks.
func (v *Verifier) Issue(claims Claims) string {
	headerB64 := base64.RawURLEncoding.EncodeToString(mustJSON(header{Alg: "HS256"}))
	payloadB64 := base64.RawURLEncoding.EncodeToString(mustJSON(claims))
	sig := sign(v.secret, headerB64+"."+payloadB64)
	sigB64 := base64.RawURLEncoding.EncodeToString(sig)
	return headerB64 + "." + payloadB64 + "." + sigB64
}

func sign(secret []byte, signingInput string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(signingInput))
	return mac.Sum(nil)
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("auth: marshal claims: %v", err))
	}
	return b
}

// TokenHash returns the hex sha256 digest used to key revocation entries.
func TokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", sum)
}
