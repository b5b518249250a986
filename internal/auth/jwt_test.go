package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestJWKSServer(t *testing.T, key *rsa.PrivateKey, kid string) *httptest.Server {
	t.Helper()
	doc := jwksDocument{Keys: []jwk{{
		Kid: kid,
		Kty: "RSA",
		N:   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
	}}}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(doc)
	}))
}

func signTestToken(t *testing.T, key *rsa.PrivateKey, kid, subject string) string {
	t.Helper()
	claims := Claims{
		Email: "user@example.com",
		Name:  "User",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return signed
}

func TestJWTValidatorValidatesRS256Token(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	server := newTestJWKSServer(t, key, "kid-1")
	defer server.Close()

	validator := NewJWTValidator(NewJWKSCache(server.URL, time.Minute))
	token := signTestToken(t, key, "kid-1", "user-1")

	user, err := validator.Validate(context.Background(), token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if user.ID != "user-1" {
		t.Fatalf("ID = %q, want user-1", user.ID)
	}
	if user.Email != "user@example.com" {
		t.Fatalf("Email = %q, want user@example.com", user.Email)
	}
}

func TestJWTValidatorRejectsUnknownKid(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	server := newTestJWKSServer(t, key, "kid-1")
	defer server.Close()

	validator := NewJWTValidator(NewJWKSCache(server.URL, time.Minute))
	token := signTestToken(t, key, "kid-unknown", "user-1")

	if _, err := validator.Validate(context.Background(), token); err != ErrInvalidToken {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestJWTValidatorDisabledWithoutJWKS(t *testing.T) {
	var v *JWTValidator
	if _, err := v.Validate(context.Background(), "anything"); err != ErrAuthDisabled {
		t.Fatalf("err = %v, want ErrAuthDisabled", err)
	}
}
