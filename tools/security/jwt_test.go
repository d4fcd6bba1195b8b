package security

import (
	"testing"
	"time"

	"Tribe/tools/errs"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

func TestGenerateVerifyRoundTrip(t *testing.T) {
	opts := DefaultOptions([]byte("secret"))
	token, exp, err := Generate(opts, "user-1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Fatalf("expiry should be in the future: %v", exp)
	}
	got, err := Verify(opts, token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got != "user-1" {
		t.Fatalf("subject = %q", got)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	token, _, err := Generate(DefaultOptions([]byte("right")), "user-1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	_, err = Verify(DefaultOptions([]byte("wrong")), token)
	if !errors.Is(err, errs.ErrTokenExpired) {
		t.Fatalf("forged token should fail as TokenExpiredError, got %v", err)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	opts := DefaultOptions([]byte("secret"))
	past := time.Now().Add(-time.Hour)
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub": "user-1",
		"iat": past.Unix(),
		"exp": past.Add(time.Minute).Unix(),
	})
	signed, err := tok.SignedString(opts.Secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := Verify(opts, signed); !errors.Is(err, errs.ErrTokenExpired) {
		t.Fatalf("expired token should fail, got %v", err)
	}
}

func TestVerifyGarbage(t *testing.T) {
	if _, err := Verify(DefaultOptions([]byte("secret")), "not-a-token"); err == nil {
		t.Fatalf("garbage must not verify")
	}
}

func TestUnsupportedAlg(t *testing.T) {
	opts := Options{Secret: []byte("secret"), Alg: "RS256"}
	if _, _, err := Generate(opts, "user-1"); err == nil {
		t.Fatalf("asymmetric algs are not supported here")
	}
}
