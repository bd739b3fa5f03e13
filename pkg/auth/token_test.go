package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/cartsync-backend/pkg/config"
)

func testConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "identity"}
}

func TestMintAndParseToken(t *testing.T) {
	cfg := testConfig()
	userID := uuid.New()

	token, err := MintToken(cfg, time.Now(), userID, time.Hour)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	claims, err := ParseToken(cfg, token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("expected user_id %s, got %s", userID, claims.UserID)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	cfg := testConfig()
	token, err := MintToken(cfg, time.Now().Add(-2*time.Hour), uuid.New(), time.Hour)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	if _, err := ParseToken(cfg, token); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestParseTokenRejectsWrongIssuerAndSecret(t *testing.T) {
	cfg := testConfig()
	token, err := MintToken(cfg, time.Now(), uuid.New(), time.Hour)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	other := cfg
	other.Issuer = "someone-else"
	if _, err := ParseToken(other, token); err == nil {
		t.Fatalf("expected issuer mismatch to fail")
	}

	other = cfg
	other.Secret = "different"
	if _, err := ParseToken(other, token); err == nil {
		t.Fatalf("expected signature mismatch to fail")
	}
}

func TestParseTokenRequiresUserID(t *testing.T) {
	cfg := testConfig()
	claims := jwt.RegisteredClaims{
		Issuer:    cfg.Issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	_, err = ParseToken(cfg, token)
	if err == nil || !strings.Contains(err.Error(), "user_id") {
		t.Fatalf("expected missing user_id error, got %v", err)
	}
}

func TestParseTokenRejectsOtherAlgorithms(t *testing.T) {
	cfg := testConfig()
	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: uuid.New()})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}
	if _, err := ParseToken(cfg, signed); err == nil {
		t.Fatalf("expected none algorithm to be rejected")
	}
}
