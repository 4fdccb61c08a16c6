package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/wacommerce-backend/pkg/config"
)

var testCfg = config.JWTConfig{Secret: "secret", Issuer: "wacommerce", TTL: time.Hour}

func TestMintAndParseMerchantToken(t *testing.T) {
	now := time.Now().UTC()
	token, err := MintMerchantToken(testCfg, now, 42)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	claims, err := ParseMerchantToken(testCfg, token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.MerchantID != 42 {
		t.Fatalf("expected merchant 42, got %d", claims.MerchantID)
	}
	if claims.Issuer != testCfg.Issuer || claims.Subject != "42" {
		t.Fatalf("unexpected registered claims %+v", claims.RegisteredClaims)
	}
	if claims.ID == "" {
		t.Fatalf("expected jti")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token, err := MintMerchantToken(testCfg, time.Now().Add(-2*time.Hour), 7)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	if _, err := ParseMerchantToken(testCfg, token); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestParseRejectsWrongSecretAndIssuer(t *testing.T) {
	token, err := MintMerchantToken(testCfg, time.Now(), 7)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	other := testCfg
	other.Secret = "other"
	if _, err := ParseMerchantToken(other, token); err == nil {
		t.Fatalf("expected signature failure")
	}
	other = testCfg
	other.Issuer = "someone-else"
	if _, err := ParseMerchantToken(other, token); err == nil {
		t.Fatalf("expected issuer failure")
	}
}

func TestParseRejectsForeignAlgorithm(t *testing.T) {
	claims := MerchantClaims{
		MerchantID: 7,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testCfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("build none token: %v", err)
	}
	if _, err := ParseMerchantToken(testCfg, unsigned); err == nil {
		t.Fatalf("expected alg none to be rejected")
	}
}

func TestMintValidatesInput(t *testing.T) {
	if _, err := MintMerchantToken(testCfg, time.Now(), 0); err == nil {
		t.Fatalf("expected invalid merchant error")
	}
	if _, err := MintMerchantToken(config.JWTConfig{Issuer: "x", TTL: time.Hour}, time.Now(), 1); err == nil {
		t.Fatalf("expected missing secret error")
	}
}
