package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bookmarket-io/bookmarket-backend/pkg/config"
	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
)

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "bookmarket",
		ExpirationMinutes: 30,
	}
	now := time.Now().UTC()
	userID := uuid.New()

	payload := AccessTokenPayload{
		UserID: userID,
		Role:   enums.UserRoleUser,
	}

	token, err := MintAccessToken(cfg, now, payload)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("expected user id %s, got %s", userID, claims.UserID)
	}
	if claims.Role != enums.UserRoleUser {
		t.Fatalf("expected role %s, got %s", enums.UserRoleUser, claims.Role)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatal("expected a generated jti")
	}
}

func TestMintAccessTokenValidation(t *testing.T) {
	now := time.Now().UTC()
	payload := AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleAdmin}

	if _, err := MintAccessToken(config.JWTConfig{Issuer: "bookmarket", ExpirationMinutes: 30}, now, payload); err == nil {
		t.Fatal("expected error for missing secret")
	}
	if _, err := MintAccessToken(config.JWTConfig{Secret: "secret", ExpirationMinutes: 30}, now, payload); err == nil {
		t.Fatal("expected error for missing issuer")
	}

	bad := AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRole("superuser")}
	cfg := config.JWTConfig{Secret: "secret", Issuer: "bookmarket", ExpirationMinutes: 30}
	if _, err := MintAccessToken(cfg, now, bad); err == nil || !strings.Contains(err.Error(), "invalid user role") {
		t.Fatalf("expected invalid role error, got %v", err)
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "bookmarket", ExpirationMinutes: 1}
	issued := time.Now().UTC().Add(-2 * time.Hour)

	token, err := MintAccessToken(cfg, issued, AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleUser})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseAccessTokenRejectsWrongIssuer(t *testing.T) {
	mintCfg := config.JWTConfig{Secret: "secret", Issuer: "other", ExpirationMinutes: 30}
	token, err := MintAccessToken(mintCfg, time.Now().UTC(), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleUser})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	parseCfg := config.JWTConfig{Secret: "secret", Issuer: "bookmarket", ExpirationMinutes: 30}
	if _, err := ParseAccessToken(parseCfg, token); err == nil {
		t.Fatal("expected issuer mismatch to be rejected")
	}
}
