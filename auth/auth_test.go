package auth

import (
	"testing"

	"rafserver/models"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(42, models.RoleAdmin)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != 42 || claims.Role != models.RoleAdmin {
		t.Fatalf("claims = %+v", claims)
	}
	valid, err := IsValidToken(token)
	if err != nil || !valid {
		t.Fatalf("IsValidToken = %v, %v for fresh token", valid, err)
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	if _, err := ParseToken("not.a.token"); err == nil {
		t.Fatalf("expected error for malformed token")
	}
	if valid, _ := IsValidToken(""); valid {
		t.Fatalf("empty token must be invalid")
	}
}
