package uisync

import (
	"testing"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/go-playground/assert/v2"
)

func TestParseSessionJwtUnverified(t *testing.T) {
	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"sub":       "user1",
		"name":      "Test User",
		"tenant_id": "tenant1",
	})
	jwtStr, err := token.SignedString([]byte("test-key"))
	assert.Equal(t, nil, err)

	claims, err := ParseSessionJwtUnverified(jwtStr)
	assert.Equal(t, nil, err)
	assert.Equal(t, "user1", claims.UserId)
	assert.Equal(t, "Test User", claims.UserName)
	assert.Equal(t, "tenant1", claims.TenantId)
}

func TestParseSessionJwtUnverifiedMissingClaims(t *testing.T) {
	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{})
	jwtStr, err := token.SignedString([]byte("test-key"))
	assert.Equal(t, nil, err)

	claims, err := ParseSessionJwtUnverified(jwtStr)
	assert.Equal(t, nil, err)
	assert.Equal(t, "", claims.UserId)
}

func TestParseSessionJwtUnverifiedMalformed(t *testing.T) {
	_, err := ParseSessionJwtUnverified("not a jwt")
	assert.NotEqual(t, nil, err)
}
