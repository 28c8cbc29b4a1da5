package uisync

import (
	gojwt "github.com/golang-jwt/jwt/v5"
)

// optional bearer token attached to session requests.
// the token is opaque to the sync engine, verification is the server's job.
type SessionAuth struct {
	BearerJwt string
}

type SessionClaims struct {
	UserId   string
	UserName string
	TenantId string
}

// the claims are only used for logging and for the startup params,
// never for authorization decisions on the client
func ParseSessionJwtUnverified(jwtStr string) (*SessionClaims, error) {
	parser := gojwt.NewParser()
	token, _, err := parser.ParseUnverified(jwtStr, gojwt.MapClaims{})
	if err != nil {
		return nil, err
	}

	claims := token.Claims.(gojwt.MapClaims)

	sessionClaims := &SessionClaims{}

	if userId, ok := claims["sub"]; ok {
		if userIdStr, ok := userId.(string); ok {
			sessionClaims.UserId = userIdStr
		}
	}
	if userName, ok := claims["name"]; ok {
		if userNameStr, ok := userName.(string); ok {
			sessionClaims.UserName = userNameStr
		}
	}
	if tenantId, ok := claims["tenant_id"]; ok {
		if tenantIdStr, ok := tenantId.(string); ok {
			sessionClaims.TenantId = tenantIdStr
		}
	}

	return sessionClaims, nil
}
