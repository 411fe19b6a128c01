package model

// AuthClaims are carried by bearer tokens on the HTTP surface.
type AuthClaims struct {
	Subject string `json:"sub"`
	TokenID string `json:"jti"`
}
