package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-fileops/internal/model"
	"go-fileops/pkg/apierror"
)

const tokenTypeAPI = "api"

// TokenService issues and checks HS256 bearer tokens for the HTTP surface.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

func (s *TokenService) Issue(subject string) (model.TokenResponse, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return model.TokenResponse{}, apierror.BadRequest("subject is required", "subject")
	}

	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"typ": tokenTypeAPI,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return model.TokenResponse{}, err
	}

	return model.TokenResponse{Token: signed, TokenType: "Bearer", ExpiresIn: int64(s.ttl.Seconds())}, nil
}

func (s *TokenService) ValidateToken(tokenString string) (*model.AuthClaims, error) {
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, apierror.Unauthorized("invalid token")
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apierror.Unauthorized("invalid token claims")
	}

	if typ, _ := claimsMap["typ"].(string); typ != tokenTypeAPI {
		return nil, apierror.Unauthorized("invalid token type")
	}

	claims := &model.AuthClaims{}
	claims.Subject, _ = claimsMap["sub"].(string)
	claims.TokenID, _ = claimsMap["jti"].(string)
	if claims.Subject == "" {
		return nil, apierror.Unauthorized("invalid token subject")
	}

	return claims, nil
}
