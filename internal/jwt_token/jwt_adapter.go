package jwttoken

import (
	"proconnect/internal/platform/middleware"
)

// JWTServiceAdapter adapts JWTService to the middleware.TokenValidator
// interface.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.AuthClaims, error) {
	ref, err := a.service.ExtractParticipantFromToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.AuthClaims{Actor: ref}, nil
}
