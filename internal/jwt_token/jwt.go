package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"proconnect/pkg/domain"
	dErrors "proconnect/pkg/domain-errors"
)

// Claims represents the JWT claims for our access tokens. The participant
// reference is split across two custom claims; Subject mirrors it in
// "kind:id" form for log correlation.
type Claims struct {
	ParticipantKind string `json:"participant_kind"`
	ParticipantID   int64  `json:"participant_id"`
	jwt.RegisteredClaims
}

// ParticipantRef reassembles the validated participant reference carried by
// the token.
func (c *Claims) ParticipantRef() (domain.ParticipantRef, error) {
	kind, err := domain.ParseParticipantKind(c.ParticipantKind)
	if err != nil {
		return domain.ParticipantRef{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	ref, err := domain.NewParticipantRef(kind, c.ParticipantID)
	if err != nil {
		return domain.ParticipantRef{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return ref, nil
}

// JWTService handles JWT creation and validation
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewJWTService(signingKey string, issuer string, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

func (s *JWTService) GenerateAccessToken(ref domain.ParticipantRef, expiresIn time.Duration) (string, error) {
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ParticipantKind: ref.Kind.String(),
		ParticipantID:   ref.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ref.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})

	signedToken, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", err
	}
	return signedToken, nil
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	return claims, nil
}

// ExtractParticipantFromToken validates the token and returns the participant
// it was issued to.
func (s *JWTService) ExtractParticipantFromToken(tokenString string) (domain.ParticipantRef, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return domain.ParticipantRef{}, err
	}
	return claims.ParticipantRef()
}
