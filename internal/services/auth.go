package services

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/foundernet/foundernet-backend/internal/logger"
	apperrors "github.com/foundernet/foundernet-backend/internal/pkg/errors"
	"github.com/foundernet/foundernet-backend/internal/requestdata"
)

// AuthService verifies bearer tokens minted by the identity collaborator and
// attaches the caller's identity to the request context. Registration, login
// and token issuance live with that collaborator, not here.
type AuthService interface {
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type JWTClaims struct {
	jwt.RegisteredClaims
}

type authService struct {
	jwtSecretKey string
	log          *logger.Logger
}

func NewAuthService(jwtSecretKey string, baseLog *logger.Logger) AuthService {
	return &authService{jwtSecretKey: jwtSecretKey, log: baseLog.With("service", "AuthService")}
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(as.jwtSecretKey), nil
	})
	if err != nil || !parsed.Valid {
		return ctx, fmt.Errorf("%w: invalid token", apperrors.ErrUnauthorized)
	}
	claims, ok := parsed.Claims.(*JWTClaims)
	if !ok {
		return ctx, fmt.Errorf("%w: invalid claims", apperrors.ErrUnauthorized)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, fmt.Errorf("%w: invalid subject", apperrors.ErrUnauthorized)
	}
	return requestdata.WithRequestData(ctx, &requestdata.RequestData{
		TokenString: tokenString,
		UserID:      userID,
	}), nil
}
