package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rocketscienceinc/tictactoe-ledger/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-ledger/internal/entity"
)

const (
	defaultTokenTTL = 24 * time.Hour
	issuer          = "tictactoe-ledger"
)

var ErrEmptySecret = errors.New("jwt secret key is empty")

type AuthService interface {
	GenerateToken(id entity.Identity) (string, error)
	ParseToken(token string) (entity.Identity, error)
}

type authServiceImpl struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewAuthService signs caller tokens with HS256. The token subject is the caller identity.
func NewAuthService(secretKey string, ttl time.Duration) (AuthService, error) {
	if secretKey == "" {
		return nil, ErrEmptySecret
	}

	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	return &authServiceImpl{
		secretKey: []byte(secretKey),
		ttl:       ttl,
		now:       time.Now,
	}, nil
}

func (that *authServiceImpl) GenerateToken(id entity.Identity) (string, error) {
	if err := id.Validate(); err != nil {
		return "", err
	}

	now := that.now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   string(id),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(that.ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(that.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ParseToken verifies token and returns the identity it was issued to.
func (that *authServiceImpl) ParseToken(token string) (entity.Identity, error) {
	claims := &jwt.RegisteredClaims{}

	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return that.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(that.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperror.ErrUnauthorized, err)
	}

	id := entity.Identity(claims.Subject)
	if err = id.Validate(); err != nil {
		return "", fmt.Errorf("%w: token has no subject", apperror.ErrUnauthorized)
	}

	return id, nil
}
