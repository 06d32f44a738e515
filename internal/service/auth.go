package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/msomdec/gymtrack/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// AdminSubject is the subject claim of every token this server issues.
const AdminSubject = "admin"

// DefaultTokenTTL is how long an issued token stays valid.
const DefaultTokenTTL = 7 * 24 * time.Hour

// AuthService checks the admin password and issues JWT bearer tokens.
type AuthService struct {
	passwordHash []byte
	jwtSecret    []byte
	ttl          time.Duration
}

// NewAuthService creates a new AuthService for a single admin whose bcrypt
// password hash is passwordHash.
func NewAuthService(passwordHash, jwtSecret string) *AuthService {
	return &AuthService{
		passwordHash: []byte(passwordHash),
		jwtSecret:    []byte(jwtSecret),
		ttl:          DefaultTokenTTL,
	}
}

// HashPassword returns the bcrypt hash to configure as ADMIN_PASSWORD_HASH.
func HashPassword(password string, cost int) (string, error) {
	if len(password) < 8 {
		return "", fmt.Errorf("%w: password must be at least 8 characters", domain.ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Login verifies the admin password and returns a signed token and its
// lifetime.
func (s *AuthService) Login(password string) (string, time.Duration, error) {
	if password == "" {
		return "", 0, fmt.Errorf("%w: password is required", domain.ErrInvalidInput)
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		return "", 0, domain.ErrUnauthorized
	}

	token, err := s.generateJWT()
	if err != nil {
		return "", 0, fmt.Errorf("generate jwt: %w", err)
	}
	return token, s.ttl, nil
}

// ValidateToken parses and validates a JWT token string and returns its
// subject.
func (s *AuthService) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", domain.ErrUnauthorized
	}

	sub, err := claims.GetSubject()
	if err != nil || sub != AdminSubject {
		return "", domain.ErrUnauthorized
	}
	return sub, nil
}

func (s *AuthService) generateJWT() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   AdminSubject,
		"admin": true,
		"iat":   now.Unix(),
		"exp":   now.Add(s.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
