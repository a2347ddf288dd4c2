package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"purescan-service/models"
)

// ErrInvalidCredentials is returned on a failed login attempt.
var ErrInvalidCredentials = errors.New("invalid email or password")

// AuthService handles account creation, login and JWT validation on top of
// the user profile store.
type AuthService struct {
	db        *Database
	jwtSecret []byte
	expiry    time.Duration
}

// NewAuthService creates a new authentication service instance
func NewAuthService(db *Database, jwtSecret string, expiry time.Duration) *AuthService {
	return &AuthService{
		db:        db,
		jwtSecret: []byte(jwtSecret),
		expiry:    expiry,
	}
}

// Register creates a new account with a default FREE profile.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest, freeScans int) (models.User, error) {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:        uuid.New().String(),
		Email:     req.Email,
		Name:      req.Name,
		Plan:      models.PlanFree,
		ScansLeft: freeScans,
		Allergies: []string{},
		Settings: models.UserSettings{
			Notifications: true,
			DarkMode:      true,
		},
	}

	if err := s.db.CreateUser(ctx, user, string(passwordHash)); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// Login verifies the credentials and returns the stored profile with a
// signed session token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (models.User, string, error) {
	user, passwordHash, err := s.db.GetUserByEmail(ctx, req.Email)
	if err == ErrUserNotFound {
		return models.User{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)); err != nil {
		return models.User{}, "", ErrInvalidCredentials
	}

	token, err := s.GenerateToken(user.ID)
	if err != nil {
		return models.User{}, "", err
	}
	return user, token, nil
}

// GenerateToken creates a signed JWT for the user id.
func (s *AuthService) GenerateToken(userID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(s.expiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies the signature and expiry and returns the user id.
func (s *AuthService) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("token missing subject")
	}
	return sub, nil
}
