package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Config holds token settings. Zero durations fall back to defaults.
type Config struct {
	Secret              string
	RefreshSecret       string
	AccessTokenMinutes  int
	RefreshTokenDays    int
	RememberRefreshDays int
	CookieSecure        bool
}

// Manager issues and validates access/refresh tokens.
type Manager struct {
	jwtSecret           []byte
	refreshSecret       []byte
	accessTokenMinutes  int
	refreshTokenDays    int
	rememberRefreshDays int
	CookieSecure        bool
}

func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("JWT secret must be at least 32 characters long")
	}
	refresh := cfg.RefreshSecret
	if refresh == "" {
		refresh = cfg.Secret + "-refresh"
	}
	m := &Manager{
		jwtSecret:           []byte(cfg.Secret),
		refreshSecret:       []byte(refresh),
		accessTokenMinutes:  15,
		refreshTokenDays:    7,
		rememberRefreshDays: 30,
		CookieSecure:        cfg.CookieSecure,
	}
	if cfg.AccessTokenMinutes > 0 {
		m.accessTokenMinutes = cfg.AccessTokenMinutes
	}
	if cfg.RefreshTokenDays > 0 {
		m.refreshTokenDays = cfg.RefreshTokenDays
	}
	if cfg.RememberRefreshDays > 0 {
		m.rememberRefreshDays = cfg.RememberRefreshDays
	}
	return m, nil
}

type Claims struct {
	UserID    int    `json:"user_id"`
	Username  string `json:"username"`
	TokenType string `json:"token_type,omitempty"` // "access" or "refresh"
	jwt.RegisteredClaims
}

func (m *Manager) sign(userID int, username, tokenType string, ttl time.Duration, secret []byte) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    userID,
		Username:  username,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// GenerateToken creates a short-lived access token
func (m *Manager) GenerateToken(userID int, username string) (string, error) {
	return m.sign(userID, username, tokenTypeAccess, time.Duration(m.accessTokenMinutes)*time.Minute, m.jwtSecret)
}

// GenerateRefreshToken creates a refresh token that expires after the given number of days
func (m *Manager) GenerateRefreshToken(userID int, username string, days int) (string, error) {
	if days <= 0 {
		days = m.refreshTokenDays
	}
	return m.sign(userID, username, tokenTypeRefresh, time.Duration(days)*24*time.Hour, m.refreshSecret)
}

func (m *Manager) parse(tokenString, tokenType string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		if claims.TokenType != tokenType {
			return nil, errors.New("invalid token type")
		}
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	return m.parse(tokenString, tokenTypeAccess, m.jwtSecret)
}

// ValidateRefreshToken validates a refresh token
func (m *Manager) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return m.parse(tokenString, tokenTypeRefresh, m.refreshSecret)
}

// RefreshDays returns configured refresh token TTL in days depending on remember flag
func (m *Manager) RefreshDays(remember bool) int {
	if remember {
		return m.rememberRefreshDays
	}
	return m.refreshTokenDays
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

func CheckPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// VerificationTTL is how long an emailed verification code stays valid.
const VerificationTTL = 24 * time.Hour

// GenerateVerificationCode returns a random 6-digit code.
func GenerateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
