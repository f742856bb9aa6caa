// Package auth implements password-based admin authentication with
// short-lived bearer tokens.
//
// There is a single administrator identity. Its bcrypt password hash lives
// in the relational store; the newest credential row is authoritative, so a
// password change is an append rather than an update.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/repodash/repodash/internal/model"
	"github.com/repodash/repodash/pkg/logger"
)

// ErrUnauthorized indicates a failed credential or token check.
var ErrUnauthorized = errors.New("unauthorized")

// ErrNoCredential indicates no admin password has ever been configured.
var ErrNoCredential = errors.New("no admin credential configured")

const tokenTTL = 12 * time.Hour

// Claims holds the admin session token claims.
type Claims struct {
	Admin bool `json:"admin"`
	jwt.RegisteredClaims
}

// Service verifies the admin password and issues and validates session tokens.
type Service struct {
	db     *gorm.DB
	secret []byte
	log    logger.Logger
}

// NewService creates an auth Service. jwtSecret must be non-empty.
func NewService(db *gorm.DB, jwtSecret string, log logger.Logger) (*Service, error) {
	if jwtSecret == "" {
		return nil, fmt.Errorf("jwt secret must not be empty")
	}
	if log == nil {
		log = logger.NewNoop()
	}
	return &Service{db: db, secret: []byte(jwtSecret), log: log}, nil
}

// EnsureCredential seeds the admin credential from initialPassword when no
// credential exists yet. A no-op when one is already stored or when
// initialPassword is empty.
func (s *Service) EnsureCredential(initialPassword string) error {
	var count int64
	if err := s.db.Model(&model.AdminCredential{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count admin credentials: %w", err)
	}
	if count > 0 || initialPassword == "" {
		return nil
	}
	s.log.Warn("no admin credential found, seeding from environment")
	return s.SetPassword(initialPassword)
}

// SetPassword stores a new admin password. The previous credential rows are
// kept; only the newest one is checked at login.
func (s *Service) SetPassword(password string) error {
	if password == "" {
		return fmt.Errorf("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	cred := model.AdminCredential{PasswordHash: string(hash)}
	if err := s.db.Create(&cred).Error; err != nil {
		return fmt.Errorf("store admin credential: %w", err)
	}
	s.log.Info("admin password updated")
	return nil
}

// Login verifies the password against the stored credential and returns a
// signed session token.
func (s *Service) Login(password string) (string, error) {
	var cred model.AdminCredential
	err := s.db.Order("id DESC").First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("load admin credential: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return "", ErrUnauthorized
	}

	now := time.Now()
	claims := &Claims{
		Admin: true,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "repodash",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken checks the token's signature and expiry.
func (s *Service) ValidateToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid || !claims.Admin {
		return nil, ErrUnauthorized
	}
	return claims, nil
}
