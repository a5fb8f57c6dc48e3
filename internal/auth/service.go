// internal/auth/service.go
package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Service registers members and issues bearer tokens.
type Service struct {
	db       *sqlx.DB
	secret   []byte
	tokenTTL time.Duration
}

// NewService creates an auth service. secret signs HS256 tokens.
func NewService(db *sqlx.DB, secret string, tokenTTL time.Duration) *Service {
	return &Service{db: db, secret: []byte(secret), tokenTTL: tokenTTL}
}

// Register creates a member with a hashed password.
func (s *Service) Register(ctx context.Context, email, name, password string) (*Member, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	member := &Member{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO members (id, email, name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO NOTHING
	`, member.ID, member.Email, member.Name, member.PasswordHash, member.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}

	// ON CONFLICT swallows the duplicate; confirm the row is ours.
	var storedID uuid.UUID
	if err := s.db.GetContext(ctx, &storedID, `SELECT id FROM members WHERE email = $1`, email); err != nil {
		return nil, fmt.Errorf("read back member: %w", err)
	}
	if storedID != member.ID {
		return nil, ErrEmailTaken
	}

	return member, nil
}

// Login verifies credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	member := &Member{}
	err := s.db.GetContext(ctx, member, `
		SELECT id, email, name, password_hash, created_at
		FROM members WHERE email = $1
	`, email)
	if err == sql.ErrNoRows {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("load member: %w", err)
	}

	ok, err := verifyPassword(password, member.PasswordHash)
	if err != nil {
		return "", fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return "", ErrInvalidCredentials
	}

	return s.issueToken(member.Email)
}

func (s *Service) issueToken(subject string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates a bearer token and returns its subject.
func (s *Service) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
