package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/david/feedback-triage/internal/logger"
)

const tokenTTL = 24 * time.Hour

var (
	ErrUserExists   = errors.New("user already exists")
	ErrInvalidCreds = errors.New("invalid credentials")
)

// Tokens issues and verifies HS256 bearer tokens.
type Tokens struct {
	secret []byte
	now    func() time.Time
}

// NewTokens uses secret, or a random per-process secret when it is blank.
// Tokens signed with an ephemeral secret do not survive a restart.
func NewTokens(secret string, log *logger.Logger) (*Tokens, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to generate JWT fallback secret: %w", err)
		}
		secret = base64.RawURLEncoding.EncodeToString(buf)
		log.Warn("JWT_SECRET is not set; using ephemeral in-memory fallback secret")
	}
	return &Tokens{secret: []byte(secret), now: time.Now}, nil
}

func (t *Tokens) Issue(userID uuid.UUID) (string, error) {
	now := t.now()
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"iat": now.Unix(),
		"exp": now.Add(tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify returns the user id carried by a valid token.
func (t *Tokens) Verify(tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return uuid.Nil, errors.New("invalid or expired token")
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, errors.New("invalid token subject")
	}
	return uuid.Parse(sub)
}

type Service struct {
	db     *pgxpool.Pool
	tokens *Tokens
}

func NewService(db *pgxpool.Pool, tokens *Tokens) *Service {
	return &Service{db: db, tokens: tokens}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	email := normalizeEmail(req.Email)

	var exists bool
	err := s.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)", email).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing failed: %w", err)
	}

	var user User
	err = s.db.QueryRow(ctx, `
		INSERT INTO users (email, password_hash)
		VALUES ($1, $2)
		RETURNING id, email, created_at
	`, email, string(hash)).Scan(&user.ID, &user.Email, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert failed: %w", err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{Token: token, User: user}, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var user User
	err := s.db.QueryRow(ctx, "SELECT id, email, password_hash, created_at FROM users WHERE email = $1", normalizeEmail(req.Email)).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidCreds
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCreds
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	return &AuthResponse{Token: token, User: user}, nil
}
