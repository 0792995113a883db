package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rohits-web03/peerlink/internal/models"
	"github.com/rohits-web03/peerlink/internal/repositories"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	SessionTTL = 24 * time.Hour

	maxUsernameLength = 64
	minPasswordLength = 6
)

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByGoogleSub(ctx context.Context, sub string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Claims are carried in the session cookie.
type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// UserService covers signup, password and Google login, and session tokens.
type UserService struct {
	users  UserStore
	secret []byte
	now    func() time.Time
}

func NewUserService(users UserStore, jwtSecret string) *UserService {
	return &UserService{users: users, secret: []byte(jwtSecret), now: time.Now}
}

func (s *UserService) Signup(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(username) > maxUsernameLength {
		return nil, fmt.Errorf("%w: username must be 1-%d characters", ErrInvalidInput, maxUsernameLength)
	}
	// Google accounts are named after their email address.
	if strings.Contains(username, "@") {
		return nil, fmt.Errorf("%w: username may not contain @", ErrInvalidInput)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{Username: username, PasswordHash: string(hash), Role: models.RoleFree}
	if err := s.create(ctx, u); err != nil {
		return nil, err
	}
	log.Info().Str("user", username).Msg("user registered")
	return u, nil
}

func (s *UserService) create(ctx context.Context, u *models.User) error {
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return fmt.Errorf("%w: username %q is already taken", ErrConflict, u.Username)
		}
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return nil
}

// Login checks the password and issues a session token.
func (s *UserService) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", time.Time{}, ErrInvalidCredentials
		}
		return "", time.Time{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	// Google-only accounts have no password hash.
	if u.PasswordHash == "" {
		return "", time.Time{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return s.IssueToken(u)
}

// GoogleIdentity is the verified subject and email returned by Google.
type GoogleIdentity struct {
	Subject string
	Email   string
}

// LoginWithGoogle signs in the account bound to the Google subject, creating it
// on first use under the email as username. It never takes over an account that
// was not created by Google sign-in: a taken username is ErrConflict.
func (s *UserService) LoginWithGoogle(ctx context.Context, id GoogleIdentity) (string, time.Time, error) {
	if id.Subject == "" || id.Email == "" {
		return "", time.Time{}, fmt.Errorf("%w: google account has no subject or email", ErrInvalidInput)
	}
	u, err := s.users.FindByGoogleSub(ctx, id.Subject)
	switch {
	case err == nil:
	case errors.Is(err, repositories.ErrNotFound):
		sub := id.Subject
		u = &models.User{Username: id.Email, GoogleSub: &sub, Role: models.RoleFree}
		if err := s.create(ctx, u); err != nil {
			return "", time.Time{}, err
		}
		log.Info().Str("user", id.Email).Msg("user registered via google")
	default:
		return "", time.Time{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return s.IssueToken(u)
}

func (s *UserService) IssueToken(u *models.User) (string, time.Time, error) {
	now := s.now()
	expiration := now.Add(SessionTTL)
	claims := &Claims{
		UserID:   u.ID.String(),
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expiration, nil
}

// Authenticate resolves a session token into a principal. The user is re-read so
// role changes and deleted accounts take effect before the token expires.
func (s *UserService) Authenticate(ctx context.Context, tokenStr string) (*Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrUnauthenticated
	}

	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	return &Principal{UserID: u.ID, Username: u.Username, Role: u.Role}, nil
}
