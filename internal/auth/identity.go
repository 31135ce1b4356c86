package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"econglobe.io/explorer/internal/store"
)

var (
	ErrInvalidCredentials = errors.New(MsgInvalidLogin)
	ErrEmailInUse         = errors.New(MsgEmailInUse)
)

// UserStore is the slice of the store the identity service needs.
type UserStore interface {
	CreateUser(ctx context.Context, email, displayName, passwordHash string) (*store.User, error)
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)
	GetUserByID(ctx context.Context, id string) (*store.User, error)
	UpdateDisplayName(ctx context.Context, userID, displayName string) error
}

// Session is a signed-in user and the bearer token proving it.
type Session struct {
	User      *store.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

type Service struct {
	users   UserStore
	tokens  *TokenIssuer
	revoker Revoker
	logger  *zap.Logger
}

func NewService(users UserStore, tokens *TokenIssuer, revoker Revoker, logger *zap.Logger) *Service {
	if revoker == nil {
		revoker = NewMemoryRevoker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: users, tokens: tokens, revoker: revoker, logger: logger}
}

// SignUp validates the form before touching the store. The first name
// becomes the display name.
func (s *Service) SignUp(ctx context.Context, form RegisterForm) (*Session, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}
	email := normalizeEmail(form.Email)

	hash, err := HashPassword(form.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.users.CreateUser(ctx, email, strings.TrimSpace(form.FirstName), hash)
	if errors.Is(err, store.ErrDuplicateEmail) {
		return nil, ErrEmailInUse
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return s.issue(user)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if err := (LoginForm{Email: email, Password: password}).Validate(); err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil || !CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(user)
}

// SignOut revokes the token until it would have expired. Unparseable tokens
// are ignored; there is nothing to revoke.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := s.tokens.parseAllowExpired(token)
	if err != nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	if err := s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return err
	}
	s.logger.Info("user signed out", zap.String("user_id", claims.Subject))
	return nil
}

// Authenticate resolves a bearer token to its user. Revoked, expired, or
// orphaned tokens yield ErrInvalidToken.
func (s *Service) Authenticate(ctx context.Context, token string) (*store.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, fmt.Errorf("%w: revoked", ErrInvalidToken)
	}
	user, err := s.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: unknown subject", ErrInvalidToken)
	}
	return user, nil
}

func (s *Service) UpdateDisplayName(ctx context.Context, userID, name string) (*store.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Fields: map[string]string{"displayName": "Display name is required."}}
	}
	if err := s.users.UpdateDisplayName(ctx, userID, name); err != nil {
		return nil, fmt.Errorf("update display name: %w", err)
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func (s *Service) issue(user *store.User) (*Session, error) {
	token, claims, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
