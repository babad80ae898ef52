package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/txgate/txgate/internal/observability"
	"github.com/txgate/txgate/internal/rbac"
	"github.com/txgate/txgate/internal/shared"
)

// Caller-facing authentication failures.
var (
	ErrUserNotFound      = shared.NewError(shared.ErrUnauthorized, "User not found. Please check your email address.")
	ErrIncorrectPassword = shared.NewError(shared.ErrUnauthorized, "Incorrect password. Please try again.")
	ErrEmailTaken        = shared.NewError(shared.ErrConflict, "An account with this email already exists. Please try logging in instead.")
	ErrUnknownSubject    = shared.NewError(shared.ErrUnauthorized, "User not found")
)

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	hasher   PasswordHasher
	tokens   *TokenIssuer
	resolver rbac.Resolver
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewService constructs a new Service.
func NewService(repo Repository, hasher PasswordHasher, tokens *TokenIssuer, resolver rbac.Resolver, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, hasher: hasher, tokens: tokens, resolver: resolver, logger: logger, metrics: metrics}
}

// Login validates credentials and issues a token. An unknown email fails
// before any password comparison.
func (s *Service) Login(ctx context.Context, email, password string) (AuthResult, error) {
	user, err := s.repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.metrics.AuthAttempt("login", observability.OutcomeUnknownEmail)
			return AuthResult{}, ErrUserNotFound
		}
		return AuthResult{}, fmt.Errorf("auth: find user: %w", err)
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		s.metrics.AuthAttempt("login", observability.OutcomeBadPassword)
		return AuthResult{}, ErrIncorrectPassword
	}

	perms, err := s.resolver.EffectivePermissions(ctx, user.ID)
	if err != nil {
		return AuthResult{}, err
	}
	result, err := s.result(user, perms.Sorted())
	if err != nil {
		return AuthResult{}, err
	}
	s.metrics.AuthAttempt("login", observability.OutcomeSuccess)
	s.logger.Info("user logged in", slog.String("user_id", user.ID.String()))
	return result, nil
}

// Register creates an account. A taken email fails with a conflict and writes nothing.
func (s *Service) Register(ctx context.Context, email, password string) (AuthResult, error) {
	email = NormalizeEmail(email)
	_, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		s.metrics.AuthAttempt("register", observability.OutcomeConflict)
		return AuthResult{}, ErrEmailTaken
	case !errors.Is(err, shared.ErrNotFound):
		return AuthResult{}, fmt.Errorf("auth: find user: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("auth: hash password: %w", err)
	}
	user, err := s.repo.Create(ctx, email, hash)
	if err != nil {
		if errors.Is(err, shared.ErrConflict) {
			s.metrics.AuthAttempt("register", observability.OutcomeConflict)
			return AuthResult{}, ErrEmailTaken
		}
		return AuthResult{}, fmt.Errorf("auth: create user: %w", err)
	}

	result, err := s.result(user, []string{})
	if err != nil {
		return AuthResult{}, err
	}
	s.metrics.AuthAttempt("register", observability.OutcomeSuccess)
	s.logger.Info("user registered", slog.String("user_id", user.ID.String()))
	return result, nil
}

// Me returns the summary of the user named by a token subject.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (UserSummary, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return UserSummary{}, ErrUnknownSubject
		}
		return UserSummary{}, fmt.Errorf("auth: find user: %w", err)
	}
	perms, err := s.resolver.EffectivePermissions(ctx, user.ID)
	if err != nil {
		return UserSummary{}, err
	}
	return UserSummary{ID: user.ID, Email: user.Email, Permissions: perms.Sorted()}, nil
}

// Authenticate verifies a bearer token.
func (s *Service) Authenticate(raw string) (shared.Principal, error) {
	return s.tokens.Parse(raw)
}

func (s *Service) result(user *User, perms []string) (AuthResult, error) {
	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return AuthResult{}, fmt.Errorf("auth: issue token: %w", err)
	}
	return AuthResult{
		AccessToken: token,
		User:        UserSummary{ID: user.ID, Email: user.Email, Permissions: perms},
	}, nil
}
