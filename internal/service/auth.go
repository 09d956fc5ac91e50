// AuthService is the business logic layer for authentication:
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                              ↘ TokenService (JWT), PasswordService (bcrypt)
//
// It answers two questions for the rest of the app: "who is this?" (login,
// token validation) and "which staff accounts exist?" (EnsureStaff, run at
// start-up from configuration).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/greeting-cards/internal/apperror"
	"github.com/sakif/greeting-cards/internal/auth"
	"github.com/sakif/greeting-cards/internal/model"
	"github.com/sakif/greeting-cards/internal/repository"
)

// errBadCredentials is deliberately the same for an unknown username and a
// wrong password, so the login form cannot be used to discover accounts.
var errBadCredentials = apperror.Unauthorized("invalid username or password")

// AuthService handles the authentication business logic.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued JWT so the handler can
// set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// Login checks a staff username and password and issues a token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperror.ValidationFailed("username", "username and password are required")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn("login for unknown user", slog.String("username", username))
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("service/auth: looking up %s: %w", username, err)
	}

	// GitHub members have no password hash; Verify fails for them too.
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		s.logger.Warn("login failed", slog.String("username", username))
		return nil, errBadCredentials
	}

	return s.issue(user, "password")
}

// LoginOrRegisterGitHub handles the GitHub OAuth callback: it upserts the
// member keyed by GitHub ID and issues a token.
//
// A GitHub sign-in never grants a role. New accounts start as members and
// existing ones keep whatever role they already have.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user := ghUser.ToUser()
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", ghUser.ID, err)
	}

	return s.issue(user, "github")
}

// EnsureStaff creates or refreshes a password account with the given role.
// cmd/server calls it at start-up for the reviewer and admin configured in
// the environment.
func (s *AuthService) EnsureStaff(ctx context.Context, username, password string, role model.Role) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperror.ValidationFailed("username", "staff username is required")
	}
	if role != model.RoleReviewer && role != model.RoleAdmin {
		return nil, apperror.ValidationFailed("role", fmt.Sprintf("staff role must be reviewer or admin, got %q", role))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{Username: username, Role: role, PasswordHash: hash}
	if err := s.users.UpsertStaff(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: saving staff user %s: %w", username, err)
	}

	s.logger.Info("staff account ready",
		slog.String("username", username),
		slog.String("role", string(role)),
	)
	return user, nil
}

// GetUserByID returns the user for the given internal ID.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user id is required")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}

// ValidateToken validates a JWT string and returns the actor it encodes.
func (s *AuthService) ValidateToken(tokenStr string) (model.Actor, error) {
	actor, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return model.Actor{}, apperror.Unauthorized(err.Error())
	}
	return actor, nil
}

func (s *AuthService) issue(user *model.User, method string) (*AuthResult, error) {
	token, err := s.tokens.Generate(user)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user authenticated",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
		slog.String("role", string(user.Role)),
		slog.String("method", method),
	)
	return &AuthResult{User: user, Token: token}, nil
}
