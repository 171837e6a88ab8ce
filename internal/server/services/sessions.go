// Package services contains server-side business logic: the session
// lifecycle (signup, login, token refresh, logout, password reset and request
// authentication) and the per-user product catalog.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/dbx"
	"github.com/dmitrijs2005/gophstore/internal/logging"
	"github.com/dmitrijs2005/gophstore/internal/server/auth"
	"github.com/dmitrijs2005/gophstore/internal/server/models"
	"github.com/dmitrijs2005/gophstore/internal/server/notify"
	"github.com/dmitrijs2005/gophstore/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophstore/internal/server/repositories/users"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthResult is returned by signup and login.
type AuthResult struct {
	User         *models.User
	AccessToken  string
	RefreshToken string
}

type SignupInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

func (in *SignupInput) normalize() {
	in.Email = users.NormalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
}

func (in *SignupInput) validate() error {
	return errors.Join(
		validateEmail(in.Email),
		validatePassword("password", in.Password),
		validateName("firstName", in.FirstName),
		validateName("lastName", in.LastName),
	)
}

// SessionService coordinates the credential store, the token signer and the
// two token ledgers.
type SessionService struct {
	repos    repomanager.RepositoryManager
	signer   *auth.Signer
	hasher   PasswordHasher
	refresh  *RefreshLedger
	reset    *ResetLedger
	notifier notify.ResetNotifier
	log      logging.Logger

	authBypassUserID int64
}

func NewSessionService(
	m repomanager.RepositoryManager,
	signer *auth.Signer,
	hasher PasswordHasher,
	refresh *RefreshLedger,
	reset *ResetLedger,
	notifier notify.ResetNotifier,
	log logging.Logger,
) *SessionService {
	return &SessionService{
		repos:    m,
		signer:   signer,
		hasher:   hasher,
		refresh:  refresh,
		reset:    reset,
		notifier: notifier,
		log:      log.With("module", "sessions"),
	}
}

// EnableTestingAuthBypass makes Authenticate skip token checks and resolve
// every request to userID. For local testing only; never enable in production.
func (s *SessionService) EnableTestingAuthBypass(userID int64) {
	s.authBypassUserID = userID
}

// Signup creates the account and opens its first session. The user row and
// its refresh token are written in one transaction.
func (s *SessionService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	_, err := s.repos.Users(s.repos.Conn()).FindByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, common.ErrorAlreadyExists
	case !errors.Is(err, common.ErrorNotFound):
		s.log.Error(ctx, "signup lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.log.Error(ctx, "password hashing failed", "error", err)
		return nil, common.ErrorInternal
	}

	user := &models.User{Email: in.Email, PasswordHash: hash, FirstName: in.FirstName, LastName: in.LastName}
	var refreshToken string

	err = s.repos.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repos.Users(tx).Create(ctx, user); err != nil {
			return err
		}
		var err error
		refreshToken, err = s.refresh.Issue(ctx, tx, user.ID)
		return err
	})
	if errors.Is(err, common.ErrorAlreadyExists) {
		return nil, common.ErrorAlreadyExists
	}
	if err != nil {
		s.log.Error(ctx, "signup failed", "error", err)
		return nil, common.ErrorInternal
	}

	access, err := s.signer.IssueAccessToken(user.ID)
	if err != nil {
		s.log.Error(ctx, "access token signing failed", "user_id", user.ID, "error", err)
		return nil, common.ErrorInternal
	}

	s.log.Info(ctx, "user signed up", "user_id", user.ID)
	return &AuthResult{User: user, AccessToken: access, RefreshToken: refreshToken}, nil
}

// Login verifies credentials. An unknown email and a wrong password produce
// the same common.ErrorUnauthorized.
func (s *SessionService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = users.NormalizeEmail(email)

	user, err := s.repos.Users(s.repos.Conn()).FindByEmail(ctx, email)
	if errors.Is(err, common.ErrorNotFound) {
		s.hasher.CompareDummy(password)
		s.log.Info(ctx, "login rejected", "reason", "unknown email")
		return nil, common.ErrorUnauthorized
	}
	if err != nil {
		s.log.Error(ctx, "login lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		s.log.Info(ctx, "login rejected", "user_id", user.ID, "reason", err)
		return nil, common.ErrorUnauthorized
	}

	pair, err := s.issuePair(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// Refresh rotates refreshToken and returns a new pair. The presented token
// cannot be used again.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, newRefresh, err := s.refresh.Rotate(ctx, refreshToken)
	if errors.Is(err, common.ErrInvalidRefreshToken) {
		return nil, common.ErrorUnauthorized
	}
	if err != nil {
		return nil, err
	}

	access, err := s.signer.IssueAccessToken(userID)
	if err != nil {
		s.log.Error(ctx, "access token signing failed", "user_id", userID, "error", err)
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: newRefresh}, nil
}

// Logout revokes refreshToken if it belongs to userID. It always succeeds;
// failures are only logged.
func (s *SessionService) Logout(ctx context.Context, userID int64, refreshToken string) error {
	if err := s.refresh.Revoke(ctx, userID, refreshToken); err != nil {
		s.log.Error(ctx, "logout failed", "error", err)
	}
	return nil
}

// RequestPasswordReset issues a reset token for email and hands it to the
// notifier. It always succeeds so callers cannot probe which emails exist.
func (s *SessionService) RequestPasswordReset(ctx context.Context, email string) error {
	email = users.NormalizeEmail(email)

	user, err := s.repos.Users(s.repos.Conn()).FindByEmail(ctx, email)
	if errors.Is(err, common.ErrorNotFound) {
		s.log.Info(ctx, "password reset for unknown email ignored")
		return nil
	}
	if err != nil {
		s.log.Error(ctx, "password reset lookup failed", "error", err)
		return nil
	}

	token, expiresAt, err := s.reset.Issue(ctx, user.ID)
	if err != nil {
		s.log.Error(ctx, "issuing reset token failed", "user_id", user.ID, "error", err)
		return nil
	}

	notice := notify.ResetNotice{UserID: user.ID, Email: user.Email, Token: token, ExpiresAt: expiresAt}
	if err := s.notifier.NotifyPasswordReset(ctx, notice); err != nil {
		s.log.Error(ctx, "reset notification failed", "user_id", user.ID, "error", err)
	}
	return nil
}

// ValidateResetToken reports whether token is currently usable.
func (s *SessionService) ValidateResetToken(ctx context.Context, token string) (ResetCheck, error) {
	check, err := s.reset.Validate(ctx, token)
	if err != nil {
		s.log.Error(ctx, "reset token validation failed", "error", err)
		return ResetCheck{}, common.ErrorInternal
	}
	return check, nil
}

// ConfirmPasswordReset consumes token and sets newPassword in one
// transaction, then ends every open session of the user. An unusable token
// yields *ResetTokenError.
func (s *SessionService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if err := validatePassword("newPassword", newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		s.log.Error(ctx, "password hashing failed", "error", err)
		return common.ErrorInternal
	}

	var (
		userID int64
		check  ResetCheck
	)
	err = s.repos.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		userID, check, err = s.reset.Consume(ctx, tx, token)
		if err != nil || !check.Valid {
			// an invalid check commits, so an expired row is still removed
			return err
		}
		err = s.repos.Users(tx).UpdatePasswordHash(ctx, userID, hash)
		if errors.Is(err, common.ErrorNotFound) {
			check = rejected(ReasonUnknownToken)
			return nil
		}
		return err
	})
	if err != nil {
		s.log.Error(ctx, "password reset confirmation failed", "error", err)
		return common.ErrorInternal
	}
	if !check.Valid {
		s.log.Info(ctx, "password reset rejected", "reason", string(check.Reason))
		return &ResetTokenError{Reason: check.Reason}
	}

	if n, err := s.refresh.RevokeAll(ctx, userID); err != nil {
		s.log.Error(ctx, "revoking sessions after reset failed", "user_id", userID, "error", err)
	} else {
		s.log.Info(ctx, "password reset", "user_id", userID, "revoked_sessions", n)
	}
	return nil
}

// Authenticate resolves the user behind an Authorization header value of the
// form "Bearer <token>". Every failure, including a user that no longer
// exists, is reported as common.ErrorUnauthorized.
func (s *SessionService) Authenticate(ctx context.Context, header string) (*models.User, error) {
	if s.authBypassUserID > 0 {
		return s.loadUser(ctx, s.authBypassUserID)
	}

	token, ok := bearerToken(header)
	if !ok {
		return nil, common.ErrorUnauthorized
	}

	userID, err := s.signer.VerifyAccessToken(token)
	if err != nil {
		s.log.Debug(ctx, "access token rejected", "reason", err)
		return nil, common.ErrorUnauthorized
	}

	return s.loadUser(ctx, userID)
}

// Me returns the profile of userID.
func (s *SessionService) Me(ctx context.Context, userID int64) (*models.User, error) {
	return s.loadUser(ctx, userID)
}

func (s *SessionService) loadUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.repos.Users(s.repos.Conn()).FindByID(ctx, userID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrorUnauthorized
	}
	if err != nil {
		s.log.Error(ctx, "user lookup failed", "user_id", userID, "error", err)
		return nil, common.ErrorInternal
	}
	return user, nil
}

func (s *SessionService) issuePair(ctx context.Context, userID int64) (*TokenPair, error) {
	access, err := s.signer.IssueAccessToken(userID)
	if err != nil {
		s.log.Error(ctx, "access token signing failed", "user_id", userID, "error", err)
		return nil, common.ErrorInternal
	}
	refresh, err := s.refresh.Issue(ctx, s.repos.Conn(), userID)
	if err != nil {
		s.log.Error(ctx, "refresh token issue failed", "user_id", userID, "error", err)
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// bearerToken extracts the token from "Bearer <token>"; the scheme is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, common.AuthorizationScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}
