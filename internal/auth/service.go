// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursebook Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/coursebook/coursebook/pkg/errutil"
)

var tracer = otel.Tracer("coursebook/auth")

// dummyPasswordHash is verified against when the email is unknown so that a
// miss costs the same as a wrong password. It matches no password.
//
//nolint:gosec // G101: intentionally fake hash, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// RegisterInput is the data needed to create an account.
type RegisterInput struct {
	Email       string
	DisplayName string
	Password    string
	// Role is the requested role; empty means student.
	Role string
}

// LoginInput is the data needed to start a session.
type LoginInput struct {
	Email    string
	Password string
	Remember bool
	Client   ClientInfo
}

// LoginResult is a successful login.
type LoginResult struct {
	User    *User
	Session *Session
	// Token is the plaintext session token for the client. It is not stored.
	Token string
}

// Service coordinates registration, login and session lookup.
type Service struct {
	users    UserRepository
	sessions *SessionManager
	hasher   PasswordHasher
	logger   *slog.Logger
}

// NewService creates a Service. If logger is nil, slog.Default() is used.
func NewService(users UserRepository, sessions *SessionManager, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("session manager is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("password hasher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, sessions: sessions, hasher: hasher, logger: logger}, nil
}

// Sessions returns the session manager.
func (s *Service) Sessions() *SessionManager {
	return s.sessions
}

// Register creates a new account. The email must not already be registered.
// A tutor role is granted when requested; there is no approval step.
func (s *Service) Register(ctx context.Context, in RegisterInput) (user *User, err error) {
	ctx, span := tracer.Start(ctx, "auth.register",
		trace.WithAttributes(attribute.String("user.requested_role", in.Role)))
	defer func() { finishSpan(span, err) }()

	email := NormalizeEmail(in.Email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	name := CapitalizeName(in.DisplayName)
	if err := ValidateDisplayName(name); err != nil {
		return nil, err
	}
	role, err := ParseRole(in.Role)
	if err != nil {
		return nil, err
	}

	// Fast path for a friendly error; the unique index is what actually holds.
	_, err = s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, duplicateEmail(email)
	case !errors.Is(err, ErrNotFound):
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err = NewUser(email, name, hash, role)
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, duplicateEmail(email)
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	span.SetAttributes(attribute.String("user.id", user.ID.String()))
	if role == RoleTutor {
		s.logger.InfoContext(ctx, "self-service tutor registration",
			"user_id", user.ID.String())
	}
	return user, nil
}

// finishSpan marks span failed when err is set, then ends it.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func duplicateEmail(email string) error {
	return oops.Code("AUTH_DUPLICATE_EMAIL").
		With("email", email).
		Wrapf(ErrDuplicateEmail, "email already exists")
}

func invalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").Wrapf(ErrInvalidCredentials, "invalid email or password")
}

// Login checks credentials and issues a session.
// An unknown email and a wrong password produce the same error.
func (s *Service) Login(ctx context.Context, in LoginInput) (result *LoginResult, err error) {
	ctx, span := tracer.Start(ctx, "auth.login",
		trace.WithAttributes(attribute.Bool("session.remember", in.Remember)))
	defer func() { finishSpan(span, err) }()

	user, lookupErr := s.users.GetByEmail(ctx, NormalizeEmail(in.Email))

	targetHash := dummyPasswordHash
	userExists := false
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
		userExists = true
	case !errors.Is(lookupErr, ErrNotFound):
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr)
	}

	// Always verify, even for unknown emails, so response time does not reveal
	// whether the account exists.
	valid, verifyErr := s.hasher.Verify(in.Password, targetHash)
	if verifyErr != nil {
		if userExists {
			errutil.LogError(ctx, s.logger, "stored password hash is unreadable",
				oops.With("user_id", user.ID.String()).Wrap(verifyErr))
		}
		return nil, invalidCredentials()
	}
	if !userExists || !valid {
		return nil, invalidCredentials()
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, in.Password)
	}

	session, token, err := s.sessions.Issue(ctx, user.ID, in.Remember, in.Client)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue session").
			Wrap(err)
	}

	span.SetAttributes(
		attribute.String("user.id", user.ID.String()),
		attribute.String("session.id", session.ID.String()),
	)
	return &LoginResult{User: user, Session: session, Token: token}, nil
}

// upgradeHash rewrites a legacy hash. Failures are logged; login proceeds.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		errutil.LogError(ctx, s.logger, "password hash upgrade failed", err)
		return
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, newHash); err != nil {
		errutil.LogError(ctx, s.logger, "password hash upgrade failed", err)
		return
	}
	user.PasswordHash = newHash
	s.logger.InfoContext(ctx, "upgraded password hash", "user_id", user.ID.String())
}

// Logout revokes the session for token. It is safe to call repeatedly.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

// Authenticate resolves a session token to its user.
// A session whose user no longer exists is treated as no session.
func (s *Service) Authenticate(ctx context.Context, token string) (user *User, session *Session, err error) {
	ctx, span := tracer.Start(ctx, "auth.authenticate")
	defer func() { finishSpan(span, err) }()

	session, err = s.sessions.Validate(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	user, err = s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, oops.Code("SESSION_NOT_FOUND").
				With("session_id", session.ID.String()).
				Wrapf(ErrNoSession, "session user no longer exists")
		}
		return nil, nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session user").
			Wrap(err)
	}
	return user, session, nil
}

// UpdateDisplayName changes a user's display name and returns the updated user.
func (s *Service) UpdateDisplayName(ctx context.Context, id ulid.ULID, name string) (*User, error) {
	name = strings.TrimSpace(name)
	if err := ValidateDisplayName(name); err != nil {
		return nil, err
	}
	if err := s.users.UpdateDisplayName(ctx, id, name); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("USER_NOT_FOUND").With("user_id", id.String()).Wrap(ErrNotFound)
		}
		return nil, oops.Code("USER_UPDATE_FAILED").
			With("operation", "update display name").
			With("user_id", id.String()).
			Wrap(err)
	}
	return s.users.GetByID(ctx, id)
}

// ListUsers returns every registered user.
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, oops.Code("USER_LIST_FAILED").Wrap(err)
	}
	return users, nil
}
