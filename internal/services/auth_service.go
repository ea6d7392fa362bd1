package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-review-catalog/internal/auth"
	"github.com/tbourn/go-review-catalog/internal/authz"
	"github.com/tbourn/go-review-catalog/internal/domain"
	"github.com/tbourn/go-review-catalog/internal/notify"
	"github.com/tbourn/go-review-catalog/internal/repo"
)

const codeSubject = "Your confirmation code"

// AuthService implements the email and one-time code sign-in flow.
//
// Each account holds exactly one live code. RequestCode replaces it and
// Exchange consumes it, so a code can be traded for tokens at most once.
// Concurrent RequestCode calls for one account race and the last write wins.
type AuthService struct {
	DB     *gorm.DB
	Tokens *auth.Issuer
	Mailer notify.Sender
	Logger zerolog.Logger

	// NewCode generates one-time codes. Defaults to a random UUID.
	NewCode func() string
}

func (s *AuthService) tracer() trace.Tracer { return otel.Tracer("services/AuthService") }

func (s *AuthService) newCode() string {
	if s.NewCode != nil {
		return s.NewCode()
	}
	return uuid.NewString()
}

// RequestCode issues a fresh confirmation code for email, creating the
// account on first use, and dispatches it through Mailer. A delivery failure
// is logged and does not fail the request. The code is returned so that
// operator tooling can print it.
func (s *AuthService) RequestCode(ctx context.Context, email string) (string, error) {
	ctx, span := s.tracer().Start(ctx, "RequestCode")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	if err := ValidateEmail(email); err != nil {
		return "", err
	}
	code := s.newCode()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := repo.GetUserByEmail(ctx, tx, email)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return repo.CreateUser(ctx, tx, &domain.User{
				Username:         email,
				Email:            email,
				Role:             domain.RoleUser,
				IsActive:         true,
				ConfirmationCode: code,
			})
		case err != nil:
			return err
		}
		return repo.SetConfirmationCode(ctx, tx, u.ID, code)
	})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			// Username taken by a different account.
			return "", ErrDuplicateUsername
		}
		span.RecordError(err)
		return "", err
	}

	if s.Mailer != nil {
		body := fmt.Sprintf("Your confirmation code: %s", code)
		if err := s.Mailer.Send(ctx, email, codeSubject, body); err != nil {
			s.Logger.Warn().Err(err).Msg("confirmation code delivery failed")
		}
	}
	return code, nil
}

// Exchange trades an email and its live confirmation code for a token pair.
// Unknown or inactive accounts fail with ErrUnknownAccount and a code that
// does not match with ErrInvalidConfirmationCode. The code is consumed on
// success.
func (s *AuthService) Exchange(ctx context.Context, email, code string) (auth.TokenPair, error) {
	ctx, span := s.tracer().Start(ctx, "Exchange")
	defer span.End()

	email = strings.TrimSpace(email)
	if err := ValidateEmail(email); err != nil {
		return auth.TokenPair{}, err
	}
	if strings.TrimSpace(code) == "" {
		return auth.TokenPair{}, invalid("confirmation_code", "this field is required")
	}

	u, err := repo.GetUserByEmail(ctx, s.DB, email)
	if errors.Is(err, repo.ErrNotFound) {
		return auth.TokenPair{}, ErrUnknownAccount
	}
	if err != nil {
		return auth.TokenPair{}, err
	}
	if !u.IsActive {
		return auth.TokenPair{}, ErrUnknownAccount
	}
	if u.ConfirmationCode == "" || u.ConfirmationCode != code {
		return auth.TokenPair{}, ErrInvalidConfirmationCode
	}

	consumed, err := repo.ConsumeConfirmationCode(ctx, s.DB, u.ID, code)
	if err != nil {
		span.RecordError(err)
		return auth.TokenPair{}, err
	}
	if !consumed {
		// Rotated or used by a concurrent request after we read it.
		return auth.TokenPair{}, ErrInvalidConfirmationCode
	}
	return s.Tokens.IssuePair(u.ID)
}

// Refresh returns a new access token for a valid refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	_, span := s.tracer().Start(ctx, "Refresh")
	defer span.End()

	if strings.TrimSpace(refreshToken) == "" {
		return "", invalid("refresh", "this field is required")
	}
	access, err := s.Tokens.Refresh(refreshToken)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return access, nil
}

// Authenticate resolves an access token to the current state of its account.
// The role is read from storage, so a promotion takes effect immediately.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (authz.Principal, error) {
	claims, err := s.Tokens.ParseAccess(accessToken)
	if err != nil {
		return authz.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	u, err := repo.GetUserByID(ctx, s.DB, claims.Subject)
	if errors.Is(err, repo.ErrNotFound) {
		return authz.Principal{}, ErrInvalidToken
	}
	if err != nil {
		return authz.Principal{}, err
	}
	if !u.IsActive {
		return authz.Principal{}, ErrInvalidToken
	}
	return authz.FromUser(u), nil
}
