package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/auth"
	"storefront/internal/domain"
	"storefront/internal/infrastructure/notify"
	"storefront/internal/repo"
)

const CodeTTL = 10 * time.Minute

type LoginResult struct {
	Token string
	User  domain.User
}

type IdentityService interface {
	RequestCode(ctx context.Context, email string) error
	VerifyCode(ctx context.Context, email, code string) (*LoginResult, error)
	Profile(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

type identityService struct {
	users    repo.UserRepo
	throttle repo.CodeThrottle
	tokens   *auth.TokenIssuer
	notifier notify.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewIdentityService wires the OTP login flow. throttle may be nil.
func NewIdentityService(
	users repo.UserRepo,
	throttle repo.CodeThrottle,
	tokens *auth.TokenIssuer,
	notifier notify.Notifier,
	logger *zap.Logger,
) IdentityService {
	return &identityService{
		users:    users,
		throttle: throttle,
		tokens:   tokens,
		notifier: notifier,
		logger:   nopIfNil(logger).Named("identity"),
		now:      time.Now,
	}
}

func (s *identityService) RequestCode(ctx context.Context, email string) error {
	email, err := domain.NormalizeEmail(email)
	if err != nil {
		return err
	}

	reserved := false
	if s.throttle != nil {
		allowed, err := s.throttle.Allow(ctx, email)
		switch {
		case err != nil:
			s.logger.Warn("otp throttle unavailable, allowing request", zap.Error(err))
		case !allowed:
			return domain.ErrRateLimited
		default:
			reserved = true
		}
	}

	if err := s.sendCode(ctx, email); err != nil {
		// Only a delivered code holds the cooldown, so the buyer can retry.
		if reserved {
			s.releaseThrottle(ctx, email)
		}
		return err
	}
	return nil
}

func (s *identityService) sendCode(ctx context.Context, email string) error {
	code, err := auth.NewCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	expiresAt := s.now().UTC().Add(CodeTTL)

	if _, err := s.users.UpsertOTP(ctx, email, code, expiresAt); err != nil {
		return storeErr("store code", err)
	}

	// The stored code stays valid if delivery fails; a resend overwrites it.
	if err := s.notifier.SendLoginCode(ctx, email, code, CodeTTL); err != nil {
		return fmt.Errorf("send code: %w: %w", domain.ErrDeliveryFailed, err)
	}
	return nil
}

func (s *identityService) releaseThrottle(ctx context.Context, email string) {
	if err := s.throttle.Release(context.WithoutCancel(ctx), email); err != nil {
		s.logger.Warn("release otp cooldown failed", zap.Error(err))
	}
}

func (s *identityService) VerifyCode(ctx context.Context, email, code string) (*LoginResult, error) {
	email, err := domain.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, storeErr("find user", err)
	}
	if user.OTPCode == "" || user.OTPExpiresAt == nil {
		return nil, domain.ErrInvalidCode
	}
	// Expiry wins over a correct code.
	if s.now().UTC().After(user.OTPExpiresAt.UTC()) {
		return nil, domain.ErrExpired
	}
	if !auth.CodesEqual(code, user.OTPCode) {
		return nil, domain.ErrInvalidCode
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	// Clear only after the token exists; a failed clear leaves the code to
	// expire on its own and must not fail the login.
	if err := s.users.ClearOTP(ctx, user.ID); err != nil {
		s.logger.Warn("clear otp failed", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	user.OTPCode = ""
	user.OTPExpiresAt = nil

	return &LoginResult{Token: token, User: *user}, nil
}

func (s *identityService) Profile(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, storeErr("find user", err)
	}
	return user, nil
}
