package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/repo/memrepo"
)

func newIdentity(f *fixture, throttle *memrepo.Throttle) *identityService {
	var svc IdentityService
	if throttle == nil {
		svc = NewIdentityService(f.users, nil, f.tokens, f.notifier, nil)
	} else {
		svc = NewIdentityService(f.users, throttle, f.tokens, f.notifier, nil)
	}
	return svc.(*identityService)
}

func lastCode(t *testing.T, f *fixture) string {
	t.Helper()
	sent := f.notifier.Sent()
	require.NotEmpty(t, sent)
	return sent[len(sent)-1].Code
}

func TestRequestCodeStoresAndSendsSixDigitCode(t *testing.T) {
	f := newFixture(t)
	svc := newIdentity(f, nil)

	require.NoError(t, svc.RequestCode(context.Background(), "  New.User@Example.com "))

	code := lastCode(t, f)
	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), code)
	assert.Equal(t, "new.user@example.com", f.notifier.Sent()[0].To)

	user, err := f.users.FindByEmail(context.Background(), "new.user@example.com")
	require.NoError(t, err)
	assert.Equal(t, code, user.OTPCode)
	require.NotNil(t, user.OTPExpiresAt)
	assert.WithinDuration(t, time.Now().Add(CodeTTL), *user.OTPExpiresAt, 5*time.Second)
}

func TestRequestCodeRejectsInvalidEmail(t *testing.T) {
	f := newFixture(t)
	err := newIdentity(f, nil).RequestCode(context.Background(), "not-an-email")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, f.notifier.Sent())
}

func TestRequestCodeDeliveryFailureKeepsStoredCode(t *testing.T) {
	f := newFixture(t)
	f.notifier.Err = errors.New("smtp down")
	svc := newIdentity(f, nil)

	err := svc.RequestCode(context.Background(), "buyer@example.com")
	require.ErrorIs(t, err, domain.ErrDeliveryFailed)

	user, err := f.users.FindByEmail(context.Background(), "buyer@example.com")
	require.NoError(t, err)
	assert.Equal(t, lastCode(t, f), user.OTPCode)
}

func TestRequestCodeThrottled(t *testing.T) {
	f := newFixture(t)
	svc := newIdentity(f, memrepo.NewThrottle(time.Minute))

	require.NoError(t, svc.RequestCode(context.Background(), "buyer@example.com"))
	err := svc.RequestCode(context.Background(), "buyer@example.com")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, 1, f.notifier.Count("login_code"))
}

func TestRequestCodeDeliveryFailureAllowsImmediateResend(t *testing.T) {
	f := newFixture(t)
	f.notifier.Err = errors.New("smtp down")
	svc := newIdentity(f, memrepo.NewThrottle(time.Minute))

	err := svc.RequestCode(context.Background(), "buyer@example.com")
	require.ErrorIs(t, err, domain.ErrDeliveryFailed)

	f.notifier.Err = nil
	require.NoError(t, svc.RequestCode(context.Background(), "buyer@example.com"))

	user, err := f.users.FindByEmail(context.Background(), "buyer@example.com")
	require.NoError(t, err)
	assert.Equal(t, lastCode(t, f), user.OTPCode)

	// The delivered code holds the cooldown.
	err = svc.RequestCode(context.Background(), "buyer@example.com")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestRequestCodeStoreFailureAllowsImmediateResend(t *testing.T) {
	f := newFixture(t)
	f.users.FailUpsert = errors.New("connection refused")
	svc := newIdentity(f, memrepo.NewThrottle(time.Minute))

	err := svc.RequestCode(context.Background(), "buyer@example.com")
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)

	f.users.FailUpsert = nil
	require.NoError(t, svc.RequestCode(context.Background(), "buyer@example.com"))
	assert.Equal(t, 1, f.notifier.Count("login_code"))
}

func TestRequestCodeStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.users.FailUpsert = errors.New("connection refused")

	err := newIdentity(f, nil).RequestCode(context.Background(), "buyer@example.com")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Empty(t, f.notifier.Sent())
}

func TestVerifyCodeIssuesTokenAndClearsCode(t *testing.T) {
	f := newFixture(t)
	svc := newIdentity(f, nil)
	ctx := context.Background()

	require.NoError(t, svc.RequestCode(ctx, "buyer@example.com"))
	res, err := svc.VerifyCode(ctx, "BUYER@example.com", lastCode(t, f))
	require.NoError(t, err)

	id, err := f.tokens.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, id.UserID)
	assert.Equal(t, "buyer@example.com", id.Email)

	user, err := f.users.FindByID(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, user.OTPCode)
	assert.Nil(t, user.OTPExpiresAt)

	// The code is single use.
	_, err = svc.VerifyCode(ctx, "buyer@example.com", lastCode(t, f))
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
}

func TestVerifyCodeWrongCode(t *testing.T) {
	f := newFixture(t)
	svc := newIdentity(f, nil)
	require.NoError(t, svc.RequestCode(context.Background(), "buyer@example.com"))

	wrong := "000000"
	if lastCode(t, f) == wrong {
		wrong = "111111"
	}
	_, err := svc.VerifyCode(context.Background(), "buyer@example.com", wrong)
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
}

func TestVerifyCodeExpiredBeatsCorrectCode(t *testing.T) {
	f := newFixture(t)
	svc := newIdentity(f, nil)
	require.NoError(t, svc.RequestCode(context.Background(), "buyer@example.com"))

	svc.now = func() time.Time { return time.Now().Add(CodeTTL + time.Second) }
	_, err := svc.VerifyCode(context.Background(), "buyer@example.com", lastCode(t, f))
	assert.ErrorIs(t, err, domain.ErrExpired)
}

func TestVerifyCodeUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := newIdentity(f, nil).VerifyCode(context.Background(), "ghost@example.com", "123456")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVerifyCodeWithoutPendingCode(t *testing.T) {
	f := newFixture(t)
	_, err := newIdentity(f, nil).VerifyCode(context.Background(), f.user.Email, "123456")
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
}

func TestVerifyCodeClearFailureStillLogsIn(t *testing.T) {
	f := newFixture(t)
	svc := newIdentity(f, nil)
	require.NoError(t, svc.RequestCode(context.Background(), "buyer@example.com"))
	f.users.FailClear = errors.New("write timeout")

	res, err := svc.VerifyCode(context.Background(), "buyer@example.com", lastCode(t, f))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
}

func TestProfile(t *testing.T) {
	f := newFixture(t)
	user, err := newIdentity(f, nil).Profile(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, f.user.Email, user.Email)
}
