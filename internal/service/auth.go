// Package service contains the account, session, shared-capture and sync services.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/ditrix/ditrix-server/internal/crypto"
	"github.com/ditrix/ditrix-server/internal/errs"
	"github.com/ditrix/ditrix-server/internal/limiter"
	"github.com/ditrix/ditrix-server/internal/mail"
	"github.com/ditrix/ditrix-server/internal/model"
)

// Notices returned next to successful results.
const (
	NoticeVerificationSent = "verification_sent"
	NoticeEmailFailed      = "account_created_email_failed"
	NoticeLoginSuccess     = "login_success"
	NoticeCodeActive       = "code_active"
)

// Messages shown to the client for code flows.
const (
	MsgPreviousCode = "Interruption detected. You can enter the previous code."
	MsgResetSent    = "If the account exists, a reset code was sent to the email."
	MsgResetActive  = "A reset code is already active. Please check your email."
)

// SignupResult is the outcome of Signup. Notice reports mail delivery.
type SignupResult struct {
	Profile *model.Profile
	Notice  string
}

// LoginResult carries the issued token and the caller's profile.
type LoginResult struct {
	Tokens  model.Tokens
	Profile *model.Profile
}

// CodeResult is the client-facing answer of Resend and Forgot.
type CodeResult struct {
	Notice  string
	Message string
}

// AuthService implements account sign-up, login and one-time code flows.
type AuthService interface {
	Signup(ctx context.Context, email, password, name string) (*SignupResult, error)
	// Login applies rate-limiting by (email, ip) and opens a session.
	Login(ctx context.Context, email, password, ip string) (*LoginResult, error)
	// Logout revokes the token; ErrNotFound when no such session exists.
	Logout(ctx context.Context, token string) error
	// Refresh extends the session by the configured TTL.
	Refresh(ctx context.Context, token string) (time.Time, error)
	Session(ctx context.Context, userID uuid.UUID) (*model.Profile, error)
	Resend(ctx context.Context, email string) (*CodeResult, error)
	Verify(ctx context.Context, email, code string) error
	// Forgot answers identically whether or not the account exists.
	Forgot(ctx context.Context, email string) (*CodeResult, error)
	// Reset sets a new password and revokes every session of the account.
	Reset(ctx context.Context, email, code, newPassword string) error
}

// AuthDeps collects AuthService collaborators.
type AuthDeps struct {
	Credentials   CredentialStore
	Sessions      SessionRegistry
	Verifications VerificationStore
	Limiter       limiter.Limiter
	Mailer        mail.Sender
	Log           *zap.Logger

	CodeTTL     time.Duration // lifetime of verification and reset codes
	MaxAttempts int           // wrong guesses before a code is burned
}

type AuthServiceImpl struct {
	AuthDeps
	now     func() time.Time
	newCode func() (string, error)
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(d AuthDeps) *AuthServiceImpl {
	if d.CodeTTL <= 0 {
		d.CodeTTL = 15 * time.Minute
	}
	if d.MaxAttempts <= 0 {
		d.MaxAttempts = 5
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &AuthServiceImpl{AuthDeps: d, now: time.Now, newCode: pkgcrypto.VerificationCode}
}

var _ AuthService = (*AuthServiceImpl)(nil)

// Signup creates the account first; a failed code mail is reported as a
// notice and never undoes the account.
func (s *AuthServiceImpl) Signup(ctx context.Context, email, password, name string) (*SignupResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password required", errs.ErrInvalidInput)
	}
	if !emailRe.MatchString(email) {
		return nil, fmt.Errorf("%w: invalid email", errs.ErrInvalidInput)
	}
	if len(password) < MinPasswordLen {
		return nil, errs.ErrInvalidPassword
	}
	if name = strings.TrimSpace(name); name != "" {
		_, err := s.Credentials.FindOneBy(ctx, "name", name)
		if err == nil {
			return nil, errs.ErrNameTaken
		}
		if !errors.Is(err, errs.ErrNotFound) {
			return nil, err
		}
	}

	profile, err := s.Credentials.CreateUser(ctx, NewUser{Email: email, Password: password, Name: name})
	if err != nil {
		return nil, err
	}

	res := &SignupResult{Profile: profile, Notice: NoticeVerificationSent}
	if err := s.sendCode(ctx, email, false, mail.PurposeVerify); err != nil {
		s.Log.Warn("verification mail after signup failed", zap.String("user_id", profile.ID.String()), zap.Error(err))
		res.Notice = NoticeEmailFailed
	}
	return res, nil
}

// sendCode stores a code (reusing an active one unless force) and mails it.
func (s *AuthServiceImpl) sendCode(ctx context.Context, email string, force bool, purpose mail.Purpose) error {
	code, err := s.newCode()
	if err != nil {
		return err
	}
	v, err := s.Verifications.Upsert(ctx, email, code, s.now().Add(s.CodeTTL), force)
	if err != nil {
		return fmt.Errorf("store code: %w", err)
	}
	return s.Mailer.SendCode(ctx, email, v.Code, purpose)
}

func (s *AuthServiceImpl) Login(ctx context.Context, email, password, ip string) (*LoginResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password required", errs.ErrInvalidInput)
	}
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.Limiter.Allow(ctx, email, ipHash)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, errs.ErrRateLimited
	}

	profile, err := s.Credentials.VerifyPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		if blocked, _, ferr := s.Limiter.Failure(ctx, email, ipHash); ferr == nil && blocked {
			return nil, errs.ErrRateLimited
		}
		return nil, fmt.Errorf("%w: invalid credentials", errs.ErrUnauthorized)
	}

	// best-effort reset
	_ = s.Limiter.Success(ctx, email, ipHash)

	tok, err := s.Sessions.Issue(ctx, profile.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Tokens: tok, Profile: profile}, nil
}

func (s *AuthServiceImpl) Logout(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("%w: no token provided", errs.ErrUnauthorized)
	}
	ok, err := s.Sessions.Delete(ctx, token)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session %w", errs.ErrNotFound)
	}
	return nil
}

func (s *AuthServiceImpl) Refresh(ctx context.Context, token string) (time.Time, error) {
	exp, ok, err := s.Sessions.Extend(ctx, token, s.Sessions.TTL())
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, fmt.Errorf("session %w", errs.ErrNotFound)
	}
	return exp, nil
}

func (s *AuthServiceImpl) Session(ctx context.Context, userID uuid.UUID) (*model.Profile, error) {
	u, err := s.Credentials.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.Profile(), nil
}

// activeCode reports whether email holds an unexpired code.
func (s *AuthServiceImpl) activeCode(ctx context.Context, email string) (bool, error) {
	v, err := s.Verifications.Get(ctx, email)
	if errors.Is(err, errs.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !v.Expired(s.now()), nil
}

func (s *AuthServiceImpl) Resend(ctx context.Context, email string) (*CodeResult, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email required", errs.ErrInvalidInput)
	}
	if _, err := s.Credentials.FindByEmail(ctx, email); err != nil {
		return nil, err
	}
	active, err := s.activeCode(ctx, email)
	if err != nil {
		return nil, err
	}
	if active {
		return &CodeResult{Message: MsgPreviousCode}, nil
	}
	if err := s.sendCode(ctx, email, true, mail.PurposeVerify); err != nil {
		return nil, fmt.Errorf("send verification: %w", err)
	}
	return &CodeResult{Notice: NoticeVerificationSent}, nil
}

// checkCode enforces expiry, the attempt cap and the match, burning the code
// when it can no longer succeed.
func (s *AuthServiceImpl) checkCode(ctx context.Context, email, code string) error {
	v, err := s.Verifications.Get(ctx, email)
	if errors.Is(err, errs.ErrNotFound) {
		return errs.ErrNoPendingCode
	}
	if err != nil {
		return err
	}
	if v.Expired(s.now()) {
		_ = s.Verifications.Delete(ctx, email)
		return errs.ErrCodeExpired
	}
	if v.Attempts >= s.MaxAttempts {
		_ = s.Verifications.Delete(ctx, email)
		return errs.ErrTooManyAttempts
	}
	if subtle.ConstantTimeCompare([]byte(v.Code), []byte(strings.TrimSpace(code))) != 1 {
		if _, err := s.Verifications.IncAttempts(ctx, email); err != nil {
			return err
		}
		return errs.ErrInvalidCode
	}
	return nil
}

func (s *AuthServiceImpl) Verify(ctx context.Context, email, code string) error {
	email = NormalizeEmail(email)
	if email == "" || code == "" {
		return fmt.Errorf("%w: email and code required", errs.ErrInvalidInput)
	}
	if err := s.checkCode(ctx, email, code); err != nil {
		return err
	}
	if err := s.Credentials.SetVerifiedByEmail(ctx, email); err != nil {
		return err
	}
	return s.Verifications.Delete(ctx, email)
}

func (s *AuthServiceImpl) Forgot(ctx context.Context, email string) (*CodeResult, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", errs.ErrInvalidInput)
	}
	generic := &CodeResult{Message: MsgResetSent}

	_, err := s.Credentials.FindByEmail(ctx, email)
	if errors.Is(err, errs.ErrNotFound) {
		return generic, nil
	}
	if err != nil {
		return nil, err
	}
	active, err := s.activeCode(ctx, email)
	if err != nil {
		return nil, err
	}
	if active {
		return &CodeResult{Notice: NoticeCodeActive, Message: MsgResetActive}, nil
	}
	if err := s.sendCode(ctx, email, true, mail.PurposeReset); err != nil {
		s.Log.Warn("reset mail failed", zap.Error(err))
	}
	return generic, nil
}

func (s *AuthServiceImpl) Reset(ctx context.Context, email, code, newPassword string) error {
	email = NormalizeEmail(email)
	if email == "" || code == "" || newPassword == "" {
		return fmt.Errorf("%w: email, code and newPassword are required", errs.ErrInvalidInput)
	}
	if len(newPassword) < MinPasswordLen {
		return errs.ErrInvalidPassword
	}
	u, err := s.Credentials.FindByEmail(ctx, email)
	if errors.Is(err, errs.ErrNotFound) {
		return errs.ErrNoPendingCode
	}
	if err != nil {
		return err
	}
	if err := s.checkCode(ctx, email, code); err != nil {
		return err
	}
	if err := s.Credentials.UpdatePasswordByEmail(ctx, email, newPassword); err != nil {
		return err
	}
	if err := s.Verifications.Delete(ctx, email); err != nil {
		return err
	}
	n, err := s.Sessions.DeleteByUser(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	s.Log.Info("password reset", zap.String("user_id", u.ID.String()), zap.Int64("sessions_revoked", n))
	return nil
}
