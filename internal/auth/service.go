package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"registros/internal/core"
)

type Config struct {
	JWTSecret  string
	SessionTTL time.Duration
	ResetTTL   time.Duration
	// ResetURL is the page that receives ?token=... from the reset email.
	ResetURL   string
	BcryptCost int
}

type Service struct {
	store    UserStore
	notifier Notifier
	tokens   *TokenIssuer
	cfg      Config
	now      func() time.Time
}

func NewService(store UserStore, notifier Notifier, cfg Config) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = defaultResetTTL
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Service{
		store:    store,
		notifier: notifier,
		tokens:   NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL),
		cfg:      cfg,
		now:      time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validCredentials(email, password string) error {
	if !strings.Contains(email, "@") || len(email) < 3 {
		return &core.AuthError{Message: MsgInvalidEmail}
	}
	if len(password) < minPasswordLength {
		return &core.AuthError{Message: MsgWeakPassword}
	}
	return nil
}

// SignUp creates an account.
func (s *Service) SignUp(ctx context.Context, email, password string) (User, error) {
	email = normalizeEmail(email)
	if err := validCredentials(email, password); err != nil {
		return User{}, err
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return User{}, &core.AuthError{Message: MsgEmailTaken, Err: ErrEmailTaken}
	} else if !errors.Is(err, ErrUserNotFound) {
		return User{}, &core.AuthError{Message: "Erro ao criar conta", Err: err}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("hashing password: %w", err)
	}

	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return User{}, &core.AuthError{Message: MsgEmailTaken, Err: err}
		}
		return User{}, &core.AuthError{Message: "Erro ao criar conta", Err: err}
	}

	slog.InfoContext(ctx, "User signed up", "user_id", u.ID)
	return u, nil
}

// SignIn checks the password and returns a session token.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, User, error) {
	email = normalizeEmail(email)
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", User{}, &core.AuthError{Message: MsgInvalidLogin}
		}
		return "", User{}, &core.AuthError{Message: "Erro ao entrar", Err: err}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", User{}, &core.AuthError{Message: MsgInvalidLogin}
	}

	token, err := s.tokens.Issue(u, s.now())
	if err != nil {
		return "", User{}, fmt.Errorf("issuing session: %w", err)
	}
	return token, u, nil
}

// RequestPasswordReset always succeeds from the caller's point of view so
// the form cannot be used to probe which emails exist. redirectURL overrides
// the configured reset page only when it points at the same scheme and host.
func (s *Service) RequestPasswordReset(ctx context.Context, email, redirectURL string) error {
	email = normalizeEmail(email)
	if !strings.Contains(email, "@") {
		return &core.AuthError{Message: MsgInvalidEmail}
	}

	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		slog.InfoContext(ctx, "Password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return &core.AuthError{Message: "Erro ao enviar email", Err: err}
	}

	t := ResetToken{
		Token:     uuid.NewString(),
		UserID:    u.ID,
		ExpiresAt: s.now().Add(s.cfg.ResetTTL).UTC(),
	}
	if err := s.store.SaveResetToken(ctx, t); err != nil {
		return &core.AuthError{Message: "Erro ao enviar email", Err: err}
	}

	if err := s.notifier.SendPasswordReset(ctx, u.Email, s.resetLink(redirectURL, t.Token)); err != nil {
		return &core.AuthError{Message: "Erro ao enviar email", Err: err}
	}
	return nil
}

func (s *Service) resetLink(redirectURL, token string) string {
	base := s.cfg.ResetURL
	if base == "" {
		base = "/auth/redefinir"
	}
	if redirectURL != "" {
		if sameOrigin(base, redirectURL) {
			base = redirectURL
		} else {
			slog.Warn("Ignoring reset redirect outside the configured origin", "redirect_url", redirectURL)
		}
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + url.QueryEscape(token)
}

// sameOrigin reports whether candidate has the scheme and host of base. A
// relative base only admits local paths.
func sameOrigin(base, candidate string) bool {
	b, err := url.Parse(base)
	if err != nil {
		return false
	}
	c, err := url.Parse(candidate)
	if err != nil || c.User != nil {
		return false
	}
	if b.Host == "" {
		return c.Scheme == "" && c.Host == "" && strings.HasPrefix(c.Path, "/") && !strings.HasPrefix(candidate, "//")
	}
	return strings.EqualFold(c.Scheme, b.Scheme) && strings.EqualFold(c.Host, b.Host)
}

// ResetPassword consumes a reset token and sets the new password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return &core.AuthError{Message: MsgWeakPassword}
	}
	if _, err := uuid.Parse(token); err != nil {
		return &core.AuthError{Message: MsgInvalidReset, Err: ErrInvalidResetToken}
	}

	t, err := s.store.ConsumeResetToken(ctx, token, s.now())
	if err != nil {
		if errors.Is(err, ErrInvalidResetToken) {
			return &core.AuthError{Message: MsgInvalidReset, Err: err}
		}
		return &core.AuthError{Message: "Erro ao redefinir senha", Err: err}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := s.store.UpdatePassword(ctx, t.UserID, string(hash)); err != nil {
		return &core.AuthError{Message: "Erro ao redefinir senha", Err: err}
	}

	slog.InfoContext(ctx, "Password reset completed", "user_id", t.UserID)
	return nil
}

// ParseSession validates a session token.
func (s *Service) ParseSession(token string) (*Claims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, &core.AuthError{Message: MsgSessionExpired, Err: err}
	}
	return claims, nil
}

// SessionTTL is how long issued tokens stay valid.
func (s *Service) SessionTTL() time.Duration {
	return s.cfg.SessionTTL
}
