// Package auth is the identity service behind the sign-in page: email and
// password accounts, JWT session tokens and single-use password reset tokens.
package auth

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailTaken        = errors.New("email already registered")
	ErrInvalidResetToken = errors.New("reset token invalid or expired")
)

// Messages shown on the auth page.
const (
	MsgSignUpOK         = "Conta criada com sucesso!"
	MsgResetSent        = "Email enviado!"
	MsgPasswordChanged  = "Senha alterada com sucesso!"
	MsgInvalidLogin     = "Email ou senha inválidos"
	MsgEmailTaken       = "Usuário já cadastrado"
	MsgInvalidEmail     = "Email inválido"
	MsgWeakPassword     = "A senha deve ter pelo menos 6 caracteres"
	MsgInvalidReset     = "Link de redefinição inválido ou expirado"
	MsgSessionExpired   = "Sessão expirada, entre novamente"
	minPasswordLength   = 6
	defaultResetTTL     = time.Hour
	defaultSessionTTL   = 24 * time.Hour
)

type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type ResetToken struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	Used      bool
}

type UserStore interface {
	// CreateUser returns ErrEmailTaken when the email already exists.
	CreateUser(ctx context.Context, u User) error
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	UpdatePassword(ctx context.Context, userID, hash string) error
	SaveResetToken(ctx context.Context, t ResetToken) error
	// ConsumeResetToken marks the token used and returns it. Unknown, used or
	// expired tokens yield ErrInvalidResetToken.
	ConsumeResetToken(ctx context.Context, token string, now time.Time) (ResetToken, error)
}

// Notifier delivers password reset links.
type Notifier interface {
	SendPasswordReset(ctx context.Context, email, link string) error
}
