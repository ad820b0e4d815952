package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"registros/internal/auth"
	"registros/internal/core"
	"registros/internal/log"
)

const (
	sessionCookie = "registros_session"
	authPath      = "/auth"

	msgPasswordMismatch = "As senhas não coincidem"
	msgUnauthorized     = "Autenticação necessária"
)

type sessionKey struct{}

func withSession(ctx context.Context, c *auth.Claims) context.Context {
	return context.WithValue(ctx, sessionKey{}, c)
}

func sessionFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(sessionKey{}).(*auth.Claims)
	return c, ok && c != nil
}

// authMessage unwraps the Portuguese message carried by an AuthError.
func authMessage(err error, fallback string) string {
	var ae *core.AuthError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return fallback
}

func (s *Server) authPage(r *http.Request, tab string) authView {
	return authView{pageView: s.page(r, "Entrar"), Tab: tab}
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.auth.SessionTTL() / time.Second),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionClaims validates the session cookie, if any.
func (s *Server) sessionClaims(r *http.Request) (*auth.Claims, error) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, err
	}
	return s.auth.ParseSession(c.Value)
}

func (s *Server) handleAuthPage(w http.ResponseWriter, r *http.Request) {
	if _, err := s.sessionClaims(r); err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	tab := r.URL.Query().Get("aba")
	switch tab {
	case "cadastrar", "recuperar":
	default:
		tab = "entrar"
	}
	s.render(w, r, http.StatusOK, "auth.html", s.authPage(r, tab))
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		BadRequestError(msgBadRequest).Write(w)
		return
	}
	email := sanitizeInput(r.PostForm.Get("email"))
	token, u, err := s.auth.SignIn(ctx, email, r.PostForm.Get("senha"))
	if err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Sign in failed",
			log.FieldError, err,
			log.FieldClientIP, s.securityDetector.ExtractClientIP(r))
		view := s.authPage(r, "entrar")
		view.Email = email
		view.Error = authMessage(err, auth.MsgInvalidLogin)
		s.render(w, r, http.StatusUnauthorized, "auth.html", view)
		return
	}

	s.setSessionCookie(w, r, token)
	log.FromContext(ctx).InfoContext(ctx, "User signed in", log.FieldUserID, u.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		BadRequestError(msgBadRequest).Write(w)
		return
	}
	email := sanitizeInput(r.PostForm.Get("email"))
	password := r.PostForm.Get("senha")

	view := s.authPage(r, "cadastrar")
	view.Email = email
	if confirm := r.PostForm.Get("confirmar"); confirm != "" && confirm != password {
		view.Error = msgPasswordMismatch
		s.render(w, r, http.StatusUnprocessableEntity, "auth.html", view)
		return
	}
	if _, err := s.auth.SignUp(ctx, email, password); err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, auth.ErrEmailTaken) {
			status = http.StatusConflict
		}
		view.Error = authMessage(err, "Erro ao criar conta")
		s.render(w, r, status, "auth.html", view)
		return
	}

	view.Tab = "entrar"
	view.Message = auth.MsgSignUpOK
	s.render(w, r, http.StatusOK, "auth.html", view)
}

func (s *Server) handleRequestReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		BadRequestError(msgBadRequest).Write(w)
		return
	}
	view := s.authPage(r, "recuperar")
	view.Email = sanitizeInput(r.PostForm.Get("email"))

	if err := s.auth.RequestPasswordReset(ctx, view.Email, ""); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Password reset request failed", log.FieldError, err)
		view.Error = authMessage(err, "Erro ao enviar email")
		s.render(w, r, http.StatusUnprocessableEntity, "auth.html", view)
		return
	}
	view.Message = auth.MsgResetSent
	s.render(w, r, http.StatusOK, "auth.html", view)
}

func (s *Server) handleResetPage(w http.ResponseWriter, r *http.Request) {
	view := s.authPage(r, "redefinir")
	view.Token = strings.TrimSpace(r.URL.Query().Get("token"))
	if view.Token == "" {
		view.Error = auth.MsgInvalidReset
	}
	s.render(w, r, http.StatusOK, "auth.html", view)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		BadRequestError(msgBadRequest).Write(w)
		return
	}
	view := s.authPage(r, "redefinir")
	view.Token = strings.TrimSpace(r.PostForm.Get("token"))
	password := r.PostForm.Get("senha")

	if password != r.PostForm.Get("confirmar") {
		view.Error = msgPasswordMismatch
		s.render(w, r, http.StatusUnprocessableEntity, "auth.html", view)
		return
	}
	if err := s.auth.ResetPassword(ctx, view.Token, password); err != nil {
		view.Error = authMessage(err, "Erro ao redefinir senha")
		s.render(w, r, http.StatusUnprocessableEntity, "auth.html", view)
		return
	}

	done := s.authPage(r, "entrar")
	done.Message = auth.MsgPasswordChanged
	s.render(w, r, http.StatusOK, "auth.html", done)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w, r)
	if isHTMX(r) {
		NewHTMXResponse().Redirect(authPath).Write(w)
		return
	}
	http.Redirect(w, r, authPath, http.StatusSeeOther)
}

// requireSession sends visitors without a valid session cookie to the auth
// page. It is a pass-through when auth is disabled.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.opts.AuthRequired {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := s.sessionClaims(r)
		if err != nil {
			if isHTMX(r) {
				NewHTMXResponse().
					Status(http.StatusUnauthorized).
					Redirect(authPath).
					Write(w)
				return
			}
			http.Redirect(w, r, authPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(s.sessionContext(r.Context(), claims)))
	})
}

// requireBearer is requireSession for the JSON API: it reads an
// Authorization bearer token and answers 401 with a JSON error.
func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.opts.AuthRequired {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeAPIMessage(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		claims, err := s.auth.ParseSession(strings.TrimSpace(token))
		if err != nil {
			writeAPIMessage(w, http.StatusUnauthorized, authMessage(err, msgUnauthorized))
			return
		}
		next.ServeHTTP(w, r.WithContext(s.sessionContext(r.Context(), claims)))
	})
}

func (s *Server) sessionContext(ctx context.Context, c *auth.Claims) context.Context {
	ctx = withSession(ctx, c)
	return log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, c.UserID))
}
