package middleware

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/crashdesk/internal/api/response"
	"github.com/kiranshivaraju/crashdesk/internal/cache"
	"golang.org/x/crypto/bcrypt"
)

// SessionCookie is the name of the console session cookie.
const SessionCookie = "crashdesk_session"

var ErrInvalidCredentials = errors.New("invalid username or password")

// Auth guards the maintainer console with a single configured account.
// Sessions live in the cache keyed by a random token carried in a cookie.
type Auth struct {
	cache        cache.Cache
	username     string
	passwordHash string
	ttl          time.Duration
}

// NewAuth creates a new Auth middleware.
func NewAuth(c cache.Cache, username, passwordHash string, ttl time.Duration) *Auth {
	return &Auth{cache: c, username: username, passwordHash: passwordHash, ttl: ttl}
}

// Login checks the credentials and, on success, opens a session and sets its cookie.
func (a *Auth) Login(w http.ResponseWriter, r *http.Request, username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	// Always run bcrypt so a wrong username costs the same as a wrong password.
	passErr := bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(password))
	if !userOK || passErr != nil {
		slog.Warn("console login rejected", "username", username, "remote_addr", r.RemoteAddr)
		return ErrInvalidCredentials
	}

	token := uuid.New()
	if err := a.cache.Set(r.Context(), cache.SessionKey(token), []byte(a.username), a.ttl); err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token.String(),
		Path:     "/",
		MaxAge:   int(a.ttl.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	slog.Info("console login", "username", a.username)
	return nil
}

// Logout drops the session, if any, and clears the cookie.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := sessionToken(r); ok {
		if err := a.cache.Delete(r.Context(), cache.SessionKey(token)); err != nil {
			slog.Warn("session delete failed", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// Authenticate requires a live console session. Requests without one are
// redirected to the login page with the original URI in "next".
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := sessionToken(r)
		if !ok {
			redirectToLogin(w, r)
			return
		}

		user, found, err := a.cache.Get(r.Context(), cache.SessionKey(token))
		if err != nil {
			slog.Error("session lookup failed", "error", err)
			response.Text(w, http.StatusServiceUnavailable, "session store unavailable")
			return
		}
		if !found {
			redirectToLogin(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(SetUser(r.Context(), string(user))))
	})
}

func sessionToken(r *http.Request) (uuid.UUID, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return uuid.Nil, false
	}
	token, err := uuid.Parse(c.Value)
	if err != nil {
		return uuid.Nil, false
	}
	return token, true
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
}
