package handler

import (
	"errors"
	"net/http"
	"strings"

	mw "github.com/kiranshivaraju/crashdesk/internal/api/middleware"
	"github.com/kiranshivaraju/crashdesk/internal/api/response"
)

type loginPage struct {
	Next     string
	Username string
	Failed   bool
}

// NewLoginHandler serves the login form on GET and checks credentials on POST.
// A successful login redirects to the local "next" path, or the report list.
func NewLoginHandler(auth *mw.Auth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			render(w, http.StatusOK, "login", loginPage{Next: safeNext(r.URL.Query().Get("next"))})
			return
		}

		if err := r.ParseForm(); err != nil {
			response.Text(w, http.StatusBadRequest, "invalid form")
			return
		}
		next := safeNext(r.PostForm.Get("next"))
		username := r.PostForm.Get("username")

		err := auth.Login(w, r, username, r.PostForm.Get("password"))
		switch {
		case err == nil:
			http.Redirect(w, r, next, http.StatusSeeOther)
		case errors.Is(err, mw.ErrInvalidCredentials):
			render(w, http.StatusUnauthorized, "login", loginPage{Next: next, Username: username, Failed: true})
		default:
			response.Text(w, http.StatusServiceUnavailable, "session store unavailable")
		}
	}
}

// NewLogoutHandler ends the console session and returns to the login form.
func NewLogoutHandler(auth *mw.Auth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth.Logout(w, r)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}

// safeNext only allows same-site absolute paths.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return listPath
	}
	return next
}
