package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const consoleUserKey contextKey = "console_user"

func SetUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, consoleUserKey, username)
}

// GetUser returns the console user set by Auth.Authenticate.
func GetUser(r *http.Request) (string, bool) {
	u, ok := r.Context().Value(consoleUserKey).(string)
	return u, ok && u != ""
}
