package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/ecorecycle/backend"
	"github.com/cppla/ecorecycle/utils"
)

const (
	// ContextSessionKey stores the *backend.Session of an authenticated request.
	ContextSessionKey = "session"
	// ContextTokenKey stores the raw session token.
	ContextTokenKey = "session_token"
	// SessionCookie carries the token for page navigation and the websocket.
	SessionCookie = "ecorecycle_session"
	// LoginPath is where pages without a session are sent.
	LoginPath = "/admin/login"
)

// SessionChecker resolves a token into a session.
type SessionChecker interface {
	GetSession(ctx context.Context, token string) (*backend.Session, error)
}

// TokenFromRequest returns the bearer token, falling back to the session cookie.
func TokenFromRequest(ctx *gin.Context) string {
	if authHeader := ctx.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := ctx.Cookie(SessionCookie); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}

// AuthRequired rejects API requests without a valid session.
func AuthRequired(auth SessionChecker) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := TokenFromRequest(ctx)
		if token == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40102, "session required")
			ctx.Abort()
			return
		}

		sess, err := auth.GetSession(ctx.Request.Context(), token)
		if err != nil || sess == nil {
			utils.Error(ctx, http.StatusUnauthorized, 40103, "session expired or revoked")
			ctx.Abort()
			return
		}

		ctx.Set(ContextSessionKey, sess)
		ctx.Set(ContextTokenKey, token)
		ctx.Next()
	}
}

// PageAuthRequired redirects page requests without a valid session to the login page.
func PageAuthRequired(auth SessionChecker) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := TokenFromRequest(ctx)
		var sess *backend.Session
		if token != "" {
			sess, _ = auth.GetSession(ctx.Request.Context(), token)
		}
		if sess == nil {
			ctx.Redirect(http.StatusFound, LoginPath+"?next="+url.QueryEscape(ctx.Request.URL.Path))
			ctx.Abort()
			return
		}
		ctx.Set(ContextSessionKey, sess)
		ctx.Set(ContextTokenKey, token)
		ctx.Next()
	}
}

// SessionFrom returns the session stored by the auth middleware.
func SessionFrom(ctx *gin.Context) (*backend.Session, string, bool) {
	v, ok := ctx.Get(ContextSessionKey)
	if !ok {
		return nil, "", false
	}
	sess, ok := v.(*backend.Session)
	if !ok || sess == nil {
		return nil, "", false
	}
	return sess, ctx.GetString(ContextTokenKey), true
}
