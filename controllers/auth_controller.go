package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/ecorecycle/backend"
	"github.com/cppla/ecorecycle/middleware"
	"github.com/cppla/ecorecycle/utils"
)

// Authenticator is the session part of the backend.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (backend.Session, error)
	GetSession(ctx context.Context, token string) (*backend.Session, error)
	SignOut(ctx context.Context, token string) error
}

// AuthController handles admin sign-in and sign-out.
type AuthController struct {
	auth Authenticator
	now  func() time.Time
}

func NewAuthController(auth Authenticator) *AuthController {
	return &AuthController{auth: auth, now: time.Now}
}

// Login signs an admin in and sets the session cookie.
func (a *AuthController) Login(ctx *gin.Context) {
	type request struct {
		Email    string `json:"email" form:"email"`
		Password string `json:"password" form:"password"`
	}

	var req request
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		utils.Error(ctx, http.StatusBadRequest, 40004, "Missing credentials")
		return
	}

	sess, err := a.auth.SignIn(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(ctx, err, nil)
		return
	}

	maxAge := int(sess.ExpiresAt.Sub(a.now()).Seconds())
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(middleware.SessionCookie, sess.Token, maxAge, "/", "", ctx.Request.TLS != nil, true)
	utils.Success(ctx, gin.H{
		"token":      sess.Token,
		"email":      sess.Email,
		"expires_at": sess.ExpiresAt,
	})
}

// Logout revokes the current token and clears the cookie. A missing or
// already invalid session only clears the cookie.
func (a *AuthController) Logout(ctx *gin.Context) {
	if token := middleware.TokenFromRequest(ctx); token != "" {
		if err := a.auth.SignOut(ctx.Request.Context(), token); err != nil && backend.KindOf(err) != backend.KindAuth {
			fail(ctx, err, nil)
			return
		}
	}
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(middleware.SessionCookie, "", -1, "/", "", ctx.Request.TLS != nil, true)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the current session.
func (a *AuthController) Me(ctx *gin.Context) {
	sess, _, ok := middleware.SessionFrom(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40102, "session required")
		return
	}
	utils.Success(ctx, gin.H{
		"admin_id":   sess.AdminID,
		"email":      sess.Email,
		"expires_at": sess.ExpiresAt,
	})
}
