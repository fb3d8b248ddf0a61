package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/ecorecycle/backend"
	"github.com/cppla/ecorecycle/middleware"
	"github.com/cppla/ecorecycle/utils"
)

// PageLimits are the upload limits shown on the intake form.
type PageLimits struct {
	MaxImages      int
	MaxImageSizeMB int
}

// PageController renders the HTML shells.
type PageController struct {
	consoles Consoles
	notice   Notice
	limits   PageLimits
}

func NewPageController(consoles Consoles, notice Notice, limits PageLimits) *PageController {
	return &PageController{consoles: consoles, notice: notice, limits: limits}
}

// Intake renders the public submission and lookup page.
func (p *PageController) Intake(ctx *gin.Context) {
	ctx.HTML(http.StatusOK, "intake.html", gin.H{
		"Notice":         p.notice,
		"MaxImages":      p.limits.MaxImages,
		"MaxImageSizeMB": p.limits.MaxImageSizeMB,
	})
}

// Login renders the admin sign-in page. next must be a local path.
func (p *PageController) Login(ctx *gin.Context) {
	next := ctx.Query("next")
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		next = "/admin"
	}
	ctx.HTML(http.StatusOK, "login.html", gin.H{"Next": next})
}

// Dashboard renders the console shell with the session's current render.
func (p *PageController) Dashboard(ctx *gin.Context) {
	sess, _, ok := middleware.SessionFrom(ctx)
	if !ok {
		ctx.Redirect(http.StatusFound, middleware.LoginPath)
		return
	}
	c, err := p.consoles.Get(ctx.Request.Context(), *sess)
	if backend.KindOf(err) == backend.KindAuth {
		ctx.Redirect(http.StatusFound, middleware.LoginPath)
		return
	}
	if err != nil {
		utils.Named("http").Warnw("console unavailable", "err", err)
		ctx.String(http.StatusInternalServerError, "console unavailable")
		return
	}
	ctx.HTML(http.StatusOK, "dashboard.html", gin.H{
		"Email":    sess.Email,
		"Snapshot": c.Current(),
	})
}
