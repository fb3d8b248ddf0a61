package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/ecorecycle/backend"
	"github.com/cppla/ecorecycle/config"
	"github.com/cppla/ecorecycle/controllers"
	"github.com/cppla/ecorecycle/middleware"
	"github.com/cppla/ecorecycle/utils"
	"github.com/cppla/ecorecycle/web"
)

// Deps are the services the router exposes.
type Deps struct {
	Config    config.AppConfig
	Auth      controllers.Authenticator
	Consoles  controllers.Consoles
	Intake    controllers.Intake
	AccessLog *zap.Logger // optional gin access/recovery logger
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(deps Deps) (*gin.Engine, error) {
	cfg := deps.Config
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if deps.AccessLog != nil {
		r.Use(utils.Ginzap(deps.AccessLog, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(deps.AccessLog, false))
	} else {
		r.Use(gin.Recovery())
	}
	// Uploads are at most MaxImages files of MaxImageBytes; keep them in memory up to that
	r.MaxMultipartMemory = int64(max(cfg.MaxImages, 1)) * max(cfg.MaxImageBytes(), 1<<20)

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	tmpl, err := web.Templates()
	if err != nil {
		return nil, err
	}
	r.SetHTMLTemplate(tmpl)
	r.StaticFS("/assets", http.FS(web.Static()))
	storage := r.Group(strings.TrimSuffix(backend.PublicObjectPrefix, "/"), middleware.StoredObjectHeaders())
	storage.Static("/", cfg.StorageDir)

	notice := controllers.NewNotice(cfg.NoticeTitle, cfg.NoticeHTML)
	authController := controllers.NewAuthController(deps.Auth)
	consoleController := controllers.NewConsoleController(deps.Consoles)
	intakeController := controllers.NewIntakeController(deps.Intake)
	configController := controllers.NewConfigController(notice)
	pageController := controllers.NewPageController(deps.Consoles, notice, controllers.PageLimits{
		MaxImages:      cfg.MaxImages,
		MaxImageSizeMB: cfg.MaxImageSizeMB,
	})
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)

	r.GET("/", pageController.Intake)
	r.GET(middleware.LoginPath, pageController.Login)
	r.GET("/admin", middleware.PageAuthRequired(deps.Auth), pageController.Dashboard)
	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.POST("/login", limiter.Middleware(), authController.Login)
	authGroup.POST("/logout", authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(deps.Auth), authController.Me)

	api.GET("/notice", configController.GetNotice)

	submissions := api.Group("/submissions")
	submissions.Use(limiter.Middleware())
	submissions.POST("", intakeController.Submit)
	submissions.GET("/lookup", intakeController.Lookup)

	admin := api.Group("/admin/console")
	admin.Use(middleware.AuthRequired(deps.Auth))
	admin.GET("", consoleController.Show)
	admin.POST("/filter", consoleController.Filter)
	admin.POST("/search", consoleController.Search)
	admin.POST("/refresh", consoleController.Refresh)
	admin.GET("/stream", consoleController.Stream)
	admin.GET("/submissions/:id", consoleController.Detail)
	admin.POST("/submissions/:id/accept", consoleController.Accept)
	admin.POST("/submissions/:id/reject", consoleController.Reject)
	admin.DELETE("/submissions/:id", consoleController.Delete)
	admin.PUT("/submissions/:id/retention", consoleController.SetRetention)
	admin.DELETE("/submissions/:id/retention", consoleController.ClearRetention)
	admin.PUT("/settings/retention", consoleController.SetDefaultRetention)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		ctx.String(http.StatusNotFound, "page not found")
	})

	return r, nil
}
