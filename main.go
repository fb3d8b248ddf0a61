package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cppla/ecorecycle/backend"
	"github.com/cppla/ecorecycle/config"
	"github.com/cppla/ecorecycle/console"
	"github.com/cppla/ecorecycle/intake"
	"github.com/cppla/ecorecycle/routes"
	"github.com/cppla/ecorecycle/utils"
)

var rootCmd = &cobra.Command{
	Use:   "ecorecycle",
	Short: "Recycling request intake and admin console",
	// Without a subcommand the server starts
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server (default)",
	RunE:  runServe,
}

func main() {
	rootCmd.AddCommand(serveCmd, adminCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		return err
	}
	defer utils.Logger.Sync() //nolint:errcheck

	db := config.InitDatabase()
	rc := utils.GetRedis()

	local := backend.NewLocal(backend.Options{
		DB:                   db,
		Redis:                rc,
		JWTSecret:            cfg.JWTSecret,
		SessionTTL:           cfg.SessionTTL(),
		StorageDir:           cfg.StorageDir,
		PublicBaseURL:        cfg.PublicBaseURL,
		MaxImageBytes:        cfg.MaxImageBytes(),
		MaxImages:            cfg.MaxImages,
		DefaultRetentionDays: cfg.DefaultRetentionDays,
		Logger:               utils.Named("backend"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Expired submissions are removed in the background
	local.StartRetentionSweeper(ctx, cfg.RetentionSweepInterval())

	consoles := console.NewManager(local, utils.Named("console"), nil, cfg.DefaultRetentionDays)
	go consoles.Run(ctx, cfg.CountdownInterval())

	intakeSvc := intake.NewService(local, cfg.MaxImages, cfg.MaxImageBytes(), utils.Named("intake"))

	accessLog, err := utils.NewAccessLogger(cfg)
	if err != nil {
		utils.Sugar.Warnf("gin access log unavailable, falling back to default recovery: %v", err)
		accessLog = nil
	}

	r, err := routes.SetupRouter(routes.Deps{
		Config:    cfg,
		Auth:      local,
		Consoles:  consoles,
		Intake:    intakeSvc,
		AccessLog: accessLog,
	})
	if err != nil {
		return fmt.Errorf("setup router: %w", err)
	}

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	err = utils.GraceServer(ctx, ":"+cfg.AppPort, r, func() {
		cancel()
		consoles.Close()
		local.Close()
		if rc != nil {
			_ = rc.Close()
		}
	})
	if err != nil {
		utils.Sugar.Errorf("server stopped with error: %v", err)
	}
	return err
}
