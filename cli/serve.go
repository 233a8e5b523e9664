package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"protocol-backend/handlers"
	"protocol-backend/middleware"
	"protocol-backend/services"
	"protocol-backend/utils"
	"protocol-backend/workers"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Migrate bool
}

func NewServeCommand(root *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: root}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server, scheduler and participant worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Migrate, "migrate", true, "run database migrations before serving")
	return cmd
}

func runServe(parent context.Context, opts *ServeOptions) error {
	cfg, log, db, err := bootstrap(opts.RootOptions)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	if err := cfg.RequireServer(); err != nil {
		return err
	}
	if opts.Migrate {
		if err := migrate(db); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store handlers.ObjectStore
	if cfg.R2.Enabled() {
		r2, err := utils.NewR2Client(ctx, cfg.R2)
		if err != nil {
			return err
		}
		store = r2
	} else {
		log.Warn("⚠️ R2 not configured, cover uploads disabled")
	}

	emblems := services.NewEmblemService(db)
	badges := services.NewBadgeService(db)
	lore := services.NewLoreService(db)
	timelines := services.NewTimelineService(db, emblems, log)
	interactions := services.NewInteractionService(db, lore, services.NewCompletionEngine(badges, log), log)
	navigation := services.NewNavigationService(db)
	agents := services.NewAgentService(db)

	app := fiber.New(fiber.Config{
		BodyLimit:             16 * 1024 * 1024,
		DisableStartupMessage: true,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// 🔐❗ GLOBAL: Only Gateway requests allowed
	app.Use(middleware.GatewayAuthMiddleware(cfg.GatewayToken, log))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	handlers.SetupTimelineRoutes(app, timelines, store, log)
	handlers.SetupProtocolRoutes(app, interactions, navigation, agents, log)

	sched, err := timelines.StartOpenScheduler(ctx, cfg.SchedulerInterval)
	if err != nil {
		return err
	}
	syncWorker := workers.NewParticipantSyncWorker(db, cfg.ParticipantSyncInterval, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		syncWorker.Start(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info("✅ Server running", zap.String("port", cfg.Port), zap.String("origins", cfg.AllowedOrigins))
		return app.Listen(":" + cfg.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		shutdownErr := sched.Shutdown()
		return errors.Join(shutdownErr, app.ShutdownWithTimeout(10*time.Second))
	})

	return g.Wait()
}
