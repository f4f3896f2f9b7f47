package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"progress/internal/api"
	"progress/internal/auth"
	"progress/internal/config"
	"progress/internal/database"
	"progress/internal/logger"
	"progress/internal/mailer"
	"progress/internal/push"
	"progress/internal/reminder"
	"progress/internal/store"
	"progress/internal/tracker"

	"github.com/alecthomas/kong"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const shutdownTimeout = 30 * time.Second

// Globals are shared by every command.
type Globals struct {
	Config string `help:"Path to config.yaml. Defaults to ./config.yaml when present." type:"path"`
}

var CLI struct {
	Globals

	Serve   ServeCmd   `cmd:"" default:"1" help:"Run the HTTP API and the daily reminder scheduler."`
	Remind  RemindCmd  `cmd:"" help:"Run one goal reminder sweep and print the summary."`
	Migrate MigrateCmd `cmd:"" help:"Apply schema migrations and seed templates."`
}

// runtime holds what every command opens at startup.
type runtime struct {
	cfg      *config.Config
	db       *sql.DB
	store    *store.Store
	location *time.Location
}

func open(g *Globals) (*runtime, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(logger.Config{Debug: cfg.Log.Debug, Dir: cfg.Log.Dir}); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	loc, err := cfg.Reminders.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid reminder timezone %q: %w", cfg.Reminders.Timezone, err)
	}

	db, err := database.Open(cfg.Database.Path, cfg.Database.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	// Migrations are idempotent, so every command applies them.
	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &runtime{cfg: cfg, db: db, store: store.New(db), location: loc}, nil
}

func (rt *runtime) sweeper(sender *push.Sender) *reminder.Sweeper {
	return &reminder.Sweeper{
		Store:      rt.store,
		Dispatcher: mailer.New(rt.cfg.SMTP),
		Push:       sender,
		Location:   rt.location,
		AppURL:     rt.cfg.AppURL,
	}
}

type ServeCmd struct{}

func (ServeCmd) Run(g *Globals) error {
	rt, err := open(g)
	if err != nil {
		return err
	}
	defer rt.db.Close()
	cfg := rt.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}

	manager, err := auth.NewManager(auth.Config{
		Secret:              cfg.Auth.JWTSecret,
		RefreshSecret:       cfg.Auth.RefreshSecret,
		AccessTokenMinutes:  cfg.Auth.AccessTokenMinutes,
		RefreshTokenDays:    cfg.Auth.RefreshTokenDays,
		RememberRefreshDays: cfg.Auth.RememberRefreshDays,
		CookieSecure:        cfg.Auth.CookieSecure,
	})
	if err != nil {
		return err
	}
	if !cfg.Auth.CookieSecure {
		logger.Warn("COOKIE_SECURE is disabled, refresh cookies will be sent over plain HTTP")
	}

	pushSender := push.New(cfg.Push, rt.store)
	sweeper := rt.sweeper(pushSender)
	if !pushSender.Configured() {
		logger.Info("web push not configured (set VAPID_PUBLIC_KEY, VAPID_PRIVATE_KEY, VAPID_SUBJECT)")
	}
	if !cfg.SMTP.Configured() {
		logger.Warn("SMTP not configured, emails will be skipped")
	}

	var scheduler *reminder.Scheduler
	if cfg.Reminders.Enabled {
		scheduler, err = reminder.NewScheduler(sweeper, cfg.Reminders.Schedule, rt.location)
		if err != nil {
			return fmt.Errorf("invalid reminder schedule %q: %w", cfg.Reminders.Schedule, err)
		}
		// Habit reminders are push-only.
		if pushSender.Configured() {
			habits := &reminder.HabitReminders{
				Store:    rt.store,
				Push:     pushSender,
				Location: rt.location,
				AppURL:   cfg.AppURL,
			}
			if err := scheduler.AddHabitReminders(habits, cfg.Reminders.HabitSchedule); err != nil {
				return fmt.Errorf("invalid habit reminder schedule %q: %w", cfg.Reminders.HabitSchedule, err)
			}
		}
		scheduler.Start()
	} else {
		logger.Info("reminder scheduler disabled (set ENABLE_WORKERS=true to enable)")
	}

	if n, err := rt.store.PruneRefreshTokens(context.Background()); err != nil {
		logger.Warn("failed to prune refresh tokens", "err", err)
	} else if n > 0 {
		logger.Info("pruned expired refresh tokens", "count", n)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: api.ErrorHandler,
	})
	app.Use(recover.New())
	app.Use(fiberlogger.New())

	if cfg.Server.AllowedOrigins == "*" {
		logger.Warn("CORS allows every origin")
	}
	logger.Info("CORS configured", "origins", cfg.Server.AllowedOrigins)
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: cfg.Server.AllowedOrigins != "*",
	}))

	api.SetupRoutes(app, &api.Deps{
		Config:  cfg,
		Store:   rt.store,
		Auth:    manager,
		Tracker: tracker.NewService(rt.store, rt.location),
		Mailer:  sweeper.Dispatcher,
		Push:    pushSender,
		Sweeper: sweeper,
	})

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + strconv.Itoa(cfg.Server.Port)
		logger.Info("server starting", "addr", addr)
		errCh <- app.Listen(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("server shutdown failed", "err", err)
	}
	if scheduler != nil {
		if err := scheduler.Stop(ctx); err != nil {
			logger.Error("reminder scheduler did not stop cleanly", "err", err)
		}
	}
	return nil
}

type RemindCmd struct {
	At string `help:"Evaluate the sweep as of this RFC 3339 time instead of now."`
}

func (c RemindCmd) Run(g *Globals) error {
	rt, err := open(g)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	now := time.Now()
	if c.At != "" {
		if now, err = time.Parse(time.RFC3339, c.At); err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
	}

	summary, err := rt.sweeper(push.New(rt.cfg.Push, rt.store)).Run(context.Background(), now)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

type MigrateCmd struct{}

func (MigrateCmd) Run(g *Globals) error {
	rt, err := open(g)
	if err != nil {
		return err
	}
	defer rt.db.Close()
	logger.Info("migrations applied", "database", rt.cfg.Database.Path)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("progress"),
		kong.Description("Habits, goals and journal tracker backend"),
		kong.UsageOnError(),
	)

	if err := ctx.Run(&CLI.Globals); err != nil {
		logger.Error("command failed", "err", err)
		os.Exit(1)
	}
}
