package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/jhoicas/obrastock-api/internal/application/auth"
	"github.com/jhoicas/obrastock-api/internal/infrastructure/metrics"
	"github.com/jhoicas/obrastock-api/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/obrastock-api/internal/interfaces/http"
	"github.com/jhoicas/obrastock-api/pkg/config"
	"github.com/jhoicas/obrastock-api/pkg/logger"
)

func runMigrations(dsn string) error {
	sqlDB, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return goose.Up(sqlDB, "migrations")
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	if err := runMigrations(cfg.DB.ConnectionString()); err != nil {
		log.Fatal().Err(err).Msg("aplicar migraciones")
	}
	log.Info().Msg("migraciones aplicadas")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	userRepo := postgres.NewUserRepository(pool)
	materialRepo := postgres.NewMaterialRepository(pool)
	projectRepo := postgres.NewProjectRepository(pool)

	// Change feed: una conexión dedicada en LISTEN reparte los cambios de
	// filas a las sesiones suscritas.
	listenerCtx, stopListener := context.WithCancel(ctx)
	defer stopListener()
	listener := postgres.NewListener(pool, log)
	go func() {
		if err := listener.Run(listenerCtx); err != nil && listenerCtx.Err() == nil {
			log.Error().Err(err).Msg("change feed finalizado")
		}
	}()

	sessions := httpRouter.NewSessionManager(httpRouter.SessionDeps{
		Materials:    materialRepo,
		Projects:     projectRepo,
		MaterialFeed: listener,
		ProjectFeed:  listener,
		Log:          log,
	})
	defer sessions.Shutdown()

	authUC := auth.NewAuthUseCase(userRepo, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "ObraStock API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		AuthUC:    authUC,
		Sessions:  sessions,
		JWTSecret: cfg.JWT.Secret,
	})

	var metricsSrv *metrics.Server
	if cfg.Metrics.Enabled {
		metricsSrv = metrics.NewServer(cfg.Metrics.Addr)
		go func() {
			if err := metricsSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("servidor de métricas finalizado")
			}
		}()
		log.Info().Str("addr", cfg.Metrics.Addr).Msg("métricas Prometheus expuestas")
	}

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopListener()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("apagado del servidor de métricas")
		}
	}

	log.Info().Msg("aplicación detenida")
}
