package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/anama-app/personal-data-api/internal/config"
	"github.com/anama-app/personal-data-api/internal/cryptox"
	"github.com/anama-app/personal-data-api/internal/database"
	"github.com/anama-app/personal-data-api/internal/handler"
	"github.com/anama-app/personal-data-api/internal/middleware"
	"github.com/anama-app/personal-data-api/internal/models"
	"github.com/anama-app/personal-data-api/internal/repository"
	"github.com/anama-app/personal-data-api/internal/router"
	"github.com/anama-app/personal-data-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.PersonalData{}, &models.AuditLog{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	key, err := loadEncryptionKey(cfg, logger)
	if err != nil {
		log.Fatalf("failed to load encryption key: %v", err)
	}

	fieldCipher, err := cryptox.NewFieldCipher(key)
	if err != nil {
		log.Fatalf("failed to initialise field cipher: %v", err)
	}

	var publisher service.AuditPublisher
	if cfg.NATSURL != "" {
		conn, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer conn.Close()
		publisher = service.NewNATSAuditPublisher(conn, cfg.AuditSubjectBase, logger)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	personalDataRepo := repository.NewPersonalDataRepository(db)
	auditLogRepo := repository.NewAuditLogRepository(db)

	personalDataService := service.NewPersonalDataService(personalDataRepo, auditLogRepo, fieldCipher, publisher, validate, logger)
	personalDataHandler := handler.NewPersonalDataHandler(personalDataService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})

	var authMiddleware fiber.Handler
	if cfg.JWTSecret != "" {
		authMiddleware = middleware.JWTProtected(cfg.JWTSecret)
	}

	router.Register(app, cfg, router.Dependencies{
		PersonalDataHandler: personalDataHandler,
		AuthMiddleware:      authMiddleware,
	})

	logger.Info().Str("region", cfg.AppRegion).Str("addr", cfg.HTTPAddress()).Msg("personal data server starting")

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func loadEncryptionKey(cfg config.Config, logger zerolog.Logger) ([]byte, error) {
	if cfg.EncryptionKeyHex != "" {
		return cryptox.KeyFromHex(cfg.EncryptionKeyHex)
	}

	logger.Warn().Msg("no encryption key configured; generated an ephemeral key - data encrypted under it is unreadable after restart")
	return cryptox.GenerateKey()
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
