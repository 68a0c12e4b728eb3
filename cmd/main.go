package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tonojkeee/koordinator/internal/api"
	"github.com/tonojkeee/koordinator/internal/api/middleware"
	"github.com/tonojkeee/koordinator/internal/attachments"
	"github.com/tonojkeee/koordinator/internal/cli"
	"github.com/tonojkeee/koordinator/internal/config"
	"github.com/tonojkeee/koordinator/internal/database"
	"github.com/tonojkeee/koordinator/internal/services"
	"github.com/tonojkeee/koordinator/internal/settings"
	"github.com/tonojkeee/koordinator/internal/smtpd"
	"github.com/tonojkeee/koordinator/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	db, err := database.Initialize(database.Options{
		Driver:   cfg.DatabaseDriver,
		Path:     cfg.DatabasePath,
		DSN:      cfg.DatabaseDSN,
		LogLevel: cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	store, err := openStorage(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize attachment storage: %v", err)
	}

	serviceKeys, err := middleware.NewServiceKeyManager(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to initialize service key: %v", err)
	}

	settingsStore := settings.NewStore(db)
	typed := settings.New(settingsStore, cfg.InternalEmailDomain)

	logService := services.NewLogServiceWithLevel(db, cfg.LogLevel)
	userService := services.NewUserService(db)
	accountService := services.NewAccountService(db, userService, typed, logService)
	transmitter := services.NewSMTPTransmitter(typed)

	ingestService := services.NewIngestService(db, accountService, attachments.NewExtractor(store), typed, logService)

	// Check if running CLI command
	if len(os.Args) > 1 {
		cli.Execute(&cli.Services{
			Users:       userService,
			Accounts:    accountService,
			Settings:    settingsStore,
			Ingester:    ingestService,
			Transmitter: transmitter,
			ServiceKeys: serviceKeys,
		})
		return
	}

	router := api.SetupRouter(cfg, api.Dependencies{
		Users:       userService,
		Accounts:    accountService,
		Emails:      services.NewEmailService(db, store, transmitter, logService),
		Folders:     services.NewFolderService(db),
		Ingester:    ingestService,
		Logs:        logService,
		Settings:    settingsStore,
		JWT:         middleware.NewJWTManager(cfg.JWTSecret, middleware.DefaultTokenExpiry),
		ServiceKeys: serviceKeys,
	})
	httpServer := &http.Server{Addr: ":" + cfg.APIPort, Handler: router}

	log.Printf("Starting Koordinator API on port %s", cfg.APIPort)
	log.Printf("Database: %s", cfg.DatabaseDriver)
	log.Printf("Attachment storage: %s", cfg.Storage.Backend)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	var smtpServer interface{ Close() error }
	if cfg.SMTPListen != "" {
		s := smtpd.NewServer(smtpd.NewBackend(ingestService), smtpd.Options{
			Addr:            cfg.SMTPListen,
			Domain:          cfg.SMTPDomain,
			MaxMessageBytes: cfg.MaxMessageBytes,
			MaxRecipients:   100,
			Timeout:         5 * time.Minute,
		})
		smtpServer = s
		log.Printf("Accepting inbound mail on %s", cfg.SMTPListen)
		go func() {
			if err := s.ListenAndServe(); err != nil {
				log.Printf("[smtpd] listener stopped: %v", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down")

	if smtpServer != nil {
		smtpServer.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
}

func openStorage(cfg *config.Config) (storage.Store, error) {
	switch strings.ToLower(cfg.Storage.Backend) {
	case "s3":
		return storage.NewS3(storage.S3Options{
			Bucket:   cfg.Storage.S3Bucket,
			Region:   cfg.Storage.S3Region,
			Endpoint: cfg.Storage.S3Endpoint,
			Prefix:   cfg.Storage.S3Prefix,
		})
	default:
		return storage.NewDisk(cfg.GetAttachmentsDir())
	}
}
