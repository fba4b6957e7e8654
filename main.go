package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"hr-attendance-bot/bot"
	"hr-attendance-bot/config"
	"hr-attendance-bot/internal/handlers"
	"hr-attendance-bot/internal/models"
	"hr-attendance-bot/internal/repository"
	"hr-attendance-bot/internal/services"
)

// application holds the wired components
type application struct {
	db          *sql.DB
	botAPI      *tgbotapi.BotAPI
	bot         *bot.Bot
	notifier    *bot.Notifier
	scanHandler *handlers.ScanHandler
}

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("Config loaded successfully")

	// Create application context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutdown signal received, initiating graceful shutdown...")
		cancel()
	}()

	// Initialize application dependencies
	app, err := initApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.db.Close()

	// Start Telegram polling
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := app.botAPI.GetUpdatesChan(u)
	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		app.bot.Run(ctx, updates)
	}()
	log.Println("Telegram Bot Initialized")
	app.notifier.SendNotification("🤖 Attendance bot started")

	// Setup HTTP server
	mux := http.NewServeMux()
	mux.HandleFunc("/api/scan", app.scanHandler.HandleScan)
	mux.HandleFunc("/health", handlers.HandleHealth)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2*cfg.HTTPTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	app.botAPI.StopReceivingUpdates()
	<-botDone

	log.Println("Server stopped gracefully")
}

// initApplication initializes all application dependencies
func initApplication(cfg *config.Config) (*application, error) {
	db, err := repository.OpenSessionDB(cfg.SessionDBPath)
	if err != nil {
		return nil, err
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		db.Close()
		return nil, err
	}
	botAPI.Debug = false
	log.Printf("Authorized on account %s", botAPI.Self.UserName)

	// Initialize repositories
	hrClient := repository.NewHRRESTClient(cfg.HRBaseURL, cfg.HTTPTimeout)
	sessionRepo := repository.NewSQLiteSessionRepository(db)
	geocoder := repository.NewNominatimGeocoder(cfg.GeocoderURL, cfg.GeocoderUserAgent, cfg.HTTPTimeout)

	// Create bot notifier wrapper
	notifier := bot.NewNotifier(botAPI, cfg.AuthorizedChatID)

	// Initialize services
	registry := services.NewControllerRegistry()
	scanService := services.NewScanService(registry, notifier)

	telegramBot := bot.New(botAPI, bot.Deps{
		Auth:     hrClient,
		Sessions: sessionRepo,
		Backend:  func(s *models.Session) bot.Backend { return hrClient.ForSession(s) },
		Geocoder: geocoder,
		Registry: registry,
		Scans:    scanService,
	}, bot.Options{
		QRScanEnabled:  cfg.QRScanEnabled,
		ScanRearmDelay: cfg.ScanRearmDelay,
		LocationMaxAge: cfg.LocationMaxAge,
		HTTPClient:     &http.Client{Timeout: cfg.HTTPTimeout},
	})

	// Initialize handlers
	if cfg.ScannerToken == "" {
		log.Println("⚠️ SCANNER_TOKEN is not set, /api/scan rejects every request")
	}
	scanHandler := handlers.NewScanHandler(scanService, cfg.ScannerToken)

	return &application{
		db:          db,
		botAPI:      botAPI,
		bot:         telegramBot,
		notifier:    notifier,
		scanHandler: scanHandler,
	}, nil
}
