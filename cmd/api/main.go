package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/reelsync/backend/internal/api"
	"github.com/reelsync/backend/internal/auth"
	"github.com/reelsync/backend/internal/catalog"
	"github.com/reelsync/backend/internal/community"
	"github.com/reelsync/backend/internal/config"
	"github.com/reelsync/backend/internal/domain"
	"github.com/reelsync/backend/internal/firebaseapp"
	"github.com/reelsync/backend/internal/kv"
	"github.com/reelsync/backend/internal/notify"
	"github.com/reelsync/backend/internal/recents"
	"github.com/reelsync/backend/internal/reconcile"
	"github.com/reelsync/backend/internal/repository"
	"github.com/reelsync/backend/internal/watchlist"
)

const version = "1.0.0"

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting ReelSync API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checks := map[string]api.Check{}

	// Durable per-device storage
	devices, err := kv.OpenBadger(cfg.Storage.BadgerPath)
	if err != nil {
		logger.Fatal("Failed to open device store", zap.Error(err))
	}
	defer devices.Close()

	// Account database. Without it only the guest flow works.
	var accounts domain.AccountRepository
	if cfg.Database.URL != "" {
		db, err := repository.Connect(ctx, cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		repo := repository.NewPostgresRepository(db)
		if err := repo.InitSchema(ctx); err != nil {
			logger.Fatal("Failed to initialize schema", zap.Error(err))
		}
		accounts = repo
		checks["database"] = repo.Ping
		logger.Info("Connected to database")
	} else {
		logger.Warn("DATABASE_URL is not set - sign-in is disabled")
	}

	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiry)
	googleAuth := auth.NewGoogleAuthVerifier(cfg.Google.ClientIDs)

	var popup auth.CodeExchanger
	if len(cfg.Google.ClientIDs) > 0 {
		if p := auth.NewGooglePopup(auth.PopupConfig{
			ClientID:     cfg.Google.ClientIDs[0],
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
		}); p != nil {
			popup = p
		}
	}
	if popup != nil && googleAuth.IsConfigured() {
		logger.Info("Google OAuth is configured")
	} else {
		logger.Warn("Google OAuth is NOT configured - set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET to enable")
	}

	provider := auth.NewProvider(accounts, jwtManager, googleAuth, popup, logger)

	// Remote document store
	var (
		watchlistRemote watchlist.Source
		recentsRemote   recents.Remote
		communityRepo   community.Repository
	)
	if cfg.UseFirestore() {
		fb, err := firebaseapp.NewClient(ctx, firebaseapp.Config{
			ProjectID:       cfg.Firebase.ProjectID,
			CredentialsFile: cfg.Firebase.CredentialsFile,
		}, logger)
		if err != nil {
			// Signed-in writes fail closed until the store is reachable
			logger.Error("Failed to initialize Firestore - remote watchlists are unavailable", zap.Error(err))
			communityRepo = community.NewMemoryRepository()
		} else {
			defer fb.Close()
			watchlistRemote = watchlist.NewFirestoreRemote(fb.Firestore, logger)
			recentsRemote = recents.NewFirestoreRemote(fb.Firestore)
			communityRepo = community.NewFirestoreRepository(fb.Firestore)
			logger.Info("Firestore client initialized")
		}
	} else {
		logger.Warn("Using in-process remote store - data is lost on restart")
		watchlistRemote = watchlist.NewMemoryRemote()
		recentsRemote = recents.NewMemoryRemote()
		communityRepo = community.NewMemoryRepository()
	}

	// Catalog proxy
	catalogCfg := catalog.DefaultConfig(cfg.Catalog.BaseURL)
	catalogCfg.Timeout = cfg.Catalog.Timeout
	catalogCfg.CacheSizeMB = max(cfg.Catalog.CacheSize>>20, 1)
	catalogCfg.CacheTTL = cfg.Catalog.CacheTTL
	catalogClient := catalog.NewClient(catalogCfg, logger)

	// Sessions
	sessions := reconcile.NewManager(devices, provider, reconcile.Config{
		Remote:        watchlistRemote,
		RecentsRemote: recentsRemote,
		Triggers:      notify.DefaultTriggerConfig(),
	}, cfg.Session.IdleTimeout, logger)
	defer sessions.Close()
	sessions.StartReaper(ctx, cfg.Session.ReapInterval)

	// Live feed
	wsManager := api.NewWebSocketManager(cfg.Server.AllowedOrigins, logger)
	go wsManager.Run(ctx)

	communityService := community.NewService(communityRepo, logger)
	stopFeed := communityService.Subscribe(func(posts []domain.CommunityPost) {
		wsManager.Broadcast(api.WSEvent{Type: "community", Payload: posts})
	})
	defer stopFeed()

	// Initialize router
	router := api.NewRouter(api.Deps{
		Sessions:       sessions,
		Community:      communityService,
		Catalog:        api.NewCatalogHandler(catalogClient, logger),
		GoogleOAuth:    api.NewGoogleOAuthHandler(cfg.Google.PopupCallbackURL, logger),
		Health:         api.NewHealthHandler(version, checks),
		WebSocket:      wsManager,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, logger)
	r := router.Setup()

	// Create server. WriteTimeout is left to the handlers so the live feed
	// is not cut off.
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	// Stops the reaper and the live feed
	cancel()

	logger.Info("Server stopped")
}

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	}
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.Log.Level, err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
