package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/WorkQuest/admin-backend-sub000/internal/chat"
	"github.com/WorkQuest/admin-backend-sub000/internal/config"
	"github.com/WorkQuest/admin-backend-sub000/internal/handler"
	"github.com/WorkQuest/admin-backend-sub000/internal/logger"
	"github.com/WorkQuest/admin-backend-sub000/internal/middleware"
	"github.com/WorkQuest/admin-backend-sub000/internal/notify"
	"github.com/WorkQuest/admin-backend-sub000/internal/repository"
	"github.com/WorkQuest/admin-backend-sub000/internal/startup"
	"github.com/WorkQuest/admin-backend-sub000/internal/storage"
	"github.com/WorkQuest/admin-backend-sub000/internal/storage/memory"
	"github.com/WorkQuest/admin-backend-sub000/internal/unread"
	"github.com/WorkQuest/admin-backend-sub000/internal/ws"
	"github.com/WorkQuest/admin-backend-sub000/migrations"
)

func main() {
	logger.SetPrefix("admin")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL and in-memory cache (no external services required)")
	flag.Parse()

	logger.Info("starting admin service")
	cfg := config.Load()

	var embeddedDB *embeddedpostgres.EmbeddedPostgres
	if *dev {
		var err error
		embeddedDB, err = startEmbeddedPostgres(cfg)
		if err != nil {
			logger.Errorf("embedded postgres: %v", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("stopping embedded postgres...")
			if err := embeddedDB.Stop(); err != nil {
				logger.Errorf("embedded postgres stop: %v", err)
			}
		}()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		logger.Errorf("parse db config: %v", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConnections())
	poolCfg.MinConns = 4

	pool := startup.ConnectDBWithRetry(poolCfg, 60*time.Second)
	defer pool.Close()

	runMigrations(pool)
	if *migrate && !*dev {
		return
	}
	logger.Info("database connected, migrations applied")

	var store storage.UnreadStore
	if *dev || cfg.Redis.URL == "" {
		store = memory.New()
	} else {
		store = startup.ConnectRedisWithRetry(cfg.Redis.URL, 60*time.Second)
	}
	defer store.Close()

	adminRepo := repository.NewAdminRepository()
	maintainer := unread.NewMaintainer(pool, adminRepo, store)
	hub := ws.NewHub(cfg.MaxWSConnections)
	pushClient := notify.NewPushClient(cfg.PushServiceURL)
	engine := chat.NewEngine(pool, notify.Multi{hub, pushClient}, maintainer)

	bgCtx, bgCancel := context.WithCancel(context.Background())
	var bgWg sync.WaitGroup
	bgWg.Add(2)
	go func() {
		defer bgWg.Done()
		hub.Run(bgCtx)
	}()
	go func() {
		defer bgWg.Done()
		maintainer.Run(bgCtx)
	}()

	chatH := handler.NewChatHandler(engine)
	msgH := handler.NewMessageHandler(engine)
	starH := handler.NewStarHandler(engine)
	disputeH := handler.NewDisputeHandler(engine)
	unreadH := handler.NewUnreadHandler(maintainer)
	pushH := handler.NewPushHandler(pushClient, cfg.VAPIDPublicKey)
	wsH := handler.NewWSHandler(hub, cfg.CORSAllowedOrigins)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RecoverJSON)
	r.Use(middleware.RequestLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSAllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Session-Id", "X-Timestamp", "X-Signature"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })
	r.Get("/api/push/key", pushH.VAPIDKey)

	// Сессионные маршруты: admin_id берётся из проверки сессии на auth-сервисе.
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthServiceValidate(cfg.AuthServiceURL, nil))
		r.Use(middleware.RateLimitAPI(store))

		r.Get("/api/chats", chatH.ListChats)
		r.Post("/api/chats/group", chatH.CreateGroupChat)
		r.Post("/api/chats/private", chatH.SendToAdmin)
		r.Post("/api/chats/{chatID}/members", chatH.AddMembers)
		r.Delete("/api/chats/{chatID}/members/{adminID}", chatH.RemoveMember)
		r.Post("/api/chats/{chatID}/leave", chatH.Leave)

		r.Get("/api/chats/{chatID}/messages", msgH.List)
		r.Post("/api/chats/{chatID}/messages", msgH.Send)
		r.Post("/api/chats/{chatID}/read", msgH.SetRead)

		r.Post("/api/chats/{chatID}/star", starH.StarChat)
		r.Delete("/api/chats/{chatID}/star", starH.UnstarChat)
		r.Post("/api/messages/{messageID}/star", starH.StarMessage)
		r.Delete("/api/messages/{messageID}/star", starH.UnstarMessage)
		r.Get("/api/chats/starred", starH.ListStarredChats)
		r.Get("/api/messages/starred", starH.ListStarredMessages)

		r.Post("/api/disputes/{disputeID}/take", disputeH.Take)
		r.Post("/api/disputes/{disputeID}/decide", disputeH.Decide)

		r.Get("/api/chats/unread", unreadH.Badge)
		r.Post("/api/push/subscribe", pushH.Subscribe)
		r.Delete("/api/push/subscribe", pushH.Unsubscribe)
		r.Get("/ws", wsH.ServeWS)
	})

	// Межсервисные маршруты: сервисный JWT или приватная сеть.
	r.Group(func(r chi.Router) {
		r.Use(middleware.InternalOnly(cfg.ServiceTokenSecret))
		r.Post("/internal/quest-chats", chatH.CreateQuestChat)
		r.Post("/internal/quest-chats/{chatID}/close", chatH.CloseQuestChat)
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	bgCancel()
	bgWg.Wait()
	logger.Info("hub and unread maintainer stopped")
	srvWg.Wait()
	logger.Info("server goroutine exited")
}

func runMigrations(pool *pgxpool.Pool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	files := []string{"001_init.sql"}
	for _, f := range files {
		data, err := migrations.Files.ReadFile(f)
		if err != nil {
			logger.Errorf("read migration %s: %v", f, err)
			os.Exit(1)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			logger.Errorf("run migration %s: %v", f, err)
			os.Exit(1)
		}
	}
	logger.Info("migrations applied")
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "admin"
		password = "admin_secret"
		database = "admin_backend"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
