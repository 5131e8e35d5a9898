package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cucumber_hub/internal/config"
	"cucumber_hub/internal/db"
	httpServer "cucumber_hub/internal/http"
	"cucumber_hub/internal/http/handlers"
	"cucumber_hub/internal/http/middleware"
	"cucumber_hub/internal/logger"
	"cucumber_hub/internal/repository"
	"cucumber_hub/internal/service"
	"cucumber_hub/internal/store"
	"cucumber_hub/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// Version устанавливается при сборке
var Version = "dev"

func main() {
	cfg := config.Load()

	logger.Init(cfg.LogLevel, cfg.LogFormat == "json")
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hub := ws.NewHub()

	// хранилище и публикация: Redis для нескольких инстансов, иначе память процесса
	var (
		st        store.Store
		publisher service.Publisher = hub
		rdb       *redis.Client
	)
	if cfg.UseRedis() {
		var err error
		rdb, err = db.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal("redis недоступен", "error", err)
		}
		defer rdb.Close()

		st = store.NewRedisStore(rdb, cfg.RoomArchiveTTL)
		publisher = ws.NewRedisPublisher(rdb)
		go func() {
			if err := hub.Run(ctx, rdb); err != nil {
				logger.Fatal("подписка на каналы мест упала", "error", err)
			}
		}()
		log.Info("redis mode", "addr", cfg.RedisAddr, "archive_ttl", cfg.RoomArchiveTTL)
	} else {
		st = store.NewMemoryStore(cfg.RoomArchiveTTL)
		log.Warn("REDIS_ADDR не задан: комнаты живут в памяти одного инстанса")
	}

	// журнал ходов в Postgres, если настроен
	var (
		audit   *service.AuditService
		history handlers.MoveHistory
	)
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("postgres недоступен", "error", err)
		}
		defer pool.Close()

		if err := repository.NewMoveRepository(pool).Migrate(ctx); err != nil {
			logger.Fatal("миграция move_log", "error", err)
		}
		audit = service.NewAuditService(pool)
		history = audit
		log.Info("move log enabled")
	}

	verifier, err := buildVerifier(ctx, cfg)
	if err != nil {
		logger.Fatal("не удалось настроить проверку токенов", "error", err)
	}

	opts := service.RoomServiceOptions{
		StoreTimeout:   cfg.StoreTimeout,
		PublishTimeout: cfg.PublishTimeout,
		Metrics:        service.NewMetrics(reg),
	}
	if audit != nil {
		opts.Audit = audit
	}
	rooms := service.NewRoomService(st, publisher, opts)

	var limiter *middleware.RateLimiter
	if rdb != nil {
		limiter = middleware.NewRateLimiter(rdb, cfg.RateLimitPerMinute)
	}

	r := gin.New()
	r.Use(gin.Recovery(), httpServer.CORS(cfg.AllowedOrigin))
	httpServer.RegisterRoutes(r, httpServer.Deps{
		Handler:  handlers.NewHandler(rooms, history, st, Version),
		WS:       ws.NewWSHandler(hub, rooms, verifier, cfg.AllowedOrigin),
		Verifier: verifier,
		Limiter:  limiter,
		Metrics:  reg,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server started", "port", cfg.AppPort, "version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("server exited")
}

// buildVerifier Firebase, Telegram или собственный JWT, в этом порядке
func buildVerifier(ctx context.Context, cfg *config.Config) (service.Verifier, error) {
	switch {
	case cfg.UseFirebase():
		logger.Info("auth: firebase", "project", cfg.FirebaseProjectID)
		return service.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID, cfg.FirebaseAPIKey)
	case cfg.UseTelegram():
		logger.Info("auth: telegram webapp init data")
		return service.NewTelegramVerifier(cfg.TelegramBotToken), nil
	default:
		logger.Info("auth: jwt")
		return service.NewJWTVerifier(cfg.JWTSecret)
	}
}
