package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"face-search/internal/api/docs"
	"face-search/internal/api/handlers"
	"face-search/internal/api/middleware"
	"face-search/internal/api/websocket"
	"face-search/internal/config"
	"face-search/internal/repository"
	"face-search/internal/service/cache"
	"face-search/internal/service/proxy"
	"face-search/pkg/gateway_client"
	"face-search/pkg/recognition_client"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	httpSwagger "github.com/swaggo/http-swagger"
)

// sessionTimeout - таймаут запросов живых websocket сессий к шлюзу
const sessionTimeout = 60 * time.Second

func main() {
	// ASCII баннер
	printBanner()

	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.Server.Environment)
	slog.SetDefault(logger)
	logger.Info("✅ Конфигурация загружена", "env", cfg.Server.Environment)

	if err := run(cfg, logger); err != nil {
		logger.Error("❌ Сервер остановлен с ошибкой", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		repo       repository.RepositoryInterface
		statsCache handlers.StatsCache
	)

	// Аудит в PostgreSQL (необязателен)
	if cfg.Database.AuditEnabled() {
		db, err := initDatabase(cfg.Database)
		if err != nil {
			return fmt.Errorf("подключение к БД: %w", err)
		}
		defer db.Close()

		if err := repository.Migrate(db.DB); err != nil {
			return fmt.Errorf("миграции: %w", err)
		}
		repo = repository.NewRepository(db)
		logger.Info("✅ База данных подключена, аудит включен")
	} else {
		logger.Info("ℹ️  DATABASE_DSN не задан, аудит отключен")
	}

	// Инициализируем сервис распознавания и шлюз
	recognitionClient := recognition_client.NewClient(cfg.Upstream.APIURL, cfg.Upstream.Timeout)
	proxyService := proxy.NewService(recognitionClient, logger)
	logger.Info("✅ Сервис распознавания", "url", cfg.Upstream.APIURL, "timeout", cfg.Upstream.Timeout)

	// Инициализируем Redis кэш (необязателен)
	if cfg.Redis.CacheEnabled() {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		cacheService, err := cache.NewService(pingCtx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		cancel()
		if err != nil {
			logger.Warn("⚠️  Redis недоступен (работаем без кэша)", "error", err)
		} else {
			defer cacheService.Close()
			proxyService.WithCache(cacheService)
			statsCache = cacheService
			logger.Info("✅ Redis кэш подключен", "ttl", cfg.Redis.TTL)
		}
	}

	// Инициализируем WebSocket manager
	wsManager := websocket.NewManager(logger)
	go wsManager.Run(ctx) // Запускаем в отдельной горутине
	logger.Info("✅ WebSocket manager запущен")

	handler := handlers.NewHandler(proxyService, repo, statsCache, logger)
	wsHandler := websocket.NewHandler(wsManager, gateway_client.NewClient(cfg.Gateway.URL, sessionTimeout), logger)

	// Создаем роутер
	router := setupRouter(handler, wsHandler, cfg, logger)

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("🎉 Сервер успешно запущен!")
	logger.Info("📡 API: http://localhost:" + cfg.Server.Port + "/api/encode_face")
	logger.Info("📖 Swagger: http://localhost:" + cfg.Server.Port + "/swagger/index.html")
	logger.Info("🔌 WebSocket: ws://localhost:" + cfg.Server.Port + "/ws")

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("🛑 Остановка сервера...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// initDatabase инициализирует подключение к базе данных
func initDatabase(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}

	// Настраиваем connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	return db, nil
}

// setupRouter настраивает роутер с middleware и endpoints
func setupRouter(handler *handlers.Handler, wsHandler *websocket.Handler, cfg *config.Config, logger *slog.Logger) *gin.Engine {
	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS())

	// Swagger
	docs.SwaggerInfo.Version = handlers.Version
	router.GET("/swagger/*any", gin.WrapH(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	)))

	// WebSocket endpoint
	router.GET("/ws", wsHandler.HandleWebSocket)

	// API группа
	api := router.Group("/api")
	{
		// Шлюз: любой метод, кроме POST, получает 405 от обработчика
		api.Any("/encode_face", handler.HandleEncodeFace)

		// Аудит
		api.GET("/stats", handler.HandleGetStats)
		api.GET("/searches", handler.HandleRecentSearches)
	}

	// Health check endpoint
	router.GET("/health", handler.HandleHealth)

	return router
}

// printBanner печатает баннер при старте
func printBanner() {
	banner := `
╔═══════════════════════════════════════════════════════╗
║                                                       ║
║   🔎  FACE SEARCH GATEWAY                             ║
║                                                       ║
║   Поиск похожих лиц по фотографии                     ║
║                                                       ║
╚═══════════════════════════════════════════════════════╝
`
	fmt.Println(banner)
}
