// Точка входа Product Module — каталог товаров с QR-кодами.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// инициализирует хранилище ассетов, сервисный слой и API handlers,
// запускает topologymetrics и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/goartstore/product-module/internal/api/handlers"
	"github.com/bigkaa/goartstore/product-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/product-module/internal/api/openapi"
	"github.com/bigkaa/goartstore/product-module/internal/config"
	"github.com/bigkaa/goartstore/product-module/internal/database"
	"github.com/bigkaa/goartstore/product-module/internal/domain/idgen"
	"github.com/bigkaa/goartstore/product-module/internal/qrcode"
	"github.com/bigkaa/goartstore/product-module/internal/repository"
	"github.com/bigkaa/goartstore/product-module/internal/server"
	"github.com/bigkaa/goartstore/product-module/internal/service"
	"github.com/bigkaa/goartstore/product-module/internal/storage/assets"
	"github.com/bigkaa/goartstore/product-module/internal/storage/filestore"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Product Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// Предупреждения о дефолтных значениях
	if os.Getenv("PM_DEPHEALTH_GROUP") == "" {
		logger.Warn("PM_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}
	if cfg.PublicOrigin == "" {
		logger.Warn("PM_PUBLIC_ORIGIN не задан, origin для QR-кодов вычисляется из запроса",
			slog.Bool("trust_forwarded_headers", cfg.TrustForwardedHeaders),
		)
	}

	// 3. OpenAPI контракт
	ctx := context.Background()
	apiDoc, err := openapi.Load(ctx)
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI документа", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 5. Подключение к PostgreSQL (pgxpool)
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 5.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 6. Хранилище ассетов (изображения и QR-коды)
	files, err := filestore.New(cfg.DataDir)
	if err != nil {
		logger.Error("Ошибка инициализации директории данных",
			slog.String("data_dir", cfg.DataDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	assetStore := assets.New(files, assets.Options{
		Buckets:   []string{cfg.ImageBucket, cfg.QRBucket},
		BaseURL:   cfg.AssetBaseURL,
		CacheSize: cfg.AssetCacheSize,
		CacheTTL:  cfg.AssetCacheTTL,
	}, logger)
	logger.Info("Хранилище ассетов инициализировано",
		slog.String("data_dir", files.DataDir()),
		slog.String("image_bucket", cfg.ImageBucket),
		slog.String("qr_bucket", cfg.QRBucket),
	)

	// 7. Repositories и services
	productRepo := repository.NewProductRepository(pool)
	qrEncoder := qrcode.NewEncoder()
	productSvc := service.NewProductService(service.ProductServiceDeps{
		IDs:          idgen.UUIDGenerator{},
		Assets:       assetStore,
		QR:           qrEncoder,
		Repo:         productRepo,
		Logger:       logger,
		MaxImageSize: cfg.MaxImageSize,
		Buckets: service.Buckets{
			Images: cfg.ImageBucket,
			QR:     cfg.QRBucket,
		},
	})

	// 8. topologymetrics — мониторинг зависимостей (PostgreSQL)
	var dephealthSvc *service.DephealthService
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"product-module",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 9. Readiness checkers (таблица products + директория данных)
	pgChecker := database.NewReadinessChecker(productRepo)
	healthHandler := handlers.NewHealthHandler(pgChecker, assetStore)

	// 10. API handler (реализует handlers.ServerInterface)
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		productSvc,
		assetStore,
		qrEncoder,
		apiDoc.Raw,
		handlers.Options{
			PublicOrigin:          cfg.PublicOrigin,
			MaxImageSize:          cfg.MaxImageSize,
			TrustForwardedHeaders: cfg.TrustForwardedHeaders,
		},
		logger,
	)

	// 11. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler,
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 12. Graceful shutdown фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Product Module остановлен")
}
