// Точка входа obras-gateway, шлюза мониторинга строительных проектов.
// Загружает конфигурацию, открывает хранилище (миграции применяются при открытии),
// создаёт провайдер аутентификации и клиент backend, запускает фоновые задачи
// (очистка сессий, topologymetrics) и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/marodrigu3s/acomp-obras-metro/internal/api/handlers"
	"github.com/marodrigu3s/acomp-obras-metro/internal/auth"
	"github.com/marodrigu3s/acomp-obras-metro/internal/backend"
	"github.com/marodrigu3s/acomp-obras-metro/internal/config"
	"github.com/marodrigu3s/acomp-obras-metro/internal/keycloak"
	"github.com/marodrigu3s/acomp-obras-metro/internal/kvstore"
	"github.com/marodrigu3s/acomp-obras-metro/internal/server"
	"github.com/marodrigu3s/acomp-obras-metro/internal/service"
)

// purgeInterval — период удаления истёкших записей сессий и отзывов.
const purgeInterval = 10 * time.Minute

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("obras-gateway запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("store", cfg.StoreDriver),
		slog.String("auth", cfg.AuthProvider),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Хранилище (SQLite или PostgreSQL) с миграциями
	store, err := kvstore.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка открытия хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	checkers := map[string]handlers.ReadinessChecker{
		"store": kvstore.NewReadinessChecker(store, cfg.StoreDriver),
	}

	// 4. Провайдер аутентификации
	var provider auth.Provider
	switch cfg.AuthProvider {
	case config.AuthProviderKeycloak:
		kcProvider, kcClient, err := newKeycloakProvider(cfg, store, logger)
		if err != nil {
			logger.Error("Ошибка инициализации Keycloak", slog.String("error", err.Error()))
			os.Exit(1)
		}
		checkers["keycloak"] = kcClient
		go runPurge(ctx, "revoked", kcProvider.PurgeExpiredRevocations, logger)
		provider = kcProvider
		logger.Info("Провайдер Keycloak инициализирован",
			slog.String("url", cfg.KeycloakURL),
			slog.String("realm", cfg.KeycloakRealm),
			slog.String("jwks_url", cfg.JWTJWKSURL),
		)
	default:
		local := auth.NewLocalProvider(store, cfg.SessionSecret, cfg.SessionTTL, logger)
		if cfg.BootstrapAdminEmail != "" {
			if err := local.EnsureAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword); err != nil {
				logger.Error("Ошибка создания администратора", slog.String("error", err.Error()))
				os.Exit(1)
			}
		}
		go runPurge(ctx, "session", local.PurgeExpiredSessions, logger)
		provider = local
	}
	provider = auth.NewCachedProvider(provider, cfg.SessionCacheSize, cfg.SessionCacheTTL)

	// 5. Клиент backend obras; токен сессии берётся из контекста запроса
	backendClient, err := backend.New(cfg.BackendURL, cfg.BackendCACertPath, cfg.BackendTimeout, auth.TokenFromContext, logger)
	if err != nil {
		logger.Error("Ошибка создания клиента backend", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 6. topologymetrics — мониторинг backend и PostgreSQL
	deps := service.Dependencies{
		BackendURL:        cfg.BackendURL,
		BackendHealthPath: cfg.BackendHealthPath,
	}
	if pg, ok := store.(*kvstore.PostgresStore); ok {
		pgDB := stdlib.OpenDBFromPool(pg.Pool())
		defer pgDB.Close()
		deps.DB = pgDB
		deps.PostgresURL = cfg.DatabaseURL()
	}
	dephealthSvc, err := service.NewDephealthService(cfg.DephealthGroup, deps, cfg.DephealthCheckInterval, logger)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
		dephealthSvc = nil
	} else if err := dephealthSvc.Start(ctx); err != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
		dephealthSvc = nil
	} else {
		checkers["dependencies"] = dephealthSvc
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 7. Обработчики и HTTP-сервер
	teams := auth.NewTeamStore(store, logger)
	apiHandler := handlers.New(backendClient, provider, teams, cfg.MaxUploadSize, logger)
	healthHandler := handlers.NewHealthHandler(checkers)

	srv := server.New(cfg, logger, apiHandler, healthHandler, provider)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 8. Остановка фоновых задач
	cancel()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("obras-gateway остановлен")
}

// newKeycloakProvider создаёт клиент Keycloak и провайдер поверх него.
func newKeycloakProvider(cfg *config.Config, store kvstore.Store, logger *slog.Logger) (*auth.KeycloakProvider, *keycloak.Client, error) {
	var httpClient *http.Client
	if cfg.KeycloakCACertPath != "" {
		c, err := auth.HTTPClientWithCA(cfg.KeycloakCACertPath, 30*time.Second)
		if err != nil {
			return nil, nil, err
		}
		httpClient = c
	}

	client := keycloak.New(cfg.KeycloakURL, cfg.KeycloakRealm, cfg.KeycloakClientID, cfg.KeycloakClientSecret, httpClient, logger)
	provider, err := auth.NewKeycloakProvider(client, store,
		cfg.JWTJWKSURL, cfg.KeycloakCACertPath, cfg.JWTIssuer,
		cfg.JWKSRefreshInterval, cfg.JWTLeeway,
		logger,
	)
	if err != nil {
		return nil, nil, err
	}
	return provider, client, nil
}

// runPurge периодически удаляет истёкшие записи до отмены ctx.
func runPurge(ctx context.Context, kind string, purge func(context.Context) (int, error), logger *slog.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := purge(ctx)
			if err != nil {
				logger.Warn("Ошибка очистки истёкших записей",
					slog.String("kind", kind),
					slog.String("error", err.Error()),
				)
				continue
			}
			if n > 0 {
				logger.Info("Истёкшие записи удалены", slog.String("kind", kind), slog.Int("count", n))
			}
		}
	}
}
