// dephealth.go — мониторинг зависимостей шлюза через topologymetrics SDK.
//
// Шлюз мониторит:
//   - backend obras — HTTP checker к health endpoint (critical)
//   - PostgreSQL — SQL checker через pgxpool, только при OG_STORE_DRIVER=postgres (critical)
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
//   - app_dependency_status — категория статуса
//   - app_dependency_status_detail — детальный статус
package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// ServiceID — имя вершины графа шлюза в метриках topologymetrics.
const ServiceID = "obras-gateway"

// backendDepName — имя зависимости backend в метриках.
const backendDepName = "obras-backend"

// Dependencies — зависимости, которые мониторит шлюз.
type Dependencies struct {
	// BackendURL — базовый URL backend obras
	BackendURL string
	// BackendHealthPath — путь health endpoint относительно BackendURL
	BackendHealthPath string
	// DB — *sql.DB поверх pgxpool (stdlib.OpenDBFromPool); nil — PostgreSQL не мониторится
	DB *sql.DB
	// PostgresURL — URL PostgreSQL для меток (без пароля)
	PostgresURL string
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	deps   []string
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
func NewDephealthService(group string, deps Dependencies, checkInterval time.Duration, logger *slog.Logger) (*DephealthService, error) {
	return newDephealthService(group, deps, checkInterval, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	group string,
	deps Dependencies,
	checkInterval time.Duration,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(group, deps, checkInterval, logger, dephealth.WithRegisterer(registerer))
}

// newDephealthService — внутренний конструктор.
func newDephealthService(
	group string,
	deps Dependencies,
	checkInterval time.Duration,
	logger *slog.Logger,
	extraOpts ...dephealth.Option,
) (*DephealthService, error) {
	healthPath, err := BackendHealthPath(deps.BackendURL, deps.BackendHealthPath)
	if err != nil {
		return nil, err
	}

	backendOpts := []dephealth.DependencyOption{
		dephealth.FromURL(deps.BackendURL),
		dephealth.WithHTTPHealthPath(healthPath),
		dephealth.CheckInterval(checkInterval),
		dephealth.Critical(true),
	}
	if strings.HasPrefix(deps.BackendURL, "https://") {
		backendOpts = append(backendOpts, dephealth.WithHTTPTLSSkipVerify(false))
	}

	opts := []dephealth.Option{
		dephealth.WithLogger(logger),
		dephealth.HTTP(backendDepName, backendOpts...),
	}
	names := []string{backendDepName}

	if deps.DB != nil {
		opts = append(opts, dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(deps.DB)),
			dephealth.FromURL(deps.PostgresURL),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		))
		names = append(names, "postgresql")
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(ServiceID, group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		deps:   names,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// BackendHealthPath возвращает путь health endpoint с учётом пути в базовом URL.
// Пустой healthPath — "/health".
func BackendHealthPath(baseURL, healthPath string) (string, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("некорректный URL backend %q", baseURL)
	}
	if healthPath == "" {
		healthPath = "/health"
	}
	return path.Join("/", parsed.Path, healthPath), nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен", slog.Any("dependencies", ds.deps))
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}

// CheckReady сводит состояние зависимостей для /health/ready.
// Недоступная зависимость даёт "degraded", не "fail".
func (ds *DephealthService) CheckReady() (string, string) {
	return readiness(ds.Health())
}

// readiness — статус и список недоступных зависимостей.
func readiness(health map[string]bool) (string, string) {
	var down []string
	for name, ok := range health {
		if !ok {
			down = append(down, name)
		}
	}
	if len(down) == 0 {
		return "ok", ""
	}
	sort.Strings(down)
	return "degraded", "indisponível: " + strings.Join(down, ", ")
}
