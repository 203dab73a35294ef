// Пакет server — HTTP-сервер шлюза obras-gateway с graceful shutdown.
// Без TLS — TLS termination на ingress.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/marodrigu3s/acomp-obras-metro/internal/api/handlers"
	"github.com/marodrigu3s/acomp-obras-metro/internal/api/middleware"
	"github.com/marodrigu3s/acomp-obras-metro/internal/auth"
	"github.com/marodrigu3s/acomp-obras-metro/internal/config"
	"github.com/marodrigu3s/acomp-obras-metro/internal/domain/model"
)

// APIPrefix — префикс маршрутов API.
const APIPrefix = "/api/v1"

// Server — HTTP-сервер шлюза.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с маршрутами и middleware.
// provider проверяет сессии всех маршрутов API, кроме входа.
func New(cfg *config.Config, logger *slog.Logger, api *handlers.Handler, health *handlers.HealthHandler, provider auth.Provider) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(logger, api, health, provider),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает chi-роутер шлюза.
func NewRouter(logger *slog.Logger, api *handlers.Handler, health *handlers.HealthHandler, provider auth.Provider) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.MetricsMiddleware())

	r.Get("/health/live", health.HealthLive)
	r.Get("/health/ready", health.HealthReady)
	r.Get("/metrics", health.GetMetrics)

	projectAdmin := middleware.RequireRole(model.PapelAdminObra)
	generalAdmin := middleware.RequireRole(model.PapelAdminGeral)

	r.Route(APIPrefix, func(r chi.Router) {
		r.Post("/auth/login", api.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(provider, logger))

			r.Post("/auth/logout", api.Logout)
			r.Get("/auth/session", api.GetSessao)

			r.Route("/users", func(r chi.Router) {
				r.Use(generalAdmin)
				r.Get("/", api.ListUsers)
				r.Post("/", api.CreateUser)
				r.Put("/{email}/role", api.SetUserRole)
			})

			r.Get("/obras", api.ListObras)
			r.With(projectAdmin).Post("/obras", api.CreateObra)

			r.Route("/obras/{id}", func(r chi.Router) {
				r.Get("/", api.GetObra)
				r.With(projectAdmin).Put("/", api.UpdateObra)
				r.With(projectAdmin).Delete("/", api.DeleteObra)
				r.With(projectAdmin).Patch("/progresso", api.UpdateProgresso)

				r.Get("/fotos", api.ListFotos)
				r.With(projectAdmin).Post("/fotos", api.UploadFoto)

				r.Get("/bim", api.GetBIM)
				r.With(projectAdmin).Post("/bim", api.UploadBIM)
				r.With(projectAdmin).Delete("/bim", api.DeleteBIM)
				r.Get("/bim/download", api.DownloadBIM)

				r.Get("/relatorios", api.ListRelatorios)
				r.Get("/alertas", api.ListAlertas)
				r.Get("/linha-do-tempo", api.GetLinhaDoTempo)
				r.Get("/progresso", api.GetProgresso)
				r.Get("/comparacao", api.GetComparacao)

				r.Get("/equipe", api.GetEquipe)
				r.With(projectAdmin).Put("/equipe", api.PutEquipe)
			})

			r.With(projectAdmin).Delete("/fotos/{id}", api.DeleteFoto)
			r.Get("/relatorios/{analysisId}/pdf", api.GetRelatorioPDF)
		})
	})

	return r
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
