// health.go — liveness, readiness и /metrics шлюза.
package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marodrigu3s/acomp-obras-metro/internal/config"
)

const serviceName = "obras-gateway"

// Статусы проверок готовности.
const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusFail     = "fail"
)

// severity упорядочивает статусы: итог readiness — худший из них.
// Неизвестный статус считается fail.
var severity = map[string]int{statusOK: 0, statusDegraded: 1, statusFail: 2}

// ReadinessChecker — проверка готовности одной зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady() (status string, message string)
}

// HealthHandler обслуживает /health/live, /health/ready и /metrics.
type HealthHandler struct {
	checkers map[string]ReadinessChecker
	metrics  http.Handler
}

// NewHealthHandler создаёт обработчик. nil-проверка в checkers даёт fail.
func NewHealthHandler(checkers map[string]ReadinessChecker) *HealthHandler {
	return &HealthHandler{checkers: checkers, metrics: promhttp.Handler()}
}

type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

type healthReadyResponse struct {
	healthLiveResponse
	Checks map[string]healthCheckResult `json:"checks"`
}

func liveNow(status string) healthLiveResponse {
	return healthLiveResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	}
}

// HealthLive отвечает 200, пока процесс обслуживает запросы.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, liveNow(statusOK))
}

// HealthReady опрашивает все проверки параллельно.
// 200 при ok/degraded, 503 при fail.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	checks := h.runChecks()

	worst := statusOK
	for _, c := range checks {
		if rank(c.Status) > rank(worst) {
			worst = c.Status
		}
	}
	if _, known := severity[worst]; !known {
		worst = statusFail
	}

	code := http.StatusOK
	if worst == statusFail {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, healthReadyResponse{healthLiveResponse: liveNow(worst), Checks: checks})
}

func (h *HealthHandler) runChecks() map[string]healthCheckResult {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]healthCheckResult, len(h.checkers))
	)
	for name, checker := range h.checkers {
		if checker == nil {
			mu.Lock()
			out[name] = healthCheckResult{Status: statusFail, Message: "não inicializado"}
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(name string, checker ReadinessChecker) {
			defer wg.Done()
			status, msg := checker.CheckReady()
			mu.Lock()
			out[name] = healthCheckResult{Status: status, Message: msg}
			mu.Unlock()
		}(name, checker)
	}
	wg.Wait()
	return out
}

func rank(status string) int {
	if r, ok := severity[status]; ok {
		return r
	}
	return severity[statusFail] + 1
}

// GetMetrics отдаёт метрики Prometheus.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}
