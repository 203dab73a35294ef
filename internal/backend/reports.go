package backend

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/marodrigu3s/acomp-obras-metro/internal/domain/model"
)

// ListReports возвращает отчёты анализа проекта.
// Прогресс приходит долей 0..1 и отдаётся целым процентом.
func (c *Client) ListReports(ctx context.Context, projectID string) Result[[]model.Relatorio] {
	return call(ctx, c, request{
		op:     "list_reports",
		method: http.MethodGet,
		path:   "/reports/" + url.PathEscape(projectID),
	}, func(w []wireReport) ([]model.Relatorio, error) {
		return mapAll(w, reportToUI)
	})
}

// GetReportPDF скачивает PDF отчёта анализа.
func (c *Client) GetReportPDF(ctx context.Context, analysisID string) Result[model.PDF] {
	r := request{
		op:     "get_report_pdf",
		method: http.MethodGet,
		path:   ReportPDFPath(analysisID),
	}
	data, contentType, status, err := c.doBinary(ctx, r)
	if err != nil {
		return failure[model.PDF](err)
	}
	if contentType == "" {
		contentType = "application/pdf"
	}
	return success(model.PDF{ContentType: contentType, Conteudo: data}, status)
}

// analysisPath — маршруты сервиса анализа под префиксом /bim.
func analysisPath(resource, projectID string) string {
	return "/bim/" + resource + "/" + url.PathEscape(projectID)
}

// ListAlerts возвращает предупреждения анализа проекта со счётчиками.
func (c *Client) ListAlerts(ctx context.Context, projectID string) Result[model.ResumoAlertas] {
	return call(ctx, c, request{
		op:     "list_alerts",
		method: http.MethodGet,
		path:   analysisPath("projects", projectID) + "/alerts",
	}, alertListToUI(projectID))
}

// GetTimeline возвращает хронологию анализов проекта, график прогресса
// и среднюю скорость между первым и последним анализом.
func (c *Client) GetTimeline(ctx context.Context, projectID string) Result[model.LinhaDoTempo] {
	return call(ctx, c, request{
		op:     "get_timeline",
		method: http.MethodGet,
		path:   analysisPath("timeline", projectID),
	}, timelineToUI(projectID))
}

// GetProgressSummary возвращает средний прогресс по анализам проекта,
// дату последнего анализа и открытые предупреждения.
func (c *Client) GetProgressSummary(ctx context.Context, projectID string) Result[model.ResumoProgresso] {
	return call(ctx, c, request{
		op:     "get_progress_summary",
		method: http.MethodGet,
		path:   analysisPath("progress", projectID),
	}, progressToUI(projectID))
}

// CompareAnalyses сравнивает выбранные анализы проекта.
// Пустые идентификаторы отбрасываются; без единого идентификатора запрос не выполняется.
// Если ни один анализ не найден, backend отвечает 404.
func (c *Client) CompareAnalyses(ctx context.Context, projectID string, analysisIDs []string) Result[model.Comparacao] {
	ids := make([]string, 0, len(analysisIDs))
	for _, id := range analysisIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return failure[model.Comparacao](&InputError{Err: errors.New("informe ao menos uma análise para comparar")})
	}

	q := url.Values{"analysis_ids": {strings.Join(ids, ",")}}
	return call(ctx, c, request{
		op:     "compare_analyses",
		method: http.MethodGet,
		path:   analysisPath("compare", projectID) + "?" + q.Encode(),
	}, compareToUI(projectID))
}
