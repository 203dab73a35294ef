// relatorios.go — отчёты анализа, PDF, предупреждения, прогресс и сравнение анализов проекта.
package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/marodrigu3s/acomp-obras-metro/internal/api/errors"
)

// ListRelatorios — GET /api/v1/obras/{id}/relatorios.
func (h *Handler) ListRelatorios(w http.ResponseWriter, r *http.Request) {
	id := projectID(r)
	if !h.requireMember(w, r, id) {
		return
	}
	writeResult(w, http.StatusOK, h.backend.ListReports(r.Context(), id))
}

// GetRelatorioPDF — GET /api/v1/relatorios/{analysisId}/pdf.
// Успешный ответ — сам PDF, ошибка — обычный конверт.
func (h *Handler) GetRelatorioPDF(w http.ResponseWriter, r *http.Request) {
	analysisID := chi.URLParam(r, "analysisId")
	res := h.backend.GetReportPDF(r.Context(), analysisID)
	if !res.OK() {
		apierrors.FromResult(w, res)
		return
	}

	pdf := res.Data
	w.Header().Set("Content-Type", pdf.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf.Conteudo)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", "relatorio-"+analysisID+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf.Conteudo)
}

// ListAlertas — GET /api/v1/obras/{id}/alertas.
func (h *Handler) ListAlertas(w http.ResponseWriter, r *http.Request) {
	id := projectID(r)
	if !h.requireMember(w, r, id) {
		return
	}
	writeResult(w, http.StatusOK, h.backend.ListAlerts(r.Context(), id))
}

// GetLinhaDoTempo — GET /api/v1/obras/{id}/linha-do-tempo.
func (h *Handler) GetLinhaDoTempo(w http.ResponseWriter, r *http.Request) {
	id := projectID(r)
	if !h.requireMember(w, r, id) {
		return
	}
	writeResult(w, http.StatusOK, h.backend.GetTimeline(r.Context(), id))
}

// GetProgresso — GET /api/v1/obras/{id}/progresso.
func (h *Handler) GetProgresso(w http.ResponseWriter, r *http.Request) {
	id := projectID(r)
	if !h.requireMember(w, r, id) {
		return
	}
	writeResult(w, http.StatusOK, h.backend.GetProgressSummary(r.Context(), id))
}

// GetComparacao — GET /api/v1/obras/{id}/comparacao?analises=a,b.
// Параметр можно повторять; без анализов ответ 400.
func (h *Handler) GetComparacao(w http.ResponseWriter, r *http.Request) {
	id := projectID(r)
	if !h.requireMember(w, r, id) {
		return
	}
	var ids []string
	for _, v := range r.URL.Query()["analises"] {
		ids = append(ids, strings.Split(v, ",")...)
	}
	writeResult(w, http.StatusOK, h.backend.CompareAnalyses(r.Context(), id, ids))
}
