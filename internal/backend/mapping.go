package backend

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/marodrigu3s/acomp-obras-metro/internal/dateconv"
	"github.com/marodrigu3s/acomp-obras-metro/internal/domain/model"
)

// Таблицы соответствия backend ⇄ UI. Для каждого ресурса одна пара функций,
// все правила приведения значений (даты, статус, прогресс) собраны здесь.

// statusTable — статус проекта backend → UI.
var statusTable = map[string]model.StatusObra{
	"planning":    model.StatusPlanejamento,
	"in_progress": model.StatusEmAndamento,
	"completed":   model.StatusConcluida,
	"paused":      model.StatusPausada,
}

// statusReverse — статус проекта UI → backend.
var statusReverse = func() map[model.StatusObra]string {
	m := make(map[model.StatusObra]string, len(statusTable))
	for wire, ui := range statusTable {
		m[ui] = wire
	}
	return m
}()

// StatusToUI переводит статус backend в статус UI.
// Пустой статус считается планированием.
func StatusToUI(s string) (model.StatusObra, error) {
	if s == "" {
		return model.StatusPlanejamento, nil
	}
	st, ok := statusTable[strings.ToLower(s)]
	if !ok {
		return "", fmt.Errorf("status de projeto desconhecido %q", s)
	}
	return st, nil
}

// StatusToBackend переводит статус UI в статус backend.
func StatusToBackend(s model.StatusObra) (string, error) {
	wire, ok := statusReverse[s]
	if !ok {
		return "", fmt.Errorf("status de projeto desconhecido %q", s)
	}
	return wire, nil
}

// ProgressPercent переводит долю 0..1 в целый процент 0..100.
func ProgressPercent(fraction float64) int {
	return int(math.Round(fraction * 100))
}

// ReportPDFPath возвращает относительный путь PDF отчёта анализа.
func ReportPDFPath(analysisID string) string {
	return "/reports/analysis/" + url.PathEscape(analysisID)
}

// mapAll применяет функцию приведения к каждому элементу списка.
// nil на входе даёт пустой (не nil) список.
func mapAll[W any, T any](items []W, fn func(W) (T, error)) ([]T, error) {
	out := make([]T, 0, len(items))
	for i, item := range items {
		v, err := fn(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// --- Проект ---

func projectToUI(w wireProject) (model.Obra, error) {
	if err := w.validate(); err != nil {
		return model.Obra{}, err
	}
	status, err := StatusToUI(w.Status)
	if err != nil {
		return model.Obra{}, err
	}

	var progress int
	if w.Progress != nil {
		progress = int(math.Round(*w.Progress))
	}

	return model.Obra{
		ID:                  string(w.ID),
		Nome:                w.Name,
		Responsavel:         w.Responsible,
		Localizacao:         w.Location,
		DataInicio:          dateconv.ToUI(w.StartDate),
		DataPrevisaoTermino: dateconv.ToUI(w.ExpectedEndDate),
		Observacoes:         deref(w.Notes),
		Status:              status,
		Progresso:           progress,
		CriadoEm:            w.CreatedAt,
		AtualizadoEm:        w.UpdatedAt,
	}, nil
}

// newProjectFields — поля multipart-формы создания проекта.
func newProjectFields(n model.NovaObra) []formField {
	fields := []formField{
		{name: "name", value: n.Nome},
		{name: "responsible", value: n.Responsavel},
		{name: "location", value: n.Localizacao},
		{name: "expected_end_date", value: dateconv.ToBackend(n.DataPrevisaoTermino)},
	}
	if n.Observacoes != "" {
		fields = append(fields, formField{name: "notes", value: n.Observacoes})
	}
	return fields
}

func projectUpdateToWire(e model.EdicaoObra) (wireProjectUpdate, error) {
	w := wireProjectUpdate{
		Name:        e.Nome,
		Responsible: e.Responsavel,
		Location:    e.Localizacao,
		Notes:       e.Observacoes,
	}
	if e.DataInicio != nil {
		v := dateconv.ToBackend(*e.DataInicio)
		w.StartDate = &v
	}
	if e.DataPrevisaoTermino != nil {
		v := dateconv.ToBackend(*e.DataPrevisaoTermino)
		w.ExpectedEndDate = &v
	}
	if e.Status != nil {
		v, err := StatusToBackend(*e.Status)
		if err != nil {
			return wireProjectUpdate{}, err
		}
		w.Status = &v
	}
	return w, nil
}

func projectDetailToUI(w wireProjectDetail) (model.DetalheObra, error) {
	if err := w.validate(); err != nil {
		return model.DetalheObra{}, err
	}
	obra, err := projectToUI(*w.Project)
	if err != nil {
		return model.DetalheObra{}, err
	}
	fotos, err := mapAll(w.Photos, photoToUI)
	if err != nil {
		return model.DetalheObra{}, fmt.Errorf("photos: %w", err)
	}
	bims, err := mapAll(w.BIMFiles, bimToUI)
	if err != nil {
		return model.DetalheObra{}, fmt.Errorf("bim_files: %w", err)
	}
	relatorios, err := mapAll(w.Reports, reportToUI)
	if err != nil {
		return model.DetalheObra{}, fmt.Errorf("reports: %w", err)
	}
	return model.DetalheObra{
		Obra:        obra,
		Fotos:       fotos,
		ArquivosBIM: bims,
		Relatorios:  relatorios,
	}, nil
}

// --- Фото ---

// Дата фото и в UI, и в backend — YYYY-MM-DD, переводится как есть.
func photoToUI(w wirePhoto) (model.Foto, error) {
	if err := w.validate(); err != nil {
		return model.Foto{}, err
	}
	return model.Foto{
		ID:        string(w.ID),
		ObraID:    string(w.ProjectID),
		Nome:      w.Name,
		Descricao: deref(w.Description),
		DataFoto:  w.PhotoDate,
		URL:       w.URL,
		CriadoEm:  w.CreatedAt,
	}, nil
}

func newPhotoFields(n model.NovaFoto) []formField {
	fields := []formField{{name: "name", value: n.Nome}}
	if n.DataFoto != "" {
		fields = append(fields, formField{name: "photo_date", value: n.DataFoto})
	}
	if n.Descricao != "" {
		fields = append(fields, formField{name: "description", value: n.Descricao})
	}
	return fields
}

// --- BIM ---

func bimToUI(w wireBIM) (model.ArquivoBIM, error) {
	if err := w.validate(); err != nil {
		return model.ArquivoBIM{}, err
	}
	return model.ArquivoBIM{
		ID:           string(w.ID),
		ObraID:       string(w.ProjectID),
		NomeArquivo:  w.FileName,
		TipoArquivo:  w.FileType,
		TamanhoBytes: w.FileSize,
		URL:          w.URL,
		CriadoEm:     w.CreatedAt,
	}, nil
}

func downloadToUI(w wireDownload) (model.LinkDownload, error) {
	if err := w.validate(); err != nil {
		return model.LinkDownload{}, err
	}
	return model.LinkDownload{URL: w.URL, ExpiraEmSegundos: w.ExpiresIn}, nil
}

// --- Отчёт ---

func reportToUI(w wireReport) (model.Relatorio, error) {
	if err := w.validate(); err != nil {
		return model.Relatorio{}, err
	}
	analysisID := string(w.AnalysisID)
	return model.Relatorio{
		ID:          string(w.ID),
		ObraID:      string(w.ProjectID),
		AnaliseID:   analysisID,
		DataAnalise: w.AnalyzedAt,
		Progresso:   ProgressPercent(*w.OverallProgress),
		Numero:      w.Sequence,
		CaminhoPDF:  ReportPDFPath(analysisID),
		CriadoEm:    w.CreatedAt,
	}, nil
}

// --- Предупреждения ---

func alertToUI(w wireAlert) (model.Alerta, error) {
	if err := w.validate(); err != nil {
		return model.Alerta{}, err
	}
	return model.Alerta{
		ID:           string(w.AlertID),
		ObraID:       string(w.ProjectID),
		AnaliseID:    string(w.AnalysisID),
		Tipo:         w.AlertType,
		Severidade:   w.Severity,
		Titulo:       w.Title,
		Descricao:    w.Description,
		ElementoID:   deref(w.ElementID),
		CriadoEm:     w.CreatedAt,
		Resolvido:    w.Resolved,
		ResolvidoEm:  deref(w.ResolvedAt),
		ResolvidoPor: deref(w.ResolvedBy),
	}, nil
}

// alertListToUI — счётчики берутся из ответа, а если их нет,
// считаются по списку.
func alertListToUI(projectID string) func(wireAlertList) (model.ResumoAlertas, error) {
	return func(w wireAlertList) (model.ResumoAlertas, error) {
		if err := w.validate(); err != nil {
			return model.ResumoAlertas{}, err
		}
		alertas, err := mapAll(*w.Alerts, alertToUI)
		if err != nil {
			return model.ResumoAlertas{}, fmt.Errorf("alerts: %w", err)
		}

		resumo := model.ResumoAlertas{
			ObraID:     string(w.ProjectID),
			Total:      w.TotalAlerts,
			Abertos:    w.OpenAlerts,
			Resolvidos: w.ResolvedAlerts,
			Alertas:    alertas,
		}
		if resumo.ObraID == "" {
			resumo.ObraID = projectID
		}
		if resumo.Total == 0 && len(alertas) > 0 {
			resumo.Total = len(alertas)
			for _, a := range alertas {
				if a.Resolvido {
					resumo.Resolvidos++
				} else {
					resumo.Abertos++
				}
			}
		}
		return resumo, nil
	}
}

// --- Временная шкала ---

func timelineEntryToUI(w wireTimelineEntry) (model.PontoLinhaDoTempo, error) {
	if err := w.validate(); err != nil {
		return model.PontoLinhaDoTempo{}, err
	}
	return model.PontoLinhaDoTempo{
		AnaliseID:    string(w.AnalysisID),
		DataAnalise:  w.Timestamp,
		Progresso:    ProgressPercent(w.Progress),
		Resumo:       w.Summary,
		QtdElementos: w.DetectedElementsCount,
		QtdAlertas:   w.AlertsCount,
	}, nil
}

func timelineToUI(projectID string) func(wireTimeline) (model.LinhaDoTempo, error) {
	return func(w wireTimeline) (model.LinhaDoTempo, error) {
		if err := w.validate(); err != nil {
			return model.LinhaDoTempo{}, err
		}
		pontos, err := mapAll(*w.Timeline, timelineEntryToUI)
		if err != nil {
			return model.LinhaDoTempo{}, fmt.Errorf("timeline: %w", err)
		}

		linha := model.LinhaDoTempo{
			ObraID:        orDefault(string(w.ProjectID), projectID),
			NomeObra:      w.ProjectName,
			Pontos:        pontos,
			Evolucao:      make([]model.PontoEvolucao, 0, len(pontos)),
			TotalAnalises: len(pontos),
		}
		if w.TotalAnalyses != nil {
			linha.TotalAnalises = *w.TotalAnalyses
		}

		// Без progress_evolution график строится по самой шкале
		if w.ProgressEvolution != nil {
			for _, p := range w.ProgressEvolution {
				linha.Evolucao = append(linha.Evolucao, model.PontoEvolucao{
					Indice:    p.Index,
					Data:      p.Date,
					Progresso: ProgressPercent(p.Progress),
				})
			}
		} else {
			for i, p := range pontos {
				linha.Evolucao = append(linha.Evolucao, model.PontoEvolucao{
					Indice:    i + 1,
					Data:      p.DataAnalise,
					Progresso: p.Progresso,
				})
			}
		}

		switch {
		case w.CurrentProgress != nil:
			linha.ProgressoAtual = ProgressPercent(*w.CurrentProgress)
		case len(pontos) > 0:
			linha.ProgressoAtual = pontos[len(pontos)-1].Progresso
		}

		if w.Velocity != nil {
			v := velocityPercent(*w.Velocity)
			linha.Velocidade = &v
			linha.UnidadeVelocidade = orDefault(deref(w.VelocityUnit), "% por dia")
		}
		return linha, nil
	}
}

// velocityPercent переводит долю в день в пункты процента в день (два знака).
func velocityPercent(fraction float64) float64 {
	return math.Round(fraction*100*100) / 100
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// --- Сводка прогресса ---

func analysisSummaryToUI(w wireAnalysisSummary) (model.AnaliseResumida, error) {
	if err := w.validate(); err != nil {
		return model.AnaliseResumida{}, err
	}
	return model.AnaliseResumida{
		AnaliseID:   string(w.AnalysisID),
		Progresso:   ProgressPercent(*w.OverallProgress),
		Resumo:      w.Summary,
		DataAnalise: deref(w.AnalyzedAt),
	}, nil
}

func progressToUI(projectID string) func(wireProgress) (model.ResumoProgresso, error) {
	return func(w wireProgress) (model.ResumoProgresso, error) {
		if err := w.validate(); err != nil {
			return model.ResumoProgresso{}, err
		}
		analises, err := mapAll(*w.Analyses, analysisSummaryToUI)
		if err != nil {
			return model.ResumoProgresso{}, fmt.Errorf("analyses: %w", err)
		}
		alertas, err := mapAll(w.RecentAlerts, alertToUI)
		if err != nil {
			return model.ResumoProgresso{}, fmt.Errorf("recent_alerts: %w", err)
		}

		resumo := model.ResumoProgresso{
			ObraID:          orDefault(string(w.ProjectID), projectID),
			NomeObra:        w.ProjectName,
			TotalAnalises:   len(analises),
			Analises:        analises,
			ProgressoMedio:  ProgressPercent(*w.OverallProgress),
			AlertasAbertos:  w.OpenAlerts,
			AlertasRecentes: alertas,
		}
		if w.TotalAnalyses != nil {
			resumo.TotalAnalises = *w.TotalAnalyses
		}
		if d := deref(w.LastAnalysisDate); d != "" {
			resumo.UltimaAnalise = &d
		}
		return resumo, nil
	}
}

// --- Сравнение анализов ---

func labels(items []elementLabel) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, string(it))
	}
	return out
}

func comparisonToUI(w wireComparison) (model.AnaliseComparada, error) {
	if err := w.validate(); err != nil {
		return model.AnaliseComparada{}, err
	}
	return model.AnaliseComparada{
		AnaliseID:   string(w.AnalysisID),
		DataAnalise: deref(w.Timestamp),
		Progresso:   ProgressPercent(w.Progress),
		Resumo:      w.Summary,
		Elementos:   labels(w.DetectedElements),
		Alertas:     labels(w.Alerts),
	}, nil
}

func differenceToUI(w wireDifference) (model.DiferencaAnalises, error) {
	if err := w.validate(); err != nil {
		return model.DiferencaAnalises{}, err
	}
	return model.DiferencaAnalises{
		De:                string(w.From),
		Para:              string(w.To),
		VariacaoProgresso: ProgressPercent(w.ProgressChange),
		NovosAlertas:      w.NewAlerts,
	}, nil
}

// compareToUI — если backend не прислал differences, они считаются
// по соседним парам comparisons.
func compareToUI(projectID string) func(wireCompare) (model.Comparacao, error) {
	return func(w wireCompare) (model.Comparacao, error) {
		if err := w.validate(); err != nil {
			return model.Comparacao{}, err
		}
		analises, err := mapAll(*w.Comparisons, comparisonToUI)
		if err != nil {
			return model.Comparacao{}, fmt.Errorf("comparisons: %w", err)
		}

		cmp := model.Comparacao{
			ObraID:   orDefault(string(w.ProjectID), projectID),
			NomeObra: w.ProjectName,
			Analises: analises,
		}
		if w.Differences != nil {
			cmp.Diferencas, err = mapAll(*w.Differences, differenceToUI)
			if err != nil {
				return model.Comparacao{}, fmt.Errorf("differences: %w", err)
			}
			return cmp, nil
		}

		cmp.Diferencas = make([]model.DiferencaAnalises, 0, len(analises))
		for i := 1; i < len(analises); i++ {
			prev, cur := analises[i-1], analises[i]
			cmp.Diferencas = append(cmp.Diferencas, model.DiferencaAnalises{
				De:                prev.AnaliseID,
				Para:              cur.AnaliseID,
				VariacaoProgresso: cur.Progresso - prev.Progresso,
				NovosAlertas:      len(cur.Alertas) - len(prev.Alertas),
			})
		}
		return cmp, nil
	}
}
