package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Типы этого файла описывают ответы backend как они приходят по сети.
// Проверка на границе (validate) отсекает ответы, в которых нет полей,
// без которых UI не может работать.

// opaqueID — идентификатор backend. Принимается строка или число,
// дальше используется как непрозрачная строка.
type opaqueID string

func (id *opaqueID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = opaqueID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("identificador deve ser texto ou número: %w", err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("identificador numérico inválido %q", n)
	}
	*id = opaqueID(n.String())
	return nil
}

// errMissing — отсутствует обязательное поле ответа.
func errMissing(resource, field string) error {
	return fmt.Errorf("%s sem o campo obrigatório %q", resource, field)
}

// --- Проекты ---

type wireProject struct {
	ID              opaqueID `json:"id"`
	Name            string   `json:"name"`
	Responsible     string   `json:"responsible"`
	Location        string   `json:"location"`
	StartDate       string   `json:"start_date"`
	ExpectedEndDate string   `json:"expected_end_date"`
	Notes           *string  `json:"notes"`
	Status          string   `json:"status"`
	Progress        *float64 `json:"progress"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

func (w wireProject) validate() error {
	if w.ID == "" {
		return errMissing("projeto", "id")
	}
	if w.Name == "" {
		return errMissing("projeto", "name")
	}
	if w.Progress != nil && (*w.Progress < 0 || *w.Progress > 100) {
		return fmt.Errorf("projeto %s com progresso fora do intervalo 0-100: %v", w.ID, *w.Progress)
	}
	return nil
}

// wireProjectList — ответ GET /projects.
// Голый массив не принимается: Projects останется nil.
type wireProjectList struct {
	Projects *[]wireProject `json:"projects"`
}

func (w wireProjectList) validate() error {
	if w.Projects == nil {
		return errMissing("lista de projetos", "projects")
	}
	return nil
}

// wireProjectDetail — ответ GET /projects/:id.
type wireProjectDetail struct {
	Project  *wireProject `json:"project"`
	Photos   []wirePhoto  `json:"photos"`
	BIMFiles []wireBIM    `json:"bim_files"`
	Reports  []wireReport `json:"reports"`
}

func (w wireProjectDetail) validate() error {
	if w.Project == nil {
		return errMissing("detalhe do projeto", "project")
	}
	return nil
}

// wireProjectUpdate — тело PUT /projects/:id. Пустые поля не отправляются.
type wireProjectUpdate struct {
	Name            *string `json:"name,omitempty"`
	Responsible     *string `json:"responsible,omitempty"`
	Location        *string `json:"location,omitempty"`
	StartDate       *string `json:"start_date,omitempty"`
	ExpectedEndDate *string `json:"expected_end_date,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	Status          *string `json:"status,omitempty"`
}

// wireProgressUpdate — тело PATCH /projects/:id/progress.
type wireProgressUpdate struct {
	Progress int    `json:"progress"`
	Status   string `json:"status,omitempty"`
}

// wireDeleted — необязательное тело ответа на DELETE.
type wireDeleted struct {
	ID      opaqueID `json:"id"`
	Message string   `json:"message"`
}

// --- Фото ---

type wirePhoto struct {
	ID          opaqueID `json:"id"`
	ProjectID   opaqueID `json:"project_id"`
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	PhotoDate   string   `json:"photo_date"`
	URL         string   `json:"url"`
	CreatedAt   string   `json:"created_at"`
}

func (w wirePhoto) validate() error {
	if w.ID == "" {
		return errMissing("foto", "id")
	}
	if w.URL == "" {
		return errMissing("foto", "url")
	}
	return nil
}

// --- BIM ---

type wireBIM struct {
	ID        opaqueID `json:"id"`
	ProjectID opaqueID `json:"project_id"`
	FileName  string   `json:"file_name"`
	FileType  string   `json:"file_type"`
	FileSize  int64    `json:"file_size"`
	URL       string   `json:"url"`
	CreatedAt string   `json:"created_at"`
}

func (w wireBIM) validate() error {
	if w.ID == "" {
		return errMissing("arquivo BIM", "id")
	}
	if w.FileName == "" {
		return errMissing("arquivo BIM", "file_name")
	}
	if w.FileSize < 0 {
		return fmt.Errorf("arquivo BIM %s com tamanho negativo", w.ID)
	}
	return nil
}

type wireDownload struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

func (w wireDownload) validate() error {
	if w.URL == "" {
		return errMissing("link de download", "url")
	}
	if w.ExpiresIn < 0 {
		return errors.New("link de download com expires_in negativo")
	}
	return nil
}

// --- Отчёты ---

type wireReport struct {
	ID              opaqueID `json:"id"`
	ProjectID       opaqueID `json:"project_id"`
	AnalysisID      opaqueID `json:"analysis_id"`
	AnalyzedAt      string   `json:"analyzed_at"`
	OverallProgress *float64 `json:"overall_progress"`
	Sequence        int      `json:"sequence"`
	CreatedAt       string   `json:"created_at"`
}

func (w wireReport) validate() error {
	if w.AnalysisID == "" {
		return errMissing("relatório", "analysis_id")
	}
	if w.OverallProgress == nil {
		return errMissing("relatório", "overall_progress")
	}
	if err := validateFraction(*w.OverallProgress); err != nil {
		return fmt.Errorf("relatório %s: %w", w.AnalysisID, err)
	}
	return nil
}

// validateFraction проверяет долю прогресса 0..1.
func validateFraction(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("progresso fora do intervalo 0-1: %v", v)
	}
	return nil
}

// --- Предупреждения ---

type wireAlert struct {
	AlertID     opaqueID `json:"alert_id"`
	ProjectID   opaqueID `json:"project_id"`
	AnalysisID  opaqueID `json:"analysis_id"`
	AlertType   string   `json:"alert_type"`
	Severity    string   `json:"severity"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ElementID   *string  `json:"element_id"`
	CreatedAt   string   `json:"created_at"`
	Resolved    bool     `json:"resolved"`
	ResolvedAt  *string  `json:"resolved_at"`
	ResolvedBy  *string  `json:"resolved_by"`
}

func (w wireAlert) validate() error {
	if w.AlertID == "" {
		return errMissing("alerta", "alert_id")
	}
	return nil
}

// wireAlertList — ответ GET /bim/projects/:id/alerts.
type wireAlertList struct {
	ProjectID      opaqueID     `json:"project_id"`
	TotalAlerts    int          `json:"total_alerts"`
	OpenAlerts     int          `json:"open_alerts"`
	ResolvedAlerts int          `json:"resolved_alerts"`
	Alerts         *[]wireAlert `json:"alerts"`
}

func (w wireAlertList) validate() error {
	if w.Alerts == nil {
		return errMissing("lista de alertas", "alerts")
	}
	return nil
}

// --- Временная шкала ---

type wireTimelineEntry struct {
	Timestamp             string   `json:"timestamp"`
	AnalysisID            opaqueID `json:"analysis_id"`
	Progress              float64  `json:"progress"`
	Summary               string   `json:"summary"`
	DetectedElementsCount int      `json:"detected_elements_count"`
	AlertsCount           int      `json:"alerts_count"`
}

func (w wireTimelineEntry) validate() error {
	if w.AnalysisID == "" {
		return errMissing("linha do tempo", "analysis_id")
	}
	return validateFraction(w.Progress)
}

type wireEvolutionPoint struct {
	Index    int     `json:"index"`
	Date     string  `json:"date"`
	Progress float64 `json:"progress"`
}

// wireTimeline — ответ GET /bim/timeline/:projectId.
// Velocity — изменение доли прогресса в день, null при менее чем двух анализах.
type wireTimeline struct {
	ProjectID         opaqueID             `json:"project_id"`
	ProjectName       string               `json:"project_name"`
	Timeline          *[]wireTimelineEntry `json:"timeline"`
	ProgressEvolution []wireEvolutionPoint `json:"progress_evolution"`
	TotalAnalyses     *int                 `json:"total_analyses"`
	CurrentProgress   *float64             `json:"current_progress"`
	Velocity          *float64             `json:"velocity"`
	VelocityUnit      *string              `json:"velocity_unit"`
}

func (w wireTimeline) validate() error {
	if w.Timeline == nil {
		return errMissing("linha do tempo", "timeline")
	}
	for _, p := range w.ProgressEvolution {
		if err := validateFraction(p.Progress); err != nil {
			return fmt.Errorf("progress_evolution %d: %w", p.Index, err)
		}
	}
	if w.CurrentProgress != nil {
		if err := validateFraction(*w.CurrentProgress); err != nil {
			return fmt.Errorf("current_progress: %w", err)
		}
	}
	if w.Velocity != nil {
		if err := validateDelta(*w.Velocity); err != nil {
			return fmt.Errorf("velocity: %w", err)
		}
	}
	return nil
}

// validateDelta проверяет изменение доли прогресса: -1..1.
func validateDelta(v float64) error {
	if v < -1 || v > 1 {
		return fmt.Errorf("variação de progresso fora do intervalo -1..1: %v", v)
	}
	return nil
}

// --- Сводка прогресса ---

type wireAnalysisSummary struct {
	AnalysisID      opaqueID `json:"analysis_id"`
	OverallProgress *float64 `json:"overall_progress"`
	Summary         string   `json:"summary"`
	AnalyzedAt      *string  `json:"analyzed_at"`
}

func (w wireAnalysisSummary) validate() error {
	if w.AnalysisID == "" {
		return errMissing("análise", "analysis_id")
	}
	if w.OverallProgress == nil {
		return errMissing("análise", "overall_progress")
	}
	if err := validateFraction(*w.OverallProgress); err != nil {
		return fmt.Errorf("análise %s: %w", w.AnalysisID, err)
	}
	return nil
}

// wireProgress — ответ GET /bim/progress/:projectId.
// OverallProgress — среднее по анализам, RecentAlerts — не больше десяти открытых.
type wireProgress struct {
	ProjectID        opaqueID               `json:"project_id"`
	ProjectName      string                 `json:"project_name"`
	TotalAnalyses    *int                   `json:"total_analyses"`
	Analyses         *[]wireAnalysisSummary `json:"analyses"`
	OpenAlerts       int                    `json:"open_alerts"`
	RecentAlerts     []wireAlert            `json:"recent_alerts"`
	OverallProgress  *float64               `json:"overall_progress"`
	LastAnalysisDate *string                `json:"last_analysis_date"`
}

func (w wireProgress) validate() error {
	if w.Analyses == nil {
		return errMissing("progresso", "analyses")
	}
	if w.OverallProgress == nil {
		return errMissing("progresso", "overall_progress")
	}
	if err := validateFraction(*w.OverallProgress); err != nil {
		return fmt.Errorf("progresso: %w", err)
	}
	if w.OpenAlerts < 0 {
		return errors.New("progresso com open_alerts negativo")
	}
	return nil
}

// --- Сравнение анализов ---

// elementLabel — элемент списка detected_elements/alerts.
// Строка берётся как есть, у объекта — первое непустое из
// element_id, alert_id, id, name, title.
type elementLabel string

func (l *elementLabel) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = elementLabel(s)
		return nil
	}
	var obj struct {
		ElementID opaqueID `json:"element_id"`
		AlertID   opaqueID `json:"alert_id"`
		ID        opaqueID `json:"id"`
		Name      string   `json:"name"`
		Title     string   `json:"title"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("elemento deve ser texto ou objeto: %w", err)
	}
	for _, v := range []string{string(obj.ElementID), string(obj.AlertID), string(obj.ID), obj.Name, obj.Title} {
		if v != "" {
			*l = elementLabel(v)
			return nil
		}
	}
	return errors.New("elemento sem identificador")
}

type wireComparison struct {
	AnalysisID       opaqueID       `json:"analysis_id"`
	Timestamp        *string        `json:"timestamp"`
	Progress         float64        `json:"progress"`
	Summary          string         `json:"summary"`
	DetectedElements []elementLabel `json:"detected_elements"`
	Alerts           []elementLabel `json:"alerts"`
}

func (w wireComparison) validate() error {
	if w.AnalysisID == "" {
		return errMissing("comparação", "analysis_id")
	}
	if err := validateFraction(w.Progress); err != nil {
		return fmt.Errorf("comparação %s: %w", w.AnalysisID, err)
	}
	return nil
}

type wireDifference struct {
	From           opaqueID `json:"from"`
	To             opaqueID `json:"to"`
	ProgressChange float64  `json:"progress_change"`
	NewAlerts      int      `json:"new_alerts"`
}

func (w wireDifference) validate() error {
	if w.From == "" || w.To == "" {
		return errMissing("diferença", "from/to")
	}
	return validateDelta(w.ProgressChange)
}

// wireCompare — ответ GET /bim/compare/:projectId?analysis_ids=a,b.
// Comparisons упорядочены по времени анализа.
type wireCompare struct {
	ProjectID   opaqueID          `json:"project_id"`
	ProjectName string            `json:"project_name"`
	Comparisons *[]wireComparison `json:"comparisons"`
	Differences *[]wireDifference `json:"differences"`
}

func (w wireCompare) validate() error {
	if w.Comparisons == nil {
		return errMissing("comparação", "comparisons")
	}
	return nil
}
