// Пакет handlers — HTTP-обработчики шлюза obras-gateway.
// Каждый обработчик отвечает конвертом {"data": ..., "error": ...};
// исключение — PDF отчёта, который отдаётся как есть.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/marodrigu3s/acomp-obras-metro/internal/api/errors"
	"github.com/marodrigu3s/acomp-obras-metro/internal/auth"
	"github.com/marodrigu3s/acomp-obras-metro/internal/backend"
	"github.com/marodrigu3s/acomp-obras-metro/internal/domain/rbac"
)

// multipartMemory — часть multipart-формы, хранимая в памяти; остальное уходит во временные файлы.
const multipartMemory = 32 << 20

// Handler — обработчики API шлюза.
type Handler struct {
	backend   *backend.Client
	provider  auth.Provider
	teams     *auth.TeamStore
	maxUpload int64
	logger    *slog.Logger
}

// New создаёт обработчики API.
// maxUpload — предельный размер multipart-запроса (фото, BIM, модель проекта).
func New(b *backend.Client, provider auth.Provider, teams *auth.TeamStore, maxUpload int64, logger *slog.Logger) *Handler {
	return &Handler{
		backend:   b,
		provider:  provider,
		teams:     teams,
		maxUpload: maxUpload,
		logger:    logger.With(slog.String("component", "api_handler")),
	}
}

// --- Вспомогательные функции ---

// dataEnvelope — успешный конверт ответа.
type dataEnvelope struct {
	Data  any     `json:"data"`
	Error *string `json:"error"`
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeData записывает успешный конверт.
func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, dataEnvelope{Data: data})
}

// writeResult записывает конверт операции backend: успех со статусом status
// или ошибку со статусом из backend.HTTPStatus.
func writeResult[T any](w http.ResponseWriter, status int, r backend.Result[T]) {
	if !r.OK() {
		apierrors.FromResult(w, r)
		return
	}
	writeJSON(w, status, r)
}

// decodeJSON разбирает JSON-тело запроса. При ошибке пишет 400 и возвращает false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		apierrors.ValidationError(w, "JSON inválido: "+err.Error())
		return false
	}
	return true
}

// parseMultipart разбирает multipart-форму с ограничением размера.
func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierrors.PayloadTooLarge(w, "arquivo excede o tamanho máximo permitido")
			return false
		}
		apierrors.ValidationError(w, "formulário multipart inválido: "+err.Error())
		return false
	}
	return true
}

// formFile возвращает файл формы как backend.FilePart.
// ok=false — поле отсутствует или файл пустой; close нужно вызвать после отправки.
func formFile(r *http.Request, field string) (part backend.FilePart, closeFn func(), ok bool) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return backend.FilePart{}, func() {}, false
	}
	if hdr.Size == 0 {
		f.Close()
		return backend.FilePart{}, func() {}, false
	}
	return backend.FilePart{
		FileName:    hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Content:     f,
	}, func() { f.Close() }, true
}

// formValue возвращает значение поля формы без пробелов по краям.
func formValue(r *http.Request, field string) string {
	return strings.TrimSpace(r.FormValue(field))
}

// validUIDate проверяет дату формата UI (YYYY-MM-DD).
func validUIDate(s string) bool {
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}

// projectID — параметр {id} маршрута.
func projectID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// requireMember проверяет доступ текущего пользователя к проекту.
// Администраторы проходят всегда, viewer — только если он в команде проекта.
func (h *Handler) requireMember(w http.ResponseWriter, r *http.Request, id string) bool {
	session := auth.SessionFromContext(r.Context())
	if session == nil {
		apierrors.Unauthorized(w, "sessão ausente: faça login")
		return false
	}
	if rbac.CanEditProjects(session.User.Papel) {
		return true
	}

	team, err := h.teams.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("Ошибка чтения команды проекта",
			slog.String("project_id", id),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "erro ao verificar acesso à obra")
		return false
	}
	if !rbac.CanViewProject(session.User.Papel, session.User.Email, team.Emails) {
		apierrors.Forbidden(w, "sem acesso a esta obra")
		return false
	}
	return true
}
