// obras.go — обработчики /api/v1/obras: список, карточка, создание, изменение,
// прогресс и удаление проекта.
package handlers

import (
	"log/slog"
	"net/http"

	apierrors "github.com/marodrigu3s/acomp-obras-metro/internal/api/errors"
	"github.com/marodrigu3s/acomp-obras-metro/internal/auth"
	"github.com/marodrigu3s/acomp-obras-metro/internal/domain/model"
	"github.com/marodrigu3s/acomp-obras-metro/internal/domain/rbac"
)

// ModelFileField — поле multipart-формы с файлом модели проекта.
const ModelFileField = "arquivo"

// ListObras — GET /api/v1/obras.
// Viewer получает только проекты, в командах которых он состоит.
func (h *Handler) ListObras(w http.ResponseWriter, r *http.Request) {
	res := h.backend.ListProjects(r.Context())
	if !res.OK() {
		apierrors.FromResult(w, res)
		return
	}

	session := auth.SessionFromContext(r.Context())
	if session == nil || rbac.CanEditProjects(session.User.Papel) {
		writeResult(w, http.StatusOK, res)
		return
	}

	member, err := h.teams.ProjectsOf(r.Context(), session.User.Email)
	if err != nil {
		h.logger.Error("Ошибка чтения команд", slog.String("error", err.Error()))
		apierrors.InternalError(w, "erro ao filtrar obras")
		return
	}
	visible := make([]model.Obra, 0, len(*res.Data))
	for _, o := range *res.Data {
		if member[o.ID] {
			visible = append(visible, o)
		}
	}
	writeData(w, http.StatusOK, visible)
}

// GetObra — GET /api/v1/obras/{id}. Проект с фото, BIM-файлами и отчётами.
func (h *Handler) GetObra(w http.ResponseWriter, r *http.Request) {
	id := projectID(r)
	if !h.requireMember(w, r, id) {
		return
	}
	writeResult(w, http.StatusOK, h.backend.GetProject(r.Context(), id))
}

// CreateObra — POST /api/v1/obras (multipart).
// Обязательные поля проверяются до обращения к backend; без файла модели запрос не отправляется.
func (h *Handler) CreateObra(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r) {
		return
	}

	nova := model.NovaObra{
		Nome:                formValue(r, "nome"),
		Responsavel:         formValue(r, "responsavel"),
		Localizacao:         formValue(r, "localizacao"),
		DataPrevisaoTermino: formValue(r, "data_previsao_termino"),
		Observacoes:         formValue(r, "observacoes"),
	}
	switch {
	case nova.Nome == "":
		apierrors.ValidationError(w, "nome da obra é obrigatório")
		return
	case nova.Responsavel == "":
		apierrors.ValidationError(w, "responsável é obrigatório")
		return
	case nova.Localizacao == "":
		apierrors.ValidationError(w, "localização é obrigatória")
		return
	case !validUIDate(nova.DataPrevisaoTermino):
		apierrors.ValidationError(w, "data_previsao_termino deve estar no formato AAAA-MM-DD")
		return
	}

	file, closeFile, ok := formFile(r, ModelFileField)
	if !ok {
		apierrors.ValidationError(w, "arquivo do modelo é obrigatório")
		return
	}
	defer closeFile()

	writeResult(w, http.StatusCreated, h.backend.CreateProject(r.Context(), nova, file))
}

// UpdateObra — PUT /api/v1/obras/{id}. Частичное изменение полей проекта.
func (h *Handler) UpdateObra(w http.ResponseWriter, r *http.Request) {
	var edicao model.EdicaoObra
	if !decodeJSON(w, r, &edicao) {
		return
	}

	if edicao == (model.EdicaoObra{}) {
		apierrors.ValidationError(w, "nenhum campo para alterar")
		return
	}
	dates := []struct {
		field string
		value *string
	}{
		{"data_inicio", edicao.DataInicio},
		{"data_previsao_termino", edicao.DataPrevisaoTermino},
	}
	for _, d := range dates {
		if d.value != nil && *d.value != "" && !validUIDate(*d.value) {
			apierrors.ValidationError(w, d.field+" deve estar no formato AAAA-MM-DD")
			return
		}
	}
	if edicao.Status != nil && !edicao.Status.Valid() {
		apierrors.ValidationError(w, "status inválido: "+string(*edicao.Status))
		return
	}

	writeResult(w, http.StatusOK, h.backend.UpdateProject(r.Context(), projectID(r), edicao))
}

// progressoRequest — тело PATCH /obras/{id}/progresso.
type progressoRequest struct {
	Progresso *int             `json:"progresso"`
	Status    model.StatusObra `json:"status"`
}

// UpdateProgresso — PATCH /api/v1/obras/{id}/progresso.
func (h *Handler) UpdateProgresso(w http.ResponseWriter, r *http.Request) {
	var req progressoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Progresso == nil || *req.Progresso < 0 || *req.Progresso > 100 {
		apierrors.ValidationError(w, "progresso deve ser um inteiro entre 0 e 100")
		return
	}
	if req.Status != "" && !req.Status.Valid() {
		apierrors.ValidationError(w, "status inválido: "+string(req.Status))
		return
	}

	writeResult(w, http.StatusOK, h.backend.UpdateProgress(r.Context(), projectID(r), *req.Progresso, req.Status))
}

// DeleteObra — DELETE /api/v1/obras/{id}. После удаления проекта удаляется и его команда.
func (h *Handler) DeleteObra(w http.ResponseWriter, r *http.Request) {
	id := projectID(r)
	res := h.backend.DeleteProject(r.Context(), id)
	if res.OK() {
		if err := h.teams.Delete(r.Context(), id); err != nil {
			h.logger.Warn("Команда удалённого проекта не удалена",
				slog.String("project_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	writeResult(w, http.StatusOK, res)
}

