// equipe.go — состав команды проекта (зрители, которым виден проект).
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/marodrigu3s/acomp-obras-metro/internal/api/errors"
	"github.com/marodrigu3s/acomp-obras-metro/internal/auth"
)

// GetEquipe — GET /api/v1/obras/{id}/equipe.
func (h *Handler) GetEquipe(w http.ResponseWriter, r *http.Request) {
	id := projectID(r)
	if !h.requireMember(w, r, id) {
		return
	}

	team, err := h.teams.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("Ошибка чтения команды", slog.String("project_id", id), slog.String("error", err.Error()))
		apierrors.InternalError(w, "erro ao carregar equipe")
		return
	}
	writeData(w, http.StatusOK, team)
}

// equipeRequest — тело PUT /obras/{id}/equipe.
type equipeRequest struct {
	Emails []string `json:"emails"`
}

// PutEquipe — PUT /api/v1/obras/{id}/equipe. Полная замена состава.
func (h *Handler) PutEquipe(w http.ResponseWriter, r *http.Request) {
	var req equipeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id := projectID(r)
	team, err := h.teams.Set(r.Context(), id, req.Emails)
	if errors.Is(err, auth.ErrInvalidTeam) {
		apierrors.ValidationError(w, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("Ошибка сохранения команды", slog.String("project_id", id), slog.String("error", err.Error()))
		apierrors.InternalError(w, "erro ao salvar equipe")
		return
	}
	writeData(w, http.StatusOK, team)
}
