// users.go — управление пользователями (только general-admin).
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/marodrigu3s/acomp-obras-metro/internal/api/errors"
	"github.com/marodrigu3s/acomp-obras-metro/internal/auth"
	"github.com/marodrigu3s/acomp-obras-metro/internal/domain/model"
)

// ListUsers — GET /api/v1/users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.provider.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("Ошибка получения списка пользователей", slog.String("error", err.Error()))
		apierrors.IDPUnavailable(w, "erro ao listar usuários")
		return
	}
	writeData(w, http.StatusOK, users)
}

// CreateUser — POST /api/v1/users.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req auth.NewUser
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.provider.CreateUser(r.Context(), req)
	switch {
	case errors.Is(err, auth.ErrInvalidUser):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, auth.ErrUserExists):
		apierrors.Conflict(w, err.Error())
	case err != nil:
		h.logger.Error("Ошибка создания пользователя", slog.String("error", err.Error()))
		apierrors.IDPUnavailable(w, "erro ao criar usuário")
	default:
		writeData(w, http.StatusCreated, user)
	}
}

// roleRequest — тело PUT /users/{email}/role.
type roleRequest struct {
	Papel model.Papel `json:"papel"`
}

// SetUserRole — PUT /api/v1/users/{email}/role.
func (h *Handler) SetUserRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil {
		apierrors.ValidationError(w, "e-mail inválido na URL")
		return
	}
	user, err := h.provider.SetUserRole(r.Context(), email, req.Papel)
	switch {
	case errors.Is(err, auth.ErrInvalidUser):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, auth.ErrUserNotFound):
		apierrors.NotFound(w, err.Error())
	case err != nil:
		h.logger.Error("Ошибка смены роли", slog.String("email", email), slog.String("error", err.Error()))
		apierrors.IDPUnavailable(w, "erro ao alterar papel")
	default:
		writeData(w, http.StatusOK, user)
	}
}
