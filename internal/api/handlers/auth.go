// auth.go — вход, выход и текущая сессия.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/marodrigu3s/acomp-obras-metro/internal/api/errors"
	"github.com/marodrigu3s/acomp-obras-metro/internal/auth"
)

// loginRequest — тело POST /auth/login.
type loginRequest struct {
	Email string `json:"email"`
	Senha string `json:"senha"`
}

// Login — POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Senha == "" {
		apierrors.ValidationError(w, "e-mail e senha são obrigatórios")
		return
	}

	session, err := h.provider.Login(r.Context(), req.Email, req.Senha)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		apierrors.Unauthorized(w, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("Ошибка входа", slog.String("error", err.Error()))
		apierrors.IDPUnavailable(w, "serviço de autenticação indisponível")
		return
	}
	writeData(w, http.StatusOK, session)
}

// logoutResponse — данные ответа на logout.
type logoutResponse struct {
	Encerrada bool `json:"encerrada"`
}

// Logout — POST /api/v1/auth/logout. Закрывает текущую сессию.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	if session == nil {
		apierrors.Unauthorized(w, "sessão ausente: faça login")
		return
	}
	if err := h.provider.Logout(r.Context(), session.Token); err != nil {
		h.logger.Error("Ошибка выхода", slog.String("email", session.User.Email), slog.String("error", err.Error()))
		apierrors.InternalError(w, "erro ao encerrar sessão")
		return
	}
	writeData(w, http.StatusOK, logoutResponse{Encerrada: true})
}

// GetSessao — GET /api/v1/auth/session. Текущая сессия и профиль пользователя.
func (h *Handler) GetSessao(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	if session == nil {
		apierrors.Unauthorized(w, "sessão ausente: faça login")
		return
	}
	writeData(w, http.StatusOK, session)
}
