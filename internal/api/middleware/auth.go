// auth.go — аутентификация запросов по сессионному токену и проверка ролей.
package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/marodrigu3s/acomp-obras-metro/internal/api/errors"
	"github.com/marodrigu3s/acomp-obras-metro/internal/auth"
	"github.com/marodrigu3s/acomp-obras-metro/internal/domain/model"
	"github.com/marodrigu3s/acomp-obras-metro/internal/domain/rbac"
)

// BearerToken извлекает токен из заголовка Authorization: Bearer <token>.
// Возвращает пустую строку, если заголовок отсутствует или имеет другой формат.
func BearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Authenticate возвращает middleware, разрешающий Bearer token в сессию
// через provider и помещающий её в контекст запроса (auth.WithSession).
func Authenticate(provider auth.Provider, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				apierrors.Unauthorized(w, "sessão ausente: faça login")
				return
			}

			session, err := provider.GetSession(r.Context(), token)
			if errors.Is(err, auth.ErrSessionNotFound) {
				apierrors.Unauthorized(w, auth.ErrSessionNotFound.Error())
				return
			}
			if err != nil {
				logger.Error("Ошибка проверки сессии",
					slog.String("request_id", RequestIDFromContext(r.Context())),
					slog.String("error", err.Error()),
				)
				apierrors.IDPUnavailable(w, "serviço de autenticação indisponível")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), session)))
		})
	}
}

// RequireRole возвращает middleware, пропускающий пользователей с ролью не ниже required.
// Должен использоваться ПОСЛЕ Authenticate.
func RequireRole(required model.Papel) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := auth.SessionFromContext(r.Context())
			if session == nil {
				apierrors.Unauthorized(w, "sessão ausente: faça login")
				return
			}
			if !rbac.AtLeast(session.User.Papel, required) {
				apierrors.Forbidden(w, "permissão insuficiente: requer papel "+string(required))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
