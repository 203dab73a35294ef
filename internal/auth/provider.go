// Пакет auth — аутентификация пользователей шлюза.
// Provider — порт к источнику пользователей и сессий. Реализации:
// LocalProvider (пользователи и сессии в kvstore) и KeycloakProvider
// (вход через Keycloak, проверка токенов по JWKS).
// CachedProvider кэширует разрешённые сессии, TeamStore хранит составы команд.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/marodrigu3s/acomp-obras-metro/internal/domain/model"
	"github.com/marodrigu3s/acomp-obras-metro/internal/domain/rbac"
)

// Ошибки провайдеров.
var (
	ErrInvalidCredentials = errors.New("credenciais inválidas")
	ErrUserExists         = errors.New("usuário já cadastrado")
	ErrUserNotFound       = errors.New("usuário não encontrado")
	ErrSessionNotFound    = errors.New("sessão inválida ou expirada")
	ErrInvalidUser        = errors.New("dados de usuário inválidos")
)

// minPasswordLength — минимальная длина пароля нового пользователя.
const minPasswordLength = 8

// Session — разрешённая сессия пользователя.
// Token передаётся backend в Authorization.
type Session struct {
	Token     string        `json:"token"`
	User      model.Usuario `json:"usuario"`
	ExpiresAt time.Time     `json:"expira_em"`
}

// NewUser — данные для создания пользователя.
type NewUser struct {
	Nome     string      `json:"nome"`
	Email    string      `json:"email"`
	Password string      `json:"senha"`
	Cargo    string      `json:"cargo"`
	Area     string      `json:"area"`
	Papel    model.Papel `json:"papel"`
}

// Provider — источник пользователей и сессий.
type Provider interface {
	// Login проверяет учётные данные и открывает сессию.
	Login(ctx context.Context, email, password string) (*Session, error)
	// GetSession разрешает токен в сессию. ErrSessionNotFound — токен недействителен.
	GetSession(ctx context.Context, token string) (*Session, error)
	// Logout закрывает сессию. Повторный вызов не ошибка.
	Logout(ctx context.Context, token string) error
	ListUsers(ctx context.Context) ([]model.Usuario, error)
	CreateUser(ctx context.Context, u NewUser) (model.Usuario, error)
	SetUserRole(ctx context.Context, email string, role model.Papel) (model.Usuario, error)
}

// NormalizeEmail приводит e-mail к ключевому виду: без пробелов, в нижнем регистре.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateNewUser проверяет и нормализует данные нового пользователя.
// Пустая роль — viewer.
func validateNewUser(u NewUser) (NewUser, error) {
	u.Email = NormalizeEmail(u.Email)
	u.Nome = strings.TrimSpace(u.Nome)

	if u.Nome == "" {
		return u, fmt.Errorf("%w: nome obrigatório", ErrInvalidUser)
	}
	if _, err := mail.ParseAddress(u.Email); err != nil || u.Email == "" {
		return u, fmt.Errorf("%w: e-mail inválido", ErrInvalidUser)
	}
	if len(u.Password) < minPasswordLength {
		return u, fmt.Errorf("%w: a senha deve ter pelo menos %d caracteres", ErrInvalidUser, minPasswordLength)
	}
	if u.Papel == "" {
		u.Papel = model.PapelVisualizador
	}
	if !rbac.IsValidRole(u.Papel) {
		return u, fmt.Errorf("%w: papel desconhecido %q", ErrInvalidUser, u.Papel)
	}
	return u, nil
}

// validateRole проверяет роль при её смене.
func validateRole(role model.Papel) error {
	if !rbac.IsValidRole(role) {
		return fmt.Errorf("%w: papel desconhecido %q", ErrInvalidUser, role)
	}
	return nil
}
