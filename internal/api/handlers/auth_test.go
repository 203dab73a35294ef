package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apierrors "github.com/marodrigu3s/acomp-obras-metro/internal/api/errors"
	"github.com/marodrigu3s/acomp-obras-metro/internal/auth"
	"github.com/marodrigu3s/acomp-obras-metro/internal/domain/model"
)

// seedUser создаёт пользователя в локальном провайдере окружения.
func seedUser(t *testing.T, env *testEnv, email string, role model.Papel) {
	t.Helper()
	_, err := env.provider.CreateUser(context.Background(), auth.NewUser{
		Nome:     "Teste",
		Email:    email,
		Password: "senha-forte",
		Papel:    role,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, nil)
	seedUser(t, env, "ana@obras.example", model.PapelVisualizador)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"успешный вход", `{"email":"Ana@Obras.example","senha":"senha-forte"}`, http.StatusOK, ""},
		{"неверный пароль", `{"email":"ana@obras.example","senha":"errada"}`, http.StatusUnauthorized, apierrors.CodeUnauthorized},
		{"неизвестный пользователь", `{"email":"x@obras.example","senha":"senha-forte"}`, http.StatusUnauthorized, apierrors.CodeUnauthorized},
		{"без пароля", `{"email":"ana@obras.example"}`, http.StatusBadRequest, apierrors.CodeValidationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			env.handler.Login(rec, newRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(tt.body), nil, nil))

			got := decodeEnvelope(t, rec, tt.wantStatus)
			if got.Code != tt.wantCode {
				t.Errorf("code = %q, ожидается %q", got.Code, tt.wantCode)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var session auth.Session
			if err := json.Unmarshal(got.Data, &session); err != nil {
				t.Fatal(err)
			}
			if session.Token == "" || session.User.Email != "ana@obras.example" {
				t.Errorf("session = %+v", session)
			}
		})
	}
}

func TestLogout_RevokesSession(t *testing.T) {
	env := newTestEnv(t, nil)
	seedUser(t, env, "ana@obras.example", model.PapelVisualizador)
	ctx := context.Background()

	session, err := env.provider.Login(ctx, "ana@obras.example", "senha-forte")
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	env.handler.Logout(rec, newRequest(http.MethodPost, "/api/v1/auth/logout", nil, session, nil))
	decodeEnvelope(t, rec, http.StatusOK)

	if _, err := env.provider.GetSession(ctx, session.Token); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Errorf("после выхода GetSession = %v, ожидается ErrSessionNotFound", err)
	}
}

func TestGetSessao(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := httptest.NewRecorder()
	env.handler.GetSessao(rec, newRequest(http.MethodGet, "/api/v1/auth/session", nil, nil, nil))
	decodeEnvelope(t, rec, http.StatusUnauthorized)

	rec = httptest.NewRecorder()
	env.handler.GetSessao(rec, newRequest(http.MethodGet, "/api/v1/auth/session", nil, viewerSession, nil))
	var session auth.Session
	if err := json.Unmarshal(decodeEnvelope(t, rec, http.StatusOK).Data, &session); err != nil {
		t.Fatal(err)
	}
	if session.User.Papel != model.PapelVisualizador {
		t.Errorf("papel = %q", session.User.Papel)
	}
}

func TestCreateUser(t *testing.T) {
	env := newTestEnv(t, nil)
	seedUser(t, env, "rui@obras.example", model.PapelAdminObra)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"новый пользователь", `{"nome":"Bia","email":"bia@obras.example","senha":"senha-forte","papel":"viewer"}`, http.StatusCreated},
		{"дубликат", `{"nome":"Rui","email":"RUI@obras.example","senha":"senha-forte"}`, http.StatusConflict},
		{"короткий пароль", `{"nome":"Leo","email":"leo@obras.example","senha":"123"}`, http.StatusBadRequest},
		{"неизвестная роль", `{"nome":"Leo","email":"leo@obras.example","senha":"senha-forte","papel":"root"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			env.handler.CreateUser(rec, newRequest(http.MethodPost, "/api/v1/users", strings.NewReader(tt.body), adminSession, nil))
			decodeEnvelope(t, rec, tt.wantStatus)
		})
	}
}

func TestListUsers(t *testing.T) {
	env := newTestEnv(t, nil)
	seedUser(t, env, "rui@obras.example", model.PapelAdminObra)
	seedUser(t, env, "ana@obras.example", model.PapelVisualizador)

	rec := httptest.NewRecorder()
	env.handler.ListUsers(rec, newRequest(http.MethodGet, "/api/v1/users", nil, adminSession, nil))

	var users []model.Usuario
	if err := json.Unmarshal(decodeEnvelope(t, rec, http.StatusOK).Data, &users); err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 {
		t.Fatalf("получено %d пользователей, ожидается 2", len(users))
	}
	if !strings.Contains(rec.Body.String(), "ana@obras.example") || strings.Contains(rec.Body.String(), "password") {
		t.Errorf("тело = %s", rec.Body.String())
	}
}

func TestSetUserRole(t *testing.T) {
	env := newTestEnv(t, nil)
	seedUser(t, env, "ana@obras.example", model.PapelVisualizador)

	t.Run("экранированный e-mail", func(t *testing.T) {
		rec := httptest.NewRecorder()
		body := strings.NewReader(`{"papel":"project-admin"}`)
		env.handler.SetUserRole(rec, newRequest(http.MethodPut, "/api/v1/users/ana%40obras.example/role", body, adminSession, map[string]string{"email": "ana%40obras.example"}))

		var user model.Usuario
		if err := json.Unmarshal(decodeEnvelope(t, rec, http.StatusOK).Data, &user); err != nil {
			t.Fatal(err)
		}
		if user.Papel != model.PapelAdminObra {
			t.Errorf("papel = %q", user.Papel)
		}
	})

	t.Run("неизвестный пользователь", func(t *testing.T) {
		rec := httptest.NewRecorder()
		body := strings.NewReader(`{"papel":"viewer"}`)
		env.handler.SetUserRole(rec, newRequest(http.MethodPut, "/api/v1/users/x/role", body, adminSession, map[string]string{"email": "x@obras.example"}))
		got := decodeEnvelope(t, rec, http.StatusNotFound)
		if got.Code != apierrors.CodeNotFound {
			t.Errorf("code = %q", got.Code)
		}
	})

	t.Run("неизвестная роль", func(t *testing.T) {
		rec := httptest.NewRecorder()
		body := strings.NewReader(`{"papel":"dono"}`)
		env.handler.SetUserRole(rec, newRequest(http.MethodPut, "/api/v1/users/x/role", body, adminSession, map[string]string{"email": "ana@obras.example"}))
		decodeEnvelope(t, rec, http.StatusBadRequest)
	})
}
