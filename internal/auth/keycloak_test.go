package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/marodrigu3s/acomp-obras-metro/internal/domain/model"
	"github.com/marodrigu3s/acomp-obras-metro/internal/keycloak"
)

const (
	testKeyID  = "test-key-og"
	testIssuer = "https://keycloak.test/realms/obras"
)

// buildJWKSetJSON строит JWKS JSON из RSA публичного ключа.
func buildJWKSetJSON(pub *rsa.PublicKey, kid string) json.RawMessage {
	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		},
	}
	data, _ := json.Marshal(jwks)
	return data
}

// signToken подписывает RS256 токен Keycloak с указанными claims.
func signToken(t *testing.T, key *rsa.PrivateKey, extra jwt.MapClaims) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":                "kc-ana",
		"jti":                "jti-" + t.Name(),
		"email":              "ana@obras.example",
		"preferred_username": "ana",
		"name":               "Ana Souza",
		"iss":                testIssuer,
		"exp":                jwt.NewNumericDate(time.Now().Add(time.Hour)),
		"iat":                jwt.NewNumericDate(time.Now()),
	}
	for k, v := range extra {
		claims[k] = v
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("подпись токена: %v", err)
	}
	return signed
}

// keycloakFixture — mock Keycloak и провайдер поверх него.
type keycloakFixture struct {
	key          *rsa.PrivateKey
	provider     *KeycloakProvider
	userToken    string
	users        []keycloak.KeycloakUser
	adminCalls   atomic.Int32
	lastUpdate   keycloak.KeycloakUser
	createStatus int
}

func newKeycloakFixture(t *testing.T) *keycloakFixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	f := &keycloakFixture{key: key, createStatus: http.StatusCreated}

	mux := http.NewServeMux()
	mux.HandleFunc("/realms/obras/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.Form.Get("grant_type") == "password" {
			if r.Form.Get("password") != "s3nha-forte" {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			json.NewEncoder(w).Encode(keycloak.TokenResponse{AccessToken: f.userToken, ExpiresIn: 300})
			return
		}
		json.NewEncoder(w).Encode(keycloak.TokenResponse{AccessToken: "admin-token", ExpiresIn: 300})
	})
	mux.HandleFunc("/admin/realms/obras/users", func(w http.ResponseWriter, r *http.Request) {
		f.adminCalls.Add(1)
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			if email := r.URL.Query().Get("email"); email != "" {
				var found []keycloak.KeycloakUser
				for _, u := range f.users {
					if strings.EqualFold(u.Email, email) {
						found = append(found, u)
					}
				}
				json.NewEncoder(w).Encode(found)
				return
			}
			json.NewEncoder(w).Encode(f.users)
		case http.MethodPost:
			if f.createStatus == http.StatusCreated {
				w.Header().Set("Location", "https://keycloak.test/admin/realms/obras/users/kc-new")
			}
			w.WriteHeader(f.createStatus)
		}
	})
	mux.HandleFunc("/admin/realms/obras/users/", func(w http.ResponseWriter, r *http.Request) {
		f.adminCalls.Add(1)
		json.NewDecoder(r.Body).Decode(&f.lastUpdate)
		w.WriteHeader(http.StatusNoContent)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	kf, err := keyfunc.NewJWKSetJSON(buildJWKSetJSON(&key.PublicKey, testKeyID))
	if err != nil {
		t.Fatalf("не удалось создать keyfunc: %v", err)
	}

	client := keycloak.New(server.URL, "obras", "obras-gateway", "secret", server.Client(), testLogger())
	f.provider = NewKeycloakProviderWithKeyfunc(client, newTestStore(t), kf, testIssuer, 5*time.Second, testLogger())
	return f
}

func TestKeycloakProvider_GetSessionRoleFromClaim(t *testing.T) {
	f := newKeycloakFixture(t)
	token := signToken(t, f.key, jwt.MapClaims{"obras_role": "project-admin"})

	session, err := f.provider.GetSession(context.Background(), token)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if session.User.Papel != model.PapelAdminObra {
		t.Errorf("роль = %q, ожидается project-admin", session.User.Papel)
	}
	if session.User.Nome != "Ana Souza" || session.User.ID != "kc-ana" {
		t.Errorf("профиль = %+v", session.User)
	}
	if f.adminCalls.Load() != 0 {
		t.Errorf("при роли в claim Admin API не вызывается, вызовов: %d", f.adminCalls.Load())
	}
}

func TestKeycloakProvider_GetSessionRoleFromAttribute(t *testing.T) {
	f := newKeycloakFixture(t)
	u := keycloak.KeycloakUser{ID: "kc-ana", Email: "ana@obras.example", FirstName: "Ana", LastName: "Souza"}
	u.SetAttribute(keycloak.RoleAttribute, "general-admin")
	u.SetAttribute(keycloak.AreaAttribute, "Linha 6")
	f.users = []keycloak.KeycloakUser{u}

	session, err := f.provider.GetSession(context.Background(), signToken(t, f.key, nil))
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if session.User.Papel != model.PapelAdminGeral || session.User.Area != "Linha 6" {
		t.Errorf("профиль = %+v", session.User)
	}
}

func TestKeycloakProvider_GetSessionUnknownRoleIsViewer(t *testing.T) {
	f := newKeycloakFixture(t)
	token := signToken(t, f.key, jwt.MapClaims{"obras_role": "root"})

	session, err := f.provider.GetSession(context.Background(), token)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if session.User.Papel != model.PapelVisualizador {
		t.Errorf("роль = %q, ожидается viewer", session.User.Papel)
	}
}

func TestKeycloakProvider_GetSessionRejects(t *testing.T) {
	f := newKeycloakFixture(t)

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"чужой issuer", signToken(t, f.key, jwt.MapClaims{"iss": "https://other/realms/x", "obras_role": "viewer"})},
		{"истёкший", signToken(t, f.key, jwt.MapClaims{"exp": jwt.NewNumericDate(time.Now().Add(-time.Hour)), "obras_role": "viewer"})},
		{"без e-mail", signToken(t, f.key, jwt.MapClaims{"email": "", "obras_role": "viewer"})},
		{"чужая подпись", signToken(t, otherKey, jwt.MapClaims{"obras_role": "viewer"})},
		{"пользователь не найден", signToken(t, f.key, nil)},
		{"мусор", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.provider.GetSession(context.Background(), tt.token); !errors.Is(err, ErrSessionNotFound) {
				t.Errorf("ожидалась ErrSessionNotFound, получена %v", err)
			}
		})
	}
}

func TestKeycloakProvider_LoginAndLogout(t *testing.T) {
	f := newKeycloakFixture(t)
	f.userToken = signToken(t, f.key, jwt.MapClaims{"obras_role": "viewer"})
	ctx := context.Background()

	if _, err := f.provider.Login(ctx, "ana@obras.example", "errada"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("неверный пароль: ожидалась ErrInvalidCredentials, получена %v", err)
	}

	session, err := f.provider.Login(ctx, "ANA@obras.example", "s3nha-forte")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if session.Token != f.userToken {
		t.Error("токен сессии должен совпадать с access token Keycloak")
	}

	if err := f.provider.Logout(ctx, session.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := f.provider.GetSession(ctx, session.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("после logout ожидалась ErrSessionNotFound, получена %v", err)
	}

	purged, err := f.provider.PurgeExpiredRevocations(ctx)
	if err != nil {
		t.Fatalf("PurgeExpiredRevocations: %v", err)
	}
	if purged != 0 {
		t.Errorf("отзыв ещё действующего токена удалён (%d)", purged)
	}
}

func TestKeycloakProvider_ListUsers(t *testing.T) {
	f := newKeycloakFixture(t)
	admin := keycloak.KeycloakUser{ID: "1", Email: "Bruno@Obras.example", FirstName: "Bruno", LastName: "Lima"}
	admin.SetAttribute(keycloak.RoleAttribute, "general-admin")
	admin.SetAttribute(keycloak.JobTitleAttribute, "Gestor")
	f.users = []keycloak.KeycloakUser{
		admin,
		{ID: "2", Email: "ana@obras.example", Username: "ana"},
		{ID: "3", Username: "service-account"},
	}

	users, err := f.provider.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("ожидалось 2 пользователя (без учётки без e-mail), получено %d", len(users))
	}
	if users[0].Nome != "Bruno Lima" || users[0].Email != "bruno@obras.example" ||
		users[0].Papel != model.PapelAdminGeral || users[0].Cargo != "Gestor" {
		t.Errorf("users[0] = %+v", users[0])
	}
	if users[1].Nome != "ana" || users[1].Papel != model.PapelVisualizador {
		t.Errorf("users[1] = %+v", users[1])
	}
}

func TestKeycloakProvider_CreateUser(t *testing.T) {
	f := newKeycloakFixture(t)
	ctx := context.Background()

	u, err := f.provider.CreateUser(ctx, NewUser{Nome: "Rui Costa", Email: "Rui@obras.example", Password: "12345678"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID != "kc-new" || u.Nome != "Rui Costa" || u.Papel != model.PapelVisualizador {
		t.Errorf("пользователь = %+v", u)
	}

	f.createStatus = http.StatusConflict
	if _, err := f.provider.CreateUser(ctx, NewUser{Nome: "Rui", Email: "rui@obras.example", Password: "12345678"}); !errors.Is(err, ErrUserExists) {
		t.Errorf("ожидалась ErrUserExists, получена %v", err)
	}
}

func TestKeycloakProvider_SetUserRole(t *testing.T) {
	f := newKeycloakFixture(t)
	f.users = []keycloak.KeycloakUser{{ID: "kc-ana", Email: "ana@obras.example", Username: "ana"}}
	ctx := context.Background()

	u, err := f.provider.SetUserRole(ctx, "ana@obras.example", model.PapelAdminObra)
	if err != nil {
		t.Fatalf("SetUserRole: %v", err)
	}
	if u.Papel != model.PapelAdminObra {
		t.Errorf("роль = %q", u.Papel)
	}
	if f.lastUpdate.Attribute(keycloak.RoleAttribute) != "project-admin" {
		t.Errorf("атрибут в PUT = %q", f.lastUpdate.Attribute(keycloak.RoleAttribute))
	}

	if _, err := f.provider.SetUserRole(ctx, "rui@obras.example", model.PapelAdminObra); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("ожидалась ErrUserNotFound, получена %v", err)
	}
}
