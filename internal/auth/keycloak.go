package auth

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/marodrigu3s/acomp-obras-metro/internal/domain/model"
	"github.com/marodrigu3s/acomp-obras-metro/internal/domain/rbac"
	"github.com/marodrigu3s/acomp-obras-metro/internal/keycloak"
	"github.com/marodrigu3s/acomp-obras-metro/internal/kvstore"
)

// revokedKeyPrefix — отозванные при logout токены Keycloak (до их exp).
const revokedKeyPrefix = "revoked:"

// usersPageSize — размер страницы ListUsers Admin REST API.
const usersPageSize = 500

// keycloakClaims — claims access token Keycloak, нужные шлюзу.
type keycloakClaims struct {
	jwt.RegisteredClaims
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name"`
	// Role — роль из атрибута obras_role (если в клиенте настроен mapper).
	Role string `json:"obras_role"`
}

// revokedRecord — запись отозванного токена.
type revokedRecord struct {
	ExpiresAt time.Time `json:"expires_at"`
}

// KeycloakProvider — вход через Keycloak, проверка access token по JWKS (RS256).
// Роль приложения хранится в атрибуте пользователя obras_role.
type KeycloakProvider struct {
	client *keycloak.Client
	jwks   keyfunc.Keyfunc
	issuer string
	leeway time.Duration
	store  kvstore.Store
	logger *slog.Logger
}

// NewKeycloakProvider создаёт провайдер с JWKS storage и фоновым обновлением ключей.
// jwksURL — URL к JWKS endpoint Keycloak.
// caCertPath — опциональный путь к CA-сертификату для TLS.
// issuer — ожидаемый issuer JWT (https://keycloak/realms/obras).
func NewKeycloakProvider(
	client *keycloak.Client,
	store kvstore.Store,
	jwksURL, caCertPath, issuer string,
	jwksRefreshInterval, leeway time.Duration,
	logger *slog.Logger,
) (*KeycloakProvider, error) {
	httpClient := http.DefaultClient
	if caCertPath != "" {
		var err error
		httpClient, err = HTTPClientWithCA(caCertPath, 10*time.Second)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата %s: %w", caCertPath, err)
		}
	}

	// NoErrorReturnFirstHTTPReq — стартуем даже если Keycloak ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           jwksRefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return NewKeycloakProviderWithKeyfunc(client, store, k, issuer, leeway, logger), nil
}

// NewKeycloakProviderWithKeyfunc создаёт провайдер с готовой keyfunc.
func NewKeycloakProviderWithKeyfunc(
	client *keycloak.Client,
	store kvstore.Store,
	kf keyfunc.Keyfunc,
	issuer string,
	leeway time.Duration,
	logger *slog.Logger,
) *KeycloakProvider {
	return &KeycloakProvider{
		client: client,
		jwks:   kf,
		issuer: issuer,
		leeway: leeway,
		store:  store,
		logger: logger.With(slog.String("component", "keycloak_auth")),
	}
}

// HTTPClientWithCA создаёт HTTP-клиент с кастомным CA-сертификатом.
func HTTPClientWithCA(caCertPath string, timeout time.Duration) (*http.Client, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, err
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs:    caCertPool,
				MinVersion: tls.VersionTLS12,
			},
		},
	}, nil
}

// parseToken проверяет подпись RS256, issuer и срок токена.
func (p *KeycloakProvider) parseToken(ctx context.Context, token string) (*keycloakClaims, error) {
	claims := &keycloakClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(p.leeway),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	if _, err := jwt.ParseWithClaims(token, claims, p.jwks.KeyfuncCtx(ctx), opts...); err != nil {
		p.logger.Debug("JWT валидация не пройдена", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: token sem e-mail", ErrSessionNotFound)
	}
	return claims, nil
}

// revocationKey — ключ отзыва: jti, а без него сам токен.
func revocationKey(claims *keycloakClaims, token string) string {
	if claims.ID != "" {
		return revokedKeyPrefix + claims.ID
	}
	return revokedKeyPrefix + token
}

// GetSession проверяет access token и определяет роль пользователя.
func (p *KeycloakProvider) GetSession(ctx context.Context, token string) (*Session, error) {
	claims, err := p.parseToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if _, err := p.store.Get(ctx, revocationKey(claims, token)); err == nil {
		return nil, ErrSessionNotFound
	} else if !errors.Is(err, kvstore.ErrNotFound) {
		return nil, fmt.Errorf("проверка отзыва токена: %w", err)
	}

	user := model.Usuario{
		ID:    claims.Subject,
		Nome:  claims.Name,
		Email: NormalizeEmail(claims.Email),
		Papel: model.Papel(claims.Role),
	}
	if user.Nome == "" {
		user.Nome = claims.PreferredUsername
	}

	// Без mapper роль и профиль берутся из атрибутов пользователя
	if user.Papel == "" {
		kcUser, err := p.client.FindUserByEmail(ctx, user.Email)
		if err != nil {
			return nil, fmt.Errorf("получение пользователя Keycloak: %w", err)
		}
		if kcUser == nil {
			return nil, ErrSessionNotFound
		}
		user = usuarioFromKeycloak(*kcUser)
	}
	if !rbac.IsValidRole(user.Papel) {
		user.Papel = model.PapelVisualizador
	}

	return &Session{Token: token, User: user, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Login выполняет Password grant и разрешает полученный токен в сессию.
func (p *KeycloakProvider) Login(ctx context.Context, email, password string) (*Session, error) {
	token, err := p.client.PasswordGrant(ctx, NormalizeEmail(email), password)
	if errors.Is(err, keycloak.ErrInvalidGrant) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	session, err := p.GetSession(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("проверка токена после входа: %w", err)
	}

	p.logger.Info("Пользователь вошёл",
		slog.String("email", session.User.Email),
		slog.String("role", string(session.User.Papel)),
	)
	return session, nil
}

// Logout помечает токен отозванным до истечения его срока.
func (p *KeycloakProvider) Logout(ctx context.Context, token string) error {
	claims, err := p.parseToken(ctx, token)
	if err != nil {
		return nil
	}
	rec := revokedRecord{ExpiresAt: claims.ExpiresAt.Time}
	if err := kvstore.PutJSON(ctx, p.store, revocationKey(claims, token), rec); err != nil {
		return fmt.Errorf("сохранение отзыва токена: %w", err)
	}
	p.logger.Info("Пользователь вышел", slog.String("email", claims.Email))
	return nil
}

// usuarioFromKeycloak переводит пользователя Keycloak в профиль приложения.
func usuarioFromKeycloak(u keycloak.KeycloakUser) model.Usuario {
	nome := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if nome == "" {
		nome = u.Username
	}
	papel := model.Papel(u.Attribute(keycloak.RoleAttribute))
	if !rbac.IsValidRole(papel) {
		papel = model.PapelVisualizador
	}
	return model.Usuario{
		ID:    u.ID,
		Nome:  nome,
		Email: NormalizeEmail(u.Email),
		Cargo: u.Attribute(keycloak.JobTitleAttribute),
		Area:  u.Attribute(keycloak.AreaAttribute),
		Papel: papel,
	}
}

// ListUsers возвращает всех пользователей realm.
func (p *KeycloakProvider) ListUsers(ctx context.Context) ([]model.Usuario, error) {
	var users []model.Usuario
	for first := 0; ; first += usersPageSize {
		page, err := p.client.ListUsers(ctx, first, usersPageSize)
		if err != nil {
			return nil, err
		}
		for _, u := range page {
			if u.Email == "" {
				continue
			}
			users = append(users, usuarioFromKeycloak(u))
		}
		if len(page) < usersPageSize {
			break
		}
	}
	if users == nil {
		users = []model.Usuario{}
	}
	return users, nil
}

// CreateUser создаёт пользователя в realm с ролью в атрибуте.
func (p *KeycloakProvider) CreateUser(ctx context.Context, u NewUser) (model.Usuario, error) {
	u, err := validateNewUser(u)
	if err != nil {
		return model.Usuario{}, err
	}

	first, last, _ := strings.Cut(u.Nome, " ")
	kcUser := keycloak.KeycloakUser{
		Username:      u.Email,
		Email:         u.Email,
		FirstName:     first,
		LastName:      last,
		Enabled:       true,
		EmailVerified: true,
	}
	kcUser.SetAttribute(keycloak.RoleAttribute, string(u.Papel))
	if u.Cargo != "" {
		kcUser.SetAttribute(keycloak.JobTitleAttribute, u.Cargo)
	}
	if u.Area != "" {
		kcUser.SetAttribute(keycloak.AreaAttribute, u.Area)
	}

	id, err := p.client.CreateUser(ctx, kcUser, u.Password)
	if errors.Is(err, keycloak.ErrConflict) {
		return model.Usuario{}, ErrUserExists
	}
	if err != nil {
		return model.Usuario{}, err
	}
	kcUser.ID = id

	p.logger.Info("Пользователь создан в Keycloak",
		slog.String("email", u.Email),
		slog.String("role", string(u.Papel)),
	)
	return usuarioFromKeycloak(kcUser), nil
}

// SetUserRole меняет атрибут obras_role пользователя.
func (p *KeycloakProvider) SetUserRole(ctx context.Context, email string, role model.Papel) (model.Usuario, error) {
	if err := validateRole(role); err != nil {
		return model.Usuario{}, err
	}

	kcUser, err := p.client.FindUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return model.Usuario{}, err
	}
	if kcUser == nil {
		return model.Usuario{}, ErrUserNotFound
	}

	kcUser.SetAttribute(keycloak.RoleAttribute, string(role))
	if err := p.client.UpdateUser(ctx, *kcUser); err != nil {
		return model.Usuario{}, err
	}

	p.logger.Info("Роль пользователя изменена",
		slog.String("email", kcUser.Email),
		slog.String("role", string(role)),
	)
	return usuarioFromKeycloak(*kcUser), nil
}

// PurgeExpiredRevocations удаляет записи отзыва токенов, срок которых истёк.
func (p *KeycloakProvider) PurgeExpiredRevocations(ctx context.Context) (int, error) {
	return purgeExpired(ctx, p.store, revokedKeyPrefix, time.Now(), p.logger)
}
