// client.go — HTTP-клиент к Keycloak.
// Вход пользователей шлюза идёт через Resource Owner Password grant,
// управление пользователями через Admin REST API от имени service account.
package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrInvalidGrant — Keycloak отклонил логин/пароль.
var ErrInvalidGrant = errors.New("неверные учётные данные")

// ErrConflict — пользователь с таким username/email уже существует.
var ErrConflict = errors.New("пользователь уже существует")

// tokenRefreshMargin — запас до истечения, после которого токен service account перезапрашивается.
const tokenRefreshMargin = 30 * time.Second

// apiError — ответ Keycloak с неожиданным статусом.
type apiError struct {
	op     string
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s: Keycloak вернул статус %d: %s", e.op, e.status, e.body)
}

// cachedToken — access token service account и момент его истечения.
type cachedToken struct {
	mu      sync.Mutex
	value   string
	expires time.Time
}

func (t *cachedToken) valid(now time.Time) (string, bool) {
	if t.value == "" || !now.Add(tokenRefreshMargin).Before(t.expires) {
		return "", false
	}
	return t.value, true
}

// Client — HTTP-клиент к одному realm Keycloak.
type Client struct {
	realmURL     string // .../realms/<realm>
	adminURL     string // .../admin/realms/<realm>
	realm        string
	clientID     string
	clientSecret string

	httpClient *http.Client
	logger     *slog.Logger

	sa cachedToken
}

// New создаёт клиент к Keycloak.
// clientID и clientSecret задают confidential client шлюза. Он выполняет
// Password grant и Client Credentials для Admin REST API.
// При httpClient == nil используется клиент с таймаутом 30s.
func New(baseURL, realm, clientID, clientSecret string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	base := strings.TrimRight(baseURL, "/")
	escaped := url.PathEscape(realm)

	return &Client{
		realmURL:     base + "/realms/" + escaped,
		adminURL:     base + "/admin/realms/" + escaped,
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpClient,
		logger:       logger.With(slog.String("component", "keycloak_client")),
	}
}

// serviceToken возвращает токен service account, при необходимости обновляя его.
func (c *Client) serviceToken(ctx context.Context) (string, error) {
	c.sa.mu.Lock()
	defer c.sa.mu.Unlock()

	if tok, ok := c.sa.valid(time.Now()); ok {
		return tok, nil
	}

	resp, err := c.grant(ctx, "client_credentials", nil)
	if err != nil {
		return "", err
	}
	c.sa.value = resp.AccessToken
	c.sa.expires = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)

	c.logger.Debug("Токен service account обновлён", slog.Time("expires_at", c.sa.expires))
	return c.sa.value, nil
}

// PasswordGrant выполняет вход пользователя.
// Возвращает ErrInvalidGrant, если Keycloak отклонил учётные данные.
func (c *Client) PasswordGrant(ctx context.Context, username, password string) (*TokenResponse, error) {
	resp, err := c.grant(ctx, "password", url.Values{
		"username": {username},
		"password": {password},
		"scope":    {"openid email profile"},
	})
	if err != nil {
		return nil, fmt.Errorf("PasswordGrant: %w", err)
	}
	return resp, nil
}

// grant обращается к token endpoint realm с указанным grant_type.
func (c *Client) grant(ctx context.Context, grantType string, extra url.Values) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":    {grantType},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}
	for k, v := range extra {
		form[k] = v
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.realmURL+"/protocol/openid-connect/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("создание запроса токена: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос токена Keycloak: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("чтение ответа token endpoint: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if isInvalidGrant(resp.StatusCode, body) {
			return nil, ErrInvalidGrant
		}
		return nil, &apiError{op: grantType, status: resp.StatusCode, body: string(body)}
	}

	var tok TokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("декодирование токена Keycloak: %w", err)
	}
	return &tok, nil
}

// isInvalidGrant распознаёт OAuth2-ошибку invalid_grant (неверный пароль, отключённый пользователь).
func isInvalidGrant(status int, body []byte) bool {
	if status != http.StatusBadRequest && status != http.StatusUnauthorized {
		return false
	}
	var oauthErr struct {
		Error string `json:"error"`
	}
	return json.Unmarshal(body, &oauthErr) == nil && oauthErr.Error == "invalid_grant"
}

// adminCall выполняет запрос к Admin REST API.
// Ответ со статусом из want декодируется в out (если out != nil),
// 409 превращается в ErrConflict, прочие статусы в *apiError.
// Возвращает заголовки ответа.
func (c *Client) adminCall(ctx context.Context, op, method, rel string, in, out any, want ...int) (http.Header, error) {
	token, err := c.serviceToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: получение токена: %w", op, err)
	}

	var payload io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("%s: сериализация запроса: %w", op, err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.adminURL+rel, payload)
	if err != nil {
		return nil, fmt.Errorf("%s: создание запроса: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return nil, ErrConflict
	}
	if !statusIn(resp.StatusCode, want) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &apiError{op: op, status: resp.StatusCode, body: string(body)}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("%s: декодирование ответа: %w", op, err)
		}
	}
	return resp.Header, nil
}

func statusIn(status int, want []int) bool {
	for _, w := range want {
		if status == w {
			return true
		}
	}
	return false
}

// ListUsers возвращает страницу пользователей realm.
func (c *Client) ListUsers(ctx context.Context, first, max int) ([]KeycloakUser, error) {
	q := url.Values{
		"first":               {strconv.Itoa(first)},
		"max":                 {strconv.Itoa(max)},
		"briefRepresentation": {"false"},
	}
	var users []KeycloakUser
	if _, err := c.adminCall(ctx, "ListUsers", http.MethodGet, "/users?"+q.Encode(), nil, &users, http.StatusOK); err != nil {
		return nil, err
	}
	return users, nil
}

// FindUserByEmail ищет пользователя по точному e-mail (без учёта регистра).
// Возвращает nil, nil, если пользователя нет.
func (c *Client) FindUserByEmail(ctx context.Context, email string) (*KeycloakUser, error) {
	q := url.Values{
		"email":               {email},
		"exact":               {"true"},
		"briefRepresentation": {"false"},
	}
	var users []KeycloakUser
	if _, err := c.adminCall(ctx, "FindUserByEmail", http.MethodGet, "/users?"+q.Encode(), nil, &users, http.StatusOK); err != nil {
		return nil, err
	}
	for i := range users {
		if strings.EqualFold(users[i].Email, email) {
			return &users[i], nil
		}
	}
	return nil, nil
}

// CreateUser создаёт пользователя с постоянным паролем и возвращает его ID
// (последний сегмент заголовка Location).
func (c *Client) CreateUser(ctx context.Context, user KeycloakUser, password string) (string, error) {
	body := userCreateRequest{KeycloakUser: user}
	if password != "" {
		body.Credentials = []credential{{Type: "password", Value: password}}
	}

	hdr, err := c.adminCall(ctx, "CreateUser", http.MethodPost, "/users", body, nil, http.StatusCreated)
	if err != nil {
		return "", err
	}
	loc := hdr.Get("Location")
	if loc == "" {
		return "", errors.New("CreateUser: в ответе нет заголовка Location")
	}
	return path.Base(strings.TrimRight(loc, "/")), nil
}

// UpdateUser сохраняет представление пользователя целиком, включая атрибуты.
func (c *Client) UpdateUser(ctx context.Context, user KeycloakUser) error {
	if user.ID == "" {
		return errors.New("UpdateUser: пустой ID пользователя")
	}
	_, err := c.adminCall(ctx, "UpdateUser", http.MethodPut, "/users/"+url.PathEscape(user.ID), user, nil,
		http.StatusNoContent, http.StatusOK)
	return err
}

// RealmInfo возвращает краткое представление realm.
func (c *Client) RealmInfo(ctx context.Context) (*RealmRepresentation, error) {
	var realm RealmRepresentation
	if _, err := c.adminCall(ctx, "RealmInfo", http.MethodGet, "", nil, &realm, http.StatusOK); err != nil {
		return nil, err
	}
	return &realm, nil
}

// CheckReady — readiness: realm доступен и включён.
func (c *Client) CheckReady() (string, string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	realm, err := c.RealmInfo(ctx)
	switch {
	case err != nil:
		return "fail", fmt.Sprintf("Keycloak недоступен: %v", err)
	case !realm.Enabled:
		return "degraded", fmt.Sprintf("realm %s отключён", realm.Realm)
	default:
		return "ok", fmt.Sprintf("realm %s доступен", c.realm)
	}
}
