package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/marodrigu3s/acomp-obras-metro/internal/domain/model"
	"github.com/marodrigu3s/acomp-obras-metro/internal/kvstore"
)

// localIssuer — issuer сессионных токенов локального провайдера.
const localIssuer = "obras-gateway"

// Префиксы ключей kvstore.
const (
	userKeyPrefix    = "user:"
	sessionKeyPrefix = "session:"
)

// userRecord — учётная запись в kvstore. Пароль хранится только как bcrypt-хэш.
type userRecord struct {
	ID           string      `json:"id"`
	Nome         string      `json:"nome"`
	Email        string      `json:"email"`
	Cargo        string      `json:"cargo"`
	Area         string      `json:"area"`
	Papel        model.Papel `json:"papel"`
	PasswordHash string      `json:"password_hash"`
	CreatedAt    time.Time   `json:"created_at"`
}

func (r userRecord) usuario() model.Usuario {
	return model.Usuario{
		ID:    r.ID,
		Nome:  r.Nome,
		Email: r.Email,
		Cargo: r.Cargo,
		Area:  r.Area,
		Papel: r.Papel,
	}
}

// sessionRecord — серверная запись сессии. Её удаление отзывает токен.
type sessionRecord struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LocalProvider — пользователи и сессии в kvstore.
// Сессия — HS256 JWT (sub=email, jti) плюс запись session:<jti>.
type LocalProvider struct {
	store  kvstore.Store
	secret []byte
	ttl    time.Duration
	logger *slog.Logger

	// now — источник времени (подменяется в тестах)
	now func() time.Time
}

// NewLocalProvider создаёт локальный провайдер.
// secret — ключ HS256, ttl — время жизни сессии.
func NewLocalProvider(store kvstore.Store, secret string, ttl time.Duration, logger *slog.Logger) *LocalProvider {
	return &LocalProvider{
		store:  store,
		secret: []byte(secret),
		ttl:    ttl,
		logger: logger.With(slog.String("component", "local_auth")),
		now:    time.Now,
	}
}

func userKey(email string) string {
	return userKeyPrefix + NormalizeEmail(email)
}

func sessionKey(jti string) string {
	return sessionKeyPrefix + jti
}

func (p *LocalProvider) loadUser(ctx context.Context, email string) (userRecord, error) {
	rec, err := kvstore.GetJSON[userRecord](ctx, p.store, userKey(email))
	if errors.Is(err, kvstore.ErrNotFound) {
		return rec, ErrUserNotFound
	}
	if err != nil {
		return rec, fmt.Errorf("чтение пользователя: %w", err)
	}
	return rec, nil
}

// Login проверяет пароль и выпускает сессионный токен.
func (p *LocalProvider) Login(ctx context.Context, email, password string) (*Session, error) {
	rec, err := p.loadUser(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		p.logger.Info("Неудачная попытка входа", slog.String("email", rec.Email))
		return nil, ErrInvalidCredentials
	}

	now := p.now()
	expiresAt := now.Add(p.ttl)
	jti := uuid.NewString()

	claims := jwt.RegisteredClaims{
		Issuer:    localIssuer,
		Subject:   rec.Email,
		ID:        jti,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return nil, fmt.Errorf("подпись токена: %w", err)
	}

	if err := kvstore.PutJSON(ctx, p.store, sessionKey(jti), sessionRecord{Email: rec.Email, ExpiresAt: expiresAt}); err != nil {
		return nil, fmt.Errorf("сохранение сессии: %w", err)
	}

	p.logger.Info("Пользователь вошёл",
		slog.String("email", rec.Email),
		slog.String("role", string(rec.Papel)),
	)

	return &Session{Token: token, User: rec.usuario(), ExpiresAt: expiresAt}, nil
}

// parseToken проверяет подпись и срок токена, возвращает claims.
func (p *LocalProvider) parseToken(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return p.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(localIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, ErrSessionNotFound
	}
	return claims, nil
}

// GetSession проверяет токен, наличие серверной записи и текущую роль пользователя.
func (p *LocalProvider) GetSession(ctx context.Context, token string) (*Session, error) {
	claims, err := p.parseToken(token)
	if err != nil {
		return nil, err
	}

	if _, err := p.store.Get(ctx, sessionKey(claims.ID)); err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("чтение сессии: %w", err)
	}

	rec, err := p.loadUser(ctx, claims.Subject)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	return &Session{Token: token, User: rec.usuario(), ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Logout удаляет серверную запись сессии.
func (p *LocalProvider) Logout(ctx context.Context, token string) error {
	claims, err := p.parseToken(token)
	if err != nil {
		// Недействительный токен уже не открывает сессию
		return nil
	}
	if err := p.store.Delete(ctx, sessionKey(claims.ID)); err != nil {
		return fmt.Errorf("удаление сессии: %w", err)
	}
	p.logger.Info("Пользователь вышел", slog.String("email", claims.Subject))
	return nil
}

// ListUsers возвращает всех пользователей, отсортированных по e-mail.
func (p *LocalProvider) ListUsers(ctx context.Context) ([]model.Usuario, error) {
	entries, err := p.store.List(ctx, userKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("список пользователей: %w", err)
	}

	users := make([]model.Usuario, 0, len(entries))
	for _, e := range entries {
		var rec userRecord
		if err := json.Unmarshal(e.Value, &rec); err != nil {
			p.logger.Warn("Пропуск повреждённой записи пользователя",
				slog.String("key", e.Key),
				slog.String("error", err.Error()),
			)
			continue
		}
		users = append(users, rec.usuario())
	}
	return users, nil
}

// CreateUser создаёт пользователя. E-mail уникален без учёта регистра:
// запись создаётся только если ключа user:<email> ещё нет.
func (p *LocalProvider) CreateUser(ctx context.Context, u NewUser) (model.Usuario, error) {
	u, err := validateNewUser(u)
	if err != nil {
		return model.Usuario{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return model.Usuario{}, fmt.Errorf("хэширование пароля: %w", err)
	}

	rec := userRecord{
		ID:           uuid.NewString(),
		Nome:         u.Nome,
		Email:        u.Email,
		Cargo:        strings.TrimSpace(u.Cargo),
		Area:         strings.TrimSpace(u.Area),
		Papel:        u.Papel,
		PasswordHash: string(hash),
		CreatedAt:    p.now().UTC(),
	}
	err = kvstore.CreateJSON(ctx, p.store, userKey(rec.Email), rec)
	if errors.Is(err, kvstore.ErrExists) {
		return model.Usuario{}, ErrUserExists
	}
	if err != nil {
		return model.Usuario{}, fmt.Errorf("сохранение пользователя: %w", err)
	}

	p.logger.Info("Пользователь создан",
		slog.String("email", rec.Email),
		slog.String("role", string(rec.Papel)),
	)
	return rec.usuario(), nil
}

// SetUserRole меняет роль пользователя. Действует на открытые сессии сразу.
func (p *LocalProvider) SetUserRole(ctx context.Context, email string, role model.Papel) (model.Usuario, error) {
	if err := validateRole(role); err != nil {
		return model.Usuario{}, err
	}
	rec, err := p.loadUser(ctx, email)
	if err != nil {
		return model.Usuario{}, err
	}

	rec.Papel = role
	if err := kvstore.PutJSON(ctx, p.store, userKey(rec.Email), rec); err != nil {
		return model.Usuario{}, fmt.Errorf("сохранение пользователя: %w", err)
	}

	p.logger.Info("Роль пользователя изменена",
		slog.String("email", rec.Email),
		slog.String("role", string(role)),
	)
	return rec.usuario(), nil
}

// EnsureAdmin создаёт general-admin, если пользователя с таким e-mail нет.
func (p *LocalProvider) EnsureAdmin(ctx context.Context, email, password string) error {
	_, err := p.loadUser(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	_, err = p.CreateUser(ctx, NewUser{
		Nome:     "Administrador",
		Email:    email,
		Password: password,
		Papel:    model.PapelAdminGeral,
	})
	if err != nil {
		return fmt.Errorf("создание администратора: %w", err)
	}
	return nil
}

// PurgeExpiredSessions удаляет записи истёкших сессий.
// Возвращает количество удалённых записей.
func (p *LocalProvider) PurgeExpiredSessions(ctx context.Context) (int, error) {
	return purgeExpired(ctx, p.store, sessionKeyPrefix, p.now(), p.logger)
}

// purgeExpired удаляет записи с префиксом prefix, у которых expires_at не позже now.
// Повреждённые записи тоже удаляются.
func purgeExpired(ctx context.Context, store kvstore.Store, prefix string, now time.Time, logger *slog.Logger) (int, error) {
	entries, err := store.List(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("список записей %s: %w", prefix, err)
	}

	purged := 0
	for _, e := range entries {
		var rec struct {
			ExpiresAt time.Time `json:"expires_at"`
		}
		if err := json.Unmarshal(e.Value, &rec); err != nil {
			logger.Warn("Повреждённая запись удаляется",
				slog.String("key", e.Key),
				slog.String("error", err.Error()),
			)
		} else if rec.ExpiresAt.After(now) {
			continue
		}
		if err := store.Delete(ctx, e.Key); err != nil {
			return purged, fmt.Errorf("удаление записи %s: %w", e.Key, err)
		}
		purged++
	}
	return purged, nil
}
