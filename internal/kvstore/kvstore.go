// Пакет kvstore — долговременное хранилище ключ-значение шлюза.
// Хранит то, что должно пережить перезапуск: учётные записи локального
// провайдера, серверные записи сессий, составы команд проектов.
// Два драйвера: SQLite (modernc.org/sqlite, без cgo) и PostgreSQL (pgxpool).
// Схема создаётся миграциями golang-migrate из embedded FS.
package kvstore

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/marodrigu3s/acomp-obras-metro/internal/config"
)

//go:embed migrations
var migrationsFS embed.FS

// ErrNotFound — ключ отсутствует в хранилище.
var ErrNotFound = errors.New("ключ не найден")

// ErrExists — Create для ключа, который уже есть в хранилище.
var ErrExists = errors.New("ключ уже существует")

// Entry — запись хранилища.
type Entry struct {
	Key       string
	Value     []byte
	UpdatedAt time.Time
}

// Store — хранилище ключ-значение.
// Delete отсутствующего ключа не считается ошибкой.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// Create записывает значение, только если ключа ещё нет; иначе ErrExists.
	// Проверка и запись выполняются одной командой хранилища.
	Create(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// List возвращает записи с ключами, начинающимися с prefix, по возрастанию ключа.
	List(ctx context.Context, prefix string) ([]Entry, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open открывает хранилище согласно конфигурации и применяет миграции.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverSQLite:
		if err := MigrateSQLite(cfg.SQLitePath, logger); err != nil {
			return nil, err
		}
		return OpenSQLite(ctx, cfg.SQLitePath, logger)
	case config.StoreDriverPostgres:
		if err := MigratePostgres(cfg, logger); err != nil {
			return nil, err
		}
		return ConnectPostgres(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("неизвестный драйвер хранилища %q", cfg.StoreDriver)
	}
}

// GetJSON читает значение по ключу и декодирует его из JSON.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, error) {
	var v T
	data, err := s.Get(ctx, key)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("декодирование %s: %w", key, err)
	}
	return v, nil
}

// PutJSON кодирует значение в JSON и сохраняет по ключу.
func PutJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("кодирование %s: %w", key, err)
	}
	return s.Put(ctx, key, data)
}

// CreateJSON кодирует значение в JSON и создаёт ключ. Существующий ключ — ErrExists.
func CreateJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("кодирование %s: %w", key, err)
	}
	return s.Create(ctx, key, data)
}

// ReadinessChecker — проверка готовности хранилища для health endpoint.
type ReadinessChecker struct {
	store Store
	name  string
}

// NewReadinessChecker создаёт проверку готовности хранилища.
// name — имя драйвера для сообщения (sqlite, postgres).
func NewReadinessChecker(store Store, name string) *ReadinessChecker {
	return &ReadinessChecker{store: store, name: name}
}

// CheckReady проверяет доступность хранилища.
// Возвращает статус ("ok", "fail") и сообщение.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := c.store.Ping(ctx); err != nil {
		return "fail", fmt.Sprintf("%s недоступен: %v", c.name, err)
	}
	return "ok", "подключение активно"
}
