package auth

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marodrigu3s/acomp-obras-metro/internal/domain/model"
)

// Prometheus-метрики кэша сессий.
var (
	sessionCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "og_session_cache_hits_total",
		Help: "Общее количество попаданий в кэш разрешённых сессий.",
	})
	sessionCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "og_session_cache_misses_total",
		Help: "Общее количество промахов кэша разрешённых сессий.",
	})
)

// CachedProvider — Provider с LRU-кэшем GetSession поверх expirable.LRU.
// Кэш per-instance: logout и смена роли через другой экземпляр шлюза
// видны здесь не позже чем через ttl.
type CachedProvider struct {
	Provider
	cache *expirable.LRU[string, *Session]
	now   func() time.Time
}

// NewCachedProvider оборачивает провайдер кэшем.
// maxSize — максимальное количество сессий, ttl — время жизни записи.
func NewCachedProvider(p Provider, maxSize int, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		Provider: p,
		cache:    expirable.NewLRU[string, *Session](maxSize, nil, ttl),
		now:      time.Now,
	}
}

// GetSession возвращает сессию из кэша или разрешает её через провайдер.
func (c *CachedProvider) GetSession(ctx context.Context, token string) (*Session, error) {
	if s, ok := c.cache.Get(token); ok {
		if s.ExpiresAt.After(c.now()) {
			sessionCacheHitsTotal.Inc()
			return s, nil
		}
		c.cache.Remove(token)
	}
	sessionCacheMissesTotal.Inc()

	s, err := c.Provider.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	c.cache.Add(token, s)
	return s, nil
}

// Logout закрывает сессию и удаляет её из кэша.
func (c *CachedProvider) Logout(ctx context.Context, token string) error {
	c.cache.Remove(token)
	return c.Provider.Logout(ctx, token)
}

// SetUserRole меняет роль и сбрасывает кэшированные сессии пользователя.
func (c *CachedProvider) SetUserRole(ctx context.Context, email string, role model.Papel) (model.Usuario, error) {
	u, err := c.Provider.SetUserRole(ctx, email, role)
	if err != nil {
		return u, err
	}
	c.invalidateUser(u.Email)
	return u, nil
}

// invalidateUser удаляет все сессии пользователя из кэша.
func (c *CachedProvider) invalidateUser(email string) {
	email = NormalizeEmail(email)
	for _, token := range c.cache.Keys() {
		if s, ok := c.cache.Peek(token); ok && NormalizeEmail(s.User.Email) == email {
			c.cache.Remove(token)
		}
	}
}

// Len — количество сессий в кэше.
func (c *CachedProvider) Len() int {
	return c.cache.Len()
}
