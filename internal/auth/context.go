package auth

import "context"

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const contextKeySession contextKey = "auth_session"

// WithSession помещает сессию в контекст запроса.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKeySession, s)
}

// SessionFromContext извлекает сессию из контекста.
// Возвращает nil, если сессии нет.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKeySession).(*Session)
	return s
}

// TokenFromContext возвращает токен текущей сессии или пустую строку.
// Подходит как backend.TokenSource.
func TokenFromContext(ctx context.Context) string {
	if s := SessionFromContext(ctx); s != nil {
		return s.Token
	}
	return ""
}
