// Пакет keycloak — HTTP-клиент к Keycloak.
// models.go — модели данных Keycloak.
package keycloak

// RoleAttribute — атрибут пользователя Keycloak, в котором хранится роль приложения.
const RoleAttribute = "obras_role"

// Атрибуты профиля пользователя.
const (
	JobTitleAttribute = "obras_cargo"
	AreaAttribute     = "obras_area"
)

// TokenResponse — ответ token endpoint (Client Credentials и Password grant).
type TokenResponse struct {
	AccessToken      string `json:"access_token"` //nolint:gosec // G117: структура токена OAuth2
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshToken     string `json:"refresh_token,omitempty"` //nolint:gosec // G117: структура токена OAuth2
	RefreshExpiresIn int    `json:"refresh_expires_in,omitempty"`
}

// KeycloakUser — пользователь в Keycloak.
type KeycloakUser struct { //nolint:revive // stuttering допустим — внешний API Keycloak
	ID            string              `json:"id,omitempty"`
	Username      string              `json:"username"`
	Email         string              `json:"email"`
	FirstName     string              `json:"firstName"`
	LastName      string              `json:"lastName"`
	Enabled       bool                `json:"enabled"`
	CreatedAt     int64               `json:"createdTimestamp,omitempty"`
	EmailVerified bool                `json:"emailVerified"`
	Attributes    map[string][]string `json:"attributes,omitempty"`
}

// Attribute возвращает первое значение атрибута или пустую строку.
func (u *KeycloakUser) Attribute(name string) string {
	if vals := u.Attributes[name]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// SetAttribute заменяет значение атрибута.
func (u *KeycloakUser) SetAttribute(name, value string) {
	if u.Attributes == nil {
		u.Attributes = make(map[string][]string)
	}
	u.Attributes[name] = []string{value}
}

// RealmRepresentation — краткая информация о realm.
type RealmRepresentation struct {
	Realm   string `json:"realm"`
	Enabled bool   `json:"enabled"`
}

// credential — пароль пользователя при создании.
type credential struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

// userCreateRequest — запрос на создание пользователя в Keycloak.
type userCreateRequest struct {
	KeycloakUser
	Credentials []credential `json:"credentials,omitempty"`
}
