package model

// Papel — роль пользователя в приложении.
type Papel string

const (
	PapelAdminGeral   Papel = "general-admin"
	PapelAdminObra    Papel = "project-admin"
	PapelVisualizador Papel = "viewer"
)

// Usuario — профиль пользователя (без пароля).
type Usuario struct {
	ID    string `json:"id"`
	Nome  string `json:"nome"`
	Email string `json:"email"`
	Cargo string `json:"cargo"`
	Area  string `json:"area"`
	Papel Papel  `json:"papel"`
}

// Equipe — список e-mail зрителей, допущенных к проекту.
type Equipe struct {
	ObraID string   `json:"id_obra"`
	Emails []string `json:"emails"`
}
