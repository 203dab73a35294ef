// Пакет rbac — роли приложения и проверки прав.
// Роли по возрастанию привилегий: viewer < project-admin < general-admin.
// Viewer видит только проекты, в команду которых он включён.
package rbac

import (
	"strings"

	"github.com/marodrigu3s/acomp-obras-metro/internal/domain/model"
)

// roleWeight — вес роли для сравнения.
// Чем выше вес, тем больше привилегий.
var roleWeight = map[model.Papel]int{
	model.PapelVisualizador: 1,
	model.PapelAdminObra:    2,
	model.PapelAdminGeral:   3,
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role model.Papel) bool {
	_, ok := roleWeight[role]
	return ok
}

// AtLeast проверяет, что роль не ниже требуемой.
// Неизвестная роль не проходит ни одну проверку.
func AtLeast(role, required model.Papel) bool {
	w, ok := roleWeight[role]
	if !ok {
		return false
	}
	return w >= roleWeight[required]
}

// CanManageUsers — создание пользователей и смена ролей.
func CanManageUsers(role model.Papel) bool {
	return AtLeast(role, model.PapelAdminGeral)
}

// CanEditProjects — создание, изменение и удаление проектов, фото, BIM и команд.
func CanEditProjects(role model.Papel) bool {
	return AtLeast(role, model.PapelAdminObra)
}

// CanViewProject проверяет доступ на чтение к проекту.
// Администраторы видят все проекты, viewer — только те, где его e-mail есть в команде.
func CanViewProject(role model.Papel, email string, team []string) bool {
	if CanEditProjects(role) {
		return true
	}
	if role != model.PapelVisualizador {
		return false
	}
	for _, member := range team {
		if strings.EqualFold(member, email) {
			return true
		}
	}
	return false
}
