package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"slices"
	"strings"

	"github.com/marodrigu3s/acomp-obras-metro/internal/domain/model"
	"github.com/marodrigu3s/acomp-obras-metro/internal/kvstore"
)

const teamKeyPrefix = "team:"

// ErrInvalidTeam — некорректный состав команды.
var ErrInvalidTeam = errors.New("equipe inválida")

// TeamStore — составы команд проектов в kvstore (team:<projectID>).
// Команда — e-mail зрителей, которым виден проект.
type TeamStore struct {
	store  kvstore.Store
	logger *slog.Logger
}

// NewTeamStore создаёт хранилище команд.
func NewTeamStore(store kvstore.Store, logger *slog.Logger) *TeamStore {
	return &TeamStore{
		store:  store,
		logger: logger.With(slog.String("component", "team_store")),
	}
}

func teamKey(projectID string) string {
	return teamKeyPrefix + projectID
}

// Get возвращает команду проекта. Отсутствующая команда — пустой список.
func (t *TeamStore) Get(ctx context.Context, projectID string) (model.Equipe, error) {
	team, err := kvstore.GetJSON[model.Equipe](ctx, t.store, teamKey(projectID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return model.Equipe{ObraID: projectID, Emails: []string{}}, nil
	}
	if err != nil {
		return model.Equipe{}, fmt.Errorf("чтение команды %s: %w", projectID, err)
	}
	if team.Emails == nil {
		team.Emails = []string{}
	}
	team.ObraID = projectID
	return team, nil
}

// Set заменяет состав команды. E-mail нормализуются, дубликаты удаляются.
func (t *TeamStore) Set(ctx context.Context, projectID string, emails []string) (model.Equipe, error) {
	if strings.TrimSpace(projectID) == "" {
		return model.Equipe{}, fmt.Errorf("%w: id da obra obrigatório", ErrInvalidTeam)
	}

	normalized := make([]string, 0, len(emails))
	for _, e := range emails {
		e = NormalizeEmail(e)
		if e == "" {
			continue
		}
		if _, err := mail.ParseAddress(e); err != nil {
			return model.Equipe{}, fmt.Errorf("%w: e-mail inválido %q", ErrInvalidTeam, e)
		}
		normalized = append(normalized, e)
	}
	slices.Sort(normalized)
	normalized = slices.Compact(normalized)

	team := model.Equipe{ObraID: projectID, Emails: normalized}
	if err := kvstore.PutJSON(ctx, t.store, teamKey(projectID), team); err != nil {
		return model.Equipe{}, fmt.Errorf("сохранение команды %s: %w", projectID, err)
	}

	t.logger.Info("Команда проекта обновлена",
		slog.String("project_id", projectID),
		slog.Int("members", len(normalized)),
	)
	return team, nil
}

// Delete удаляет команду проекта.
func (t *TeamStore) Delete(ctx context.Context, projectID string) error {
	if err := t.store.Delete(ctx, teamKey(projectID)); err != nil {
		return fmt.Errorf("удаление команды %s: %w", projectID, err)
	}
	return nil
}

// IsMember проверяет, входит ли e-mail в команду проекта.
func (t *TeamStore) IsMember(ctx context.Context, projectID, email string) (bool, error) {
	team, err := t.Get(ctx, projectID)
	if err != nil {
		return false, err
	}
	return slices.Contains(team.Emails, NormalizeEmail(email)), nil
}

// ProjectsOf возвращает множество ID проектов, в командах которых есть e-mail.
func (t *TeamStore) ProjectsOf(ctx context.Context, email string) (map[string]bool, error) {
	entries, err := t.store.List(ctx, teamKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("список команд: %w", err)
	}

	email = NormalizeEmail(email)
	projects := make(map[string]bool)
	for _, e := range entries {
		var team model.Equipe
		if err := json.Unmarshal(e.Value, &team); err != nil {
			t.logger.Warn("Пропуск повреждённой записи команды",
				slog.String("key", e.Key),
				slog.String("error", err.Error()),
			)
			continue
		}
		if slices.Contains(team.Emails, email) {
			projects[strings.TrimPrefix(e.Key, teamKeyPrefix)] = true
		}
	}
	return projects, nil
}
