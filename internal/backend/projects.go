package backend

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/marodrigu3s/acomp-obras-metro/internal/domain/model"
)

// call выполняет JSON-запрос, приводит ответ к форме UI и упаковывает в Result.
// Ошибка приведения считается ошибкой разбора ответа.
func call[W any, T any](ctx context.Context, c *Client, r request, toUI func(W) (T, error)) Result[T] {
	var wire W
	status, err := c.doJSON(ctx, r, &wire)
	if err != nil {
		return failure[T](err)
	}
	data, err := toUI(wire)
	if err != nil {
		c.logger.Warn("Ответ backend не прошёл проверку",
			slog.String("operation", r.op),
			slog.String("error", err.Error()),
		)
		return failure[T](&DecodeError{StatusCode: status, Err: err})
	}
	return success(data, status)
}

// remove выполняет DELETE. 204 и 2xx с любым телом — успех.
func (c *Client) remove(ctx context.Context, op, path, id string) Result[model.Removido] {
	status, err := c.doJSON(ctx, request{op: op, method: http.MethodDelete, path: path}, nil)
	if err != nil {
		return failure[model.Removido](err)
	}
	return success(model.Removido{ID: id}, status)
}

func projectPath(id string) string {
	return "/projects/" + url.PathEscape(id)
}

// CreateProject создаёт проект: поля формы и файл модели в одном multipart-запросе.
// Дата завершения уходит в формате backend (DD-MM-YYYY).
func (c *Client) CreateProject(ctx context.Context, nova model.NovaObra, modelFile FilePart) Result[model.Obra] {
	return call(ctx, c, request{
		op:     "create_project",
		method: http.MethodPost,
		path:   "/projects",
		form: &multipartBody{
			fields:    newProjectFields(nova),
			fileField: "file",
			file:      &modelFile,
		},
	}, projectToUI)
}

// UpdateProject частично изменяет проект. Меняются только переданные поля.
func (c *Client) UpdateProject(ctx context.Context, id string, edicao model.EdicaoObra) Result[model.Obra] {
	body, err := projectUpdateToWire(edicao)
	if err != nil {
		return failure[model.Obra](&InputError{Err: err})
	}
	return call(ctx, c, request{
		op:     "update_project",
		method: http.MethodPut,
		path:   projectPath(id),
		json:   body,
	}, projectToUI)
}

// ListProjects возвращает все проекты.
func (c *Client) ListProjects(ctx context.Context) Result[[]model.Obra] {
	return call(ctx, c, request{
		op:     "list_projects",
		method: http.MethodGet,
		path:   "/projects",
	}, func(w wireProjectList) ([]model.Obra, error) {
		if err := w.validate(); err != nil {
			return nil, err
		}
		return mapAll(*w.Projects, projectToUI)
	})
}

// GetProject возвращает проект с фото, BIM-файлами и отчётами.
func (c *Client) GetProject(ctx context.Context, id string) Result[model.DetalheObra] {
	return call(ctx, c, request{
		op:     "get_project",
		method: http.MethodGet,
		path:   projectPath(id),
	}, projectDetailToUI)
}

// UpdateProgress меняет процент выполнения и, если задан, статус проекта.
func (c *Client) UpdateProgress(ctx context.Context, id string, progresso int, status model.StatusObra) Result[model.Obra] {
	body := wireProgressUpdate{Progress: progresso}
	if status != "" {
		wire, err := StatusToBackend(status)
		if err != nil {
			return failure[model.Obra](&InputError{Err: err})
		}
		body.Status = wire
	}
	return call(ctx, c, request{
		op:     "update_progress",
		method: http.MethodPatch,
		path:   projectPath(id) + "/progress",
		json:   body,
	}, projectToUI)
}

// DeleteProject удаляет проект.
func (c *Client) DeleteProject(ctx context.Context, id string) Result[model.Removido] {
	return c.remove(ctx, "delete_project", projectPath(id), id)
}
