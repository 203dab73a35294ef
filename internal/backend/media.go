package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/marodrigu3s/acomp-obras-metro/internal/domain/model"
)

// --- Фото ---

// UploadPhoto загружает фото проекта с метаданными.
func (c *Client) UploadPhoto(ctx context.Context, projectID string, nova model.NovaFoto, photo FilePart) Result[model.Foto] {
	return call(ctx, c, request{
		op:     "upload_photo",
		method: http.MethodPost,
		path:   "/photos/" + url.PathEscape(projectID),
		form: &multipartBody{
			fields:    newPhotoFields(nova),
			fileField: "photo",
			file:      &photo,
		},
	}, photoToUI)
}

// ListPhotos возвращает фото проекта. Backend отдаёт массив без обёртки.
func (c *Client) ListPhotos(ctx context.Context, projectID string) Result[[]model.Foto] {
	return call(ctx, c, request{
		op:     "list_photos",
		method: http.MethodGet,
		path:   "/photos/" + url.PathEscape(projectID),
	}, func(w []wirePhoto) ([]model.Foto, error) {
		return mapAll(w, photoToUI)
	})
}

// DeletePhoto удаляет фото.
func (c *Client) DeletePhoto(ctx context.Context, photoID string) Result[model.Removido] {
	return c.remove(ctx, "delete_photo", "/photos/"+url.PathEscape(photoID), photoID)
}

// --- BIM ---

func bimPath(projectID string) string {
	return "/bim/" + url.PathEscape(projectID)
}

// UploadBIM загружает (заменяет) BIM-файл проекта.
func (c *Client) UploadBIM(ctx context.Context, projectID string, bim FilePart) Result[model.ArquivoBIM] {
	return call(ctx, c, request{
		op:     "upload_bim",
		method: http.MethodPost,
		path:   bimPath(projectID),
		form: &multipartBody{
			fileField: "file",
			file:      &bim,
		},
	}, bimToUI)
}

// GetBIM возвращает метаданные текущего BIM-файла проекта.
func (c *Client) GetBIM(ctx context.Context, projectID string) Result[model.ArquivoBIM] {
	return call(ctx, c, request{
		op:     "get_bim",
		method: http.MethodGet,
		path:   bimPath(projectID),
	}, bimToUI)
}

// GetBIMDownloadURL возвращает временную ссылку на скачивание BIM-файла.
func (c *Client) GetBIMDownloadURL(ctx context.Context, projectID string) Result[model.LinkDownload] {
	return call(ctx, c, request{
		op:     "get_bim_download",
		method: http.MethodGet,
		path:   "/bim/download/" + url.PathEscape(projectID),
	}, downloadToUI)
}

// DeleteBIM удаляет BIM-файл проекта.
func (c *Client) DeleteBIM(ctx context.Context, projectID string) Result[model.Removido] {
	return c.remove(ctx, "delete_bim", bimPath(projectID), projectID)
}
