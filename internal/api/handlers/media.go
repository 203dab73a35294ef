// media.go — обработчики фото и BIM-файлов проекта.
package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/marodrigu3s/acomp-obras-metro/internal/api/errors"
	"github.com/marodrigu3s/acomp-obras-metro/internal/domain/model"
)

// Поля multipart-форм загрузки.
const (
	PhotoFileField = "foto"
	BIMFileField   = "arquivo"
)

// ListFotos — GET /api/v1/obras/{id}/fotos.
func (h *Handler) ListFotos(w http.ResponseWriter, r *http.Request) {
	id := projectID(r)
	if !h.requireMember(w, r, id) {
		return
	}
	writeResult(w, http.StatusOK, h.backend.ListPhotos(r.Context(), id))
}

// UploadFoto — POST /api/v1/obras/{id}/fotos (multipart).
// Без имени используется имя файла; data_foto необязательна.
func (h *Handler) UploadFoto(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r) {
		return
	}

	file, closeFile, ok := formFile(r, PhotoFileField)
	if !ok {
		apierrors.ValidationError(w, "arquivo da foto é obrigatório")
		return
	}
	defer closeFile()

	nova := model.NovaFoto{
		Nome:      formValue(r, "nome"),
		DataFoto:  formValue(r, "data_foto"),
		Descricao: formValue(r, "descricao"),
	}
	if nova.Nome == "" {
		nova.Nome = file.FileName
	}
	if nova.DataFoto != "" && !validUIDate(nova.DataFoto) {
		apierrors.ValidationError(w, "data_foto deve estar no formato AAAA-MM-DD")
		return
	}

	writeResult(w, http.StatusCreated, h.backend.UploadPhoto(r.Context(), projectID(r), nova, file))
}

// DeleteFoto — DELETE /api/v1/fotos/{id}.
func (h *Handler) DeleteFoto(w http.ResponseWriter, r *http.Request) {
	writeResult(w, http.StatusOK, h.backend.DeletePhoto(r.Context(), chi.URLParam(r, "id")))
}

// GetBIM — GET /api/v1/obras/{id}/bim. Текущий BIM-файл проекта.
func (h *Handler) GetBIM(w http.ResponseWriter, r *http.Request) {
	id := projectID(r)
	if !h.requireMember(w, r, id) {
		return
	}
	writeResult(w, http.StatusOK, h.backend.GetBIM(r.Context(), id))
}

// bimExtensions — допустимые расширения BIM-файлов.
var bimExtensions = []string{".ifc", ".rvt", ".nwd", ".dwg"}

// UploadBIM — POST /api/v1/obras/{id}/bim (multipart). Заменяет текущий BIM-файл.
func (h *Handler) UploadBIM(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r) {
		return
	}

	file, closeFile, ok := formFile(r, BIMFileField)
	if !ok {
		apierrors.ValidationError(w, "arquivo BIM é obrigatório")
		return
	}
	defer closeFile()

	if !hasExtension(file.FileName, bimExtensions) {
		apierrors.ValidationError(w, "formato de arquivo BIM não suportado (use "+strings.Join(bimExtensions, ", ")+")")
		return
	}

	writeResult(w, http.StatusCreated, h.backend.UploadBIM(r.Context(), projectID(r), file))
}

// DownloadBIM — GET /api/v1/obras/{id}/bim/download. Временная ссылка на файл.
func (h *Handler) DownloadBIM(w http.ResponseWriter, r *http.Request) {
	id := projectID(r)
	if !h.requireMember(w, r, id) {
		return
	}
	writeResult(w, http.StatusOK, h.backend.GetBIMDownloadURL(r.Context(), id))
}

// DeleteBIM — DELETE /api/v1/obras/{id}/bim.
func (h *Handler) DeleteBIM(w http.ResponseWriter, r *http.Request) {
	writeResult(w, http.StatusOK, h.backend.DeleteBIM(r.Context(), projectID(r)))
}

// hasExtension проверяет расширение имени файла без учёта регистра.
func hasExtension(name string, exts []string) bool {
	name = strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
