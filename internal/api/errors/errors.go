// Пакет errors — ответы шлюза с ошибкой в формате конверта.
// Единый формат: {"data": null, "error": "<сообщение>", "code": "<КОД>"}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/marodrigu3s/acomp-obras-metro/internal/backend"
)

// Машиночитаемые коды ошибок.
const (
	CodeValidationError        = "VALIDATION_ERROR"
	CodeNotFound               = "NOT_FOUND"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodeConflict               = "CONFLICT"
	CodePayloadTooLarge        = "PAYLOAD_TOO_LARGE"
	CodeBackendError           = "BACKEND_ERROR"
	CodeBackendUnavailable     = "BACKEND_UNAVAILABLE"
	CodeBackendInvalidResponse = "BACKEND_INVALID_RESPONSE"
	CodeIDPUnavailable         = "IDP_UNAVAILABLE"
	CodeInternalError          = "INTERNAL_ERROR"
)

// envelope — тело ответа ошибки.
type envelope struct {
	Data  *struct{} `json:"data"`
	Error string    `json:"error"`
	Code  string    `json:"code"`
}

// WriteError записывает конверт ошибки.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — текст для пользователя.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(envelope{Error: message, Code: code})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// Conflict — 409 конфликт (дублирующийся ресурс).
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

// PayloadTooLarge — 413 тело запроса превышает лимит.
func PayloadTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, message)
}

// IDPUnavailable — 502 Identity Provider (Keycloak) недоступен.
func IDPUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeIDPUnavailable, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}

// FromResult записывает неуспешный конверт операции backend.
// Статус берётся из backend.HTTPStatus, сообщение передаётся без изменений.
func FromResult[T any](w http.ResponseWriter, r backend.Result[T]) {
	status := backend.HTTPStatus(r)
	WriteError(w, status, codeFor(r.Kind, status), r.Err())
}

// codeFor подбирает код ошибки по классу и итоговому статусу.
func codeFor(kind backend.ErrorKind, status int) string {
	switch kind {
	case backend.KindTransport:
		return CodeBackendUnavailable
	case backend.KindDecode:
		return CodeBackendInvalidResponse
	case backend.KindInput:
		return CodeValidationError
	}
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return CodeValidationError
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusRequestEntityTooLarge:
		return CodePayloadTooLarge
	}
	return CodeBackendError
}
