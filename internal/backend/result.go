package backend

import (
	"errors"
	"net/http"
)

// ErrorKind — класс ошибки операции.
type ErrorKind string

const (
	// KindTransport — запрос не завершился (сеть, TLS, таймаут).
	KindTransport ErrorKind = "transport"
	// KindStatus — backend ответил статусом вне 2xx.
	KindStatus ErrorKind = "status"
	// KindDecode — успешный ответ, но тело пустое, не JSON или не прошло проверку.
	KindDecode ErrorKind = "decode"
	// KindInput — запрос не отправлен: входные данные нельзя перевести в формат backend.
	KindInput ErrorKind = "input"
)

// Result — единый конверт результата операции: {data, error}.
// Ровно одно из полей Data / Error не nil.
type Result[T any] struct {
	Data  *T      `json:"data"`
	Error *string `json:"error"`

	// Kind — класс ошибки (пусто при успехе).
	Kind ErrorKind `json:"-"`
	// Status — HTTP-статус ответа backend (0, если ответа не было).
	Status int `json:"-"`
}

// OK сообщает, что операция успешна.
func (r Result[T]) OK() bool {
	return r.Error == nil
}

// Err возвращает текст ошибки или пустую строку.
func (r Result[T]) Err() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

// success формирует успешный конверт.
func success[T any](data T, status int) Result[T] {
	return Result[T]{Data: &data, Status: status}
}

// failure формирует конверт ошибки и классифицирует err.
// Сообщение никогда не бывает пустым.
func failure[T any](err error) Result[T] {
	msg := err.Error()
	if msg == "" {
		msg = "erro desconhecido"
	}
	res := Result[T]{Error: &msg}

	var (
		transportErr *TransportError
		statusErr    *StatusError
		decodeErr    *DecodeError
		inputErr     *InputError
	)
	switch {
	case errors.As(err, &inputErr):
		res.Kind = KindInput
	case errors.As(err, &statusErr):
		res.Kind = KindStatus
		res.Status = statusErr.StatusCode
	case errors.As(err, &decodeErr):
		res.Kind = KindDecode
		res.Status = decodeErr.StatusCode
	case errors.As(err, &transportErr):
		res.Kind = KindTransport
	default:
		res.Kind = KindTransport
	}
	return res
}

// TransportError — запрос не дошёл до ответа.
// Сообщение — текст исходной ошибки транспорта.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// StatusError — ответ backend со статусом вне 2xx.
// Message — поле message/detail/error тела ответа либо "HTTP <код>: <текст статуса>".
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string { return e.Message }

// DecodeError — тело успешного ответа не удалось разобрать или оно не прошло проверку.
type DecodeError struct {
	StatusCode int
	Err        error
}

func (e *DecodeError) Error() string { return "resposta inválida do backend: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// InputError — входные данные операции некорректны, запрос к backend не выполнялся.
type InputError struct {
	Err error
}

func (e *InputError) Error() string { return e.Err.Error() }
func (e *InputError) Unwrap() error { return e.Err }

// HTTPStatus подбирает HTTP-статус, которым шлюз отвечает на неуспешный конверт.
// Статус backend (4xx/5xx) пробрасывается, некорректный ввод — 400,
// сбой транспорта и разбора — 502.
func HTTPStatus[T any](r Result[T]) int {
	if r.OK() {
		return http.StatusOK
	}
	if r.Kind == KindStatus && r.Status >= 400 && r.Status <= 599 {
		return r.Status
	}
	if r.Kind == KindInput {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}
