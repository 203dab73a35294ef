// Пакет backend — слой запросов и нормализации к REST API мониторинга обр.
// Каждая операция строит URL от базового адреса, добавляет Authorization из
// текущей сессии, выполняет запрос, разбирает JSON, приводит поля и значения
// к форме UI и возвращает единый конверт Result{data, error}.
// Исключения наружу не выходят: любой сбой транспорта, статуса или разбора
// превращается в Result с непустым Error.
package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"
	"time"
)

// TokenSource — функция, возвращающая токен текущей сессии.
// Вызывается при каждом запросе, поэтому смена сессии сразу видна клиенту.
// Пустая строка — сессии нет.
type TokenSource func(ctx context.Context) string

// Client — HTTP-клиент к backend API.
type Client struct {
	baseURL     string // Базовый URL без trailing slash
	httpClient  *http.Client
	tokenSource TokenSource
	logger      *slog.Logger
}

// New создаёт клиент backend.
// baseURL — базовый URL REST API (например, https://api.obras.example).
// caCertPath — путь к CA-сертификату для TLS (пустая строка — стандартный пул).
// timeout — таймаут HTTP-запросов.
// tokenSource — источник токена сессии (nil — запросы без токена).
func New(baseURL, caCertPath string, timeout time.Duration, tokenSource TokenSource, logger *slog.Logger) (*Client, error) {
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
	}

	if caCertPath != "" {
		tlsConfig, err := buildTLSConfig(caCertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата backend: %w", err)
		}
		transport.TLSClientConfig = tlsConfig
		logger.Info("CA-сертификат backend добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	return NewWithHTTPClient(baseURL, &http.Client{Timeout: timeout, Transport: transport}, tokenSource, logger), nil
}

// NewWithHTTPClient создаёт клиент с готовым *http.Client.
func NewWithHTTPClient(baseURL string, httpClient *http.Client, tokenSource TokenSource, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if tokenSource == nil {
		tokenSource = func(context.Context) string { return "" }
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  httpClient,
		tokenSource: tokenSource,
		logger:      logger.With(slog.String("component", "backend_client")),
	}
}

// buildTLSConfig создаёт TLS-конфигурацию с кастомным CA.
func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата %s: %w", caCertPath, err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("CA-сертификат %s не содержит PEM-блоков", caCertPath)
	}

	return &tls.Config{
		RootCAs:    caCertPool,
		MinVersion: tls.VersionTLS12,
	}, nil
}

// --- Запросы ---

// FilePart — файл для multipart-загрузки.
type FilePart struct {
	FileName    string
	ContentType string // Пусто — application/octet-stream
	Content     io.Reader
}

// formField — текстовое поле multipart-формы.
type formField struct {
	name  string
	value string
}

// multipartBody — тело multipart/form-data.
type multipartBody struct {
	fields    []formField
	fileField string
	file      *FilePart
}

// validate отклоняет форму без файла до отправки запроса.
func (f *multipartBody) validate() error {
	if f.file == nil || f.file.Content == nil {
		return fmt.Errorf("arquivo %q ausente", f.fileField)
	}
	return nil
}

// request — описание одного запроса к backend.
type request struct {
	op     string // Имя операции (метки метрик, логи)
	method string
	path   string // Путь относительно baseURL, начинается с "/"
	json   any    // JSON-тело (nil — без тела)
	form   *multipartBody
}

// authorization возвращает значение заголовка Authorization.
// Без сессии заголовок присутствует с пустым значением.
func (c *Client) authorization(ctx context.Context) string {
	if token := c.tokenSource(ctx); token != "" {
		return "Bearer " + token
	}
	return ""
}

// send строит и выполняет HTTP-запрос.
// Форма без файла даёт *InputError без обращения к сети,
// ошибка транспорта оборачивается в *TransportError.
// Вызывающий код ОБЯЗАН закрыть resp.Body.
func (c *Client) send(ctx context.Context, r request) (*http.Response, error) {
	var (
		body        io.Reader = http.NoBody
		contentType string
		pipe        *io.PipeReader
	)

	switch {
	case r.form != nil:
		if err := r.form.validate(); err != nil {
			return nil, &InputError{Err: err}
		}
		pr, pw := io.Pipe()
		mw := multipart.NewWriter(pw)
		go func() {
			pw.CloseWithError(writeMultipart(mw, r.form))
		}()
		body, pipe = pr, pr
		contentType = mw.FormDataContentType()
	case r.json != nil:
		data, err := json.Marshal(r.json)
		if err != nil {
			return nil, &TransportError{Err: fmt.Errorf("сериализация тела запроса: %w", err)}
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		if pipe != nil {
			pipe.Close()
		}
		return nil, &TransportError{Err: fmt.Errorf("создание запроса: %w", err)}
	}

	req.Header.Set("Authorization", c.authorization(ctx))
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	return resp, nil
}

// writeMultipart пишет поля и файл в multipart writer и закрывает его.
func writeMultipart(mw *multipart.Writer, form *multipartBody) error {
	for _, f := range form.fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return fmt.Errorf("запись поля %s: %w", f.name, err)
		}
	}

	if form.file != nil {
		contentType := form.file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(form.fileField), escapeQuotes(form.file.FileName)))
		h.Set("Content-Type", contentType)

		part, err := mw.CreatePart(h)
		if err != nil {
			return fmt.Errorf("создание части %s: %w", form.fileField, err)
		}
		if _, err := io.Copy(part, form.file.Content); err != nil {
			return fmt.Errorf("копирование файла %s: %w", form.file.FileName, err)
		}
	}

	return mw.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// doJSON выполняет запрос и декодирует успешный JSON-ответ в target.
// Возвращает HTTP-статус ответа (0 при ошибке транспорта).
func (c *Client) doJSON(ctx context.Context, r request, target any) (int, error) {
	start := time.Now()
	status, err := c.doJSONInner(ctx, r, target)
	c.observe(r, status, err, start)
	return status, err
}

func (c *Client) doJSONInner(ctx context.Context, r request, target any) (int, error) {
	resp, err := c.send(ctx, r)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, &TransportError{Err: fmt.Errorf("чтение ответа: %w", err)}
	}

	if err := checkStatus(resp, data); err != nil {
		return resp.StatusCode, err
	}

	// 204 на удаление — успех без тела
	if target == nil {
		return resp.StatusCode, nil
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return resp.StatusCode, &DecodeError{StatusCode: resp.StatusCode, Err: errors.New("corpo da resposta vazio")}
	}
	if err := json.Unmarshal(data, target); err != nil {
		return resp.StatusCode, &DecodeError{StatusCode: resp.StatusCode, Err: err}
	}
	return resp.StatusCode, nil
}

// doBinary выполняет запрос и возвращает тело успешного ответа как есть.
func (c *Client) doBinary(ctx context.Context, r request) ([]byte, string, int, error) {
	start := time.Now()
	data, contentType, status, err := c.doBinaryInner(ctx, r)
	c.observe(r, status, err, start)
	return data, contentType, status, err
}

func (c *Client) doBinaryInner(ctx context.Context, r request) ([]byte, string, int, error) {
	resp, err := c.send(ctx, r)
	if err != nil {
		return nil, "", 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", resp.StatusCode, &TransportError{Err: fmt.Errorf("чтение ответа: %w", err)}
	}
	if err := checkStatus(resp, data); err != nil {
		return nil, "", resp.StatusCode, err
	}
	if len(data) == 0 {
		return nil, "", resp.StatusCode, &DecodeError{StatusCode: resp.StatusCode, Err: errors.New("corpo da resposta vazio")}
	}
	return data, resp.Header.Get("Content-Type"), resp.StatusCode, nil
}

// observe пишет метрики и отладочный лог по завершённому запросу.
func (c *Client) observe(r request, status int, err error, start time.Time) {
	elapsed := time.Since(start)
	outcome := outcomeOf(err)

	requestsTotal.WithLabelValues(r.op, outcome).Inc()
	requestDuration.WithLabelValues(r.op).Observe(elapsed.Seconds())

	attrs := []any{
		slog.String("operation", r.op),
		slog.String("method", r.method),
		slog.String("path", r.path),
		slog.Int("status", status),
		slog.Duration("duration", elapsed),
	}
	if err != nil {
		c.logger.Warn("Запрос к backend завершился ошибкой",
			append(attrs, slog.String("outcome", outcome), slog.String("error", err.Error()))...,
		)
		return
	}
	c.logger.Debug("Запрос к backend выполнен", attrs...)
}

// outcomeOf возвращает метку результата для метрик.
func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	var (
		statusErr *StatusError
		decodeErr *DecodeError
		inputErr  *InputError
	)
	switch {
	case errors.As(err, &inputErr):
		return string(KindInput)
	case errors.As(err, &statusErr):
		return string(KindStatus)
	case errors.As(err, &decodeErr):
		return string(KindDecode)
	default:
		return string(KindTransport)
	}
}

// checkStatus возвращает *StatusError для ответа вне 2xx.
func checkStatus(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &StatusError{
		StatusCode: resp.StatusCode,
		Message:    errorMessage(resp.StatusCode, body),
	}
}

// errorMessage извлекает сообщение из тела ошибки.
// Порядок: message, detail, error (строка или объект с message),
// иначе "HTTP <код>: <текст статуса>".
func errorMessage(status int, body []byte) string {
	var payload struct {
		Message json.RawMessage `json:"message"`
		Detail  json.RawMessage `json:"detail"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := rawText(payload.Message); msg != "" {
			return msg
		}
		if msg := rawText(payload.Detail); msg != "" {
			return msg
		}
		if msg := rawText(payload.Error); msg != "" {
			return msg
		}
	}

	text := http.StatusText(status)
	if text == "" {
		text = "Unknown Status"
	}
	return fmt.Sprintf("HTTP %d: %s", status, text)
}

// rawText достаёт текст из поля ошибки: строка, объект {message|msg}
// или список таких объектов (ошибки валидации FastAPI — первый элемент).
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	type item struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}
	pick := func(it item) string {
		if it.Message != "" {
			return it.Message
		}
		return it.Msg
	}

	var obj item
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(pick(obj))
	}

	var list []item
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return strings.TrimSpace(pick(list[0]))
	}
	return ""
}
