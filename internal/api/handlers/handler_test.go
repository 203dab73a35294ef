package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marodrigu3s/acomp-obras-metro/internal/auth"
	"github.com/marodrigu3s/acomp-obras-metro/internal/backend"
	"github.com/marodrigu3s/acomp-obras-metro/internal/domain/model"
	"github.com/marodrigu3s/acomp-obras-metro/internal/kvstore"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testEnv — обработчики поверх mock backend и SQLite-хранилища.
type testEnv struct {
	handler  *Handler
	provider *auth.LocalProvider
	teams    *auth.TeamStore
	calls    *atomic.Int32
}

var (
	adminSession  = &auth.Session{Token: "admin-token", User: model.Usuario{Email: "rui@obras.example", Papel: model.PapelAdminObra}}
	viewerSession = &auth.Session{Token: "viewer-token", User: model.Usuario{Email: "ana@obras.example", Papel: model.PapelVisualizador}}
)

// newTestEnv создаёт окружение; backendHandler обслуживает запросы к mock backend.
func newTestEnv(t *testing.T, backendHandler http.HandlerFunc) *testEnv {
	t.Helper()

	calls := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if backendHandler == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		backendHandler(w, r)
	}))
	t.Cleanup(server.Close)

	path := filepath.Join(t.TempDir(), "handlers.db")
	if err := kvstore.MigrateSQLite(path, testLogger()); err != nil {
		t.Fatalf("MigrateSQLite: %v", err)
	}
	store, err := kvstore.OpenSQLite(context.Background(), path, testLogger())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	provider := auth.NewLocalProvider(store, "test-secret", time.Hour, testLogger())
	teams := auth.NewTeamStore(store, testLogger())
	client := backend.NewWithHTTPClient(server.URL, server.Client(), auth.TokenFromContext, testLogger())

	return &testEnv{
		handler:  New(client, provider, teams, 1<<20, testLogger()),
		provider: provider,
		teams:    teams,
		calls:    calls,
	}
}

// newRequest создаёт запрос с параметрами маршрута chi и сессией в контексте.
func newRequest(method, target string, body io.Reader, session *auth.Session, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, body)
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if session != nil {
		ctx = auth.WithSession(ctx, session)
	}
	return req.WithContext(ctx)
}

// jsonBody кодирует значение в JSON-тело запроса.
func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return bytes.NewReader(data)
}

// multipartBody собирает multipart-форму; fileField пустой — без файла.
func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string, content []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(content)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

// envelope — разобранный конверт ответа.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *string         `json:"error"`
	Code  string          `json:"code"`
}

// decodeEnvelope разбирает конверт и проверяет статус ответа.
func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, wantStatus int) envelope {
	t.Helper()
	if rec.Code != wantStatus {
		t.Fatalf("статус = %d, ожидается %d (%s)", rec.Code, wantStatus, rec.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("тело не конверт: %v (%s)", err, rec.Body.String())
	}
	return env
}

// writeBackendJSON пишет JSON-ответ mock backend.
func writeBackendJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}
