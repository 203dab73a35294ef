package backend

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/marodrigu3s/acomp-obras-metro/internal/domain/model"
)

func TestCreateProject_Multipart(t *testing.T) {
	var (
		method      string
		contentType string
		fields      map[string]string
		fileName    string
		fileBody    string
	)
	_, client := setupMockBackend(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		contentType = r.Header.Get("Content-Type")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
		} else {
			fileName = hdr.Filename
			b, _ := io.ReadAll(f)
			fileBody = string(b)
			f.Close()
		}
		writeJSON(w, http.StatusCreated, `{"id":"p9","name":"Estação Sé","responsible":"Ana","location":"São Paulo",
			"start_date":"01-02-2025","expected_end_date":"31-12-2025","status":"planning","progress":0}`)
	})

	res := client.CreateProject(context.Background(), model.NovaObra{
		Nome:                "Estação Sé",
		Responsavel:         "Ana",
		Localizacao:         "São Paulo",
		DataPrevisaoTermino: "2025-12-31",
	}, FilePart{FileName: "modelo.ifc", Content: strings.NewReader("ISO-10303-21;")})

	assertEnvelope(t, res)
	if !res.OK() {
		t.Fatalf("CreateProject() error = %s", res.Err())
	}
	if method != http.MethodPost {
		t.Errorf("method = %s, ожидается POST", method)
	}
	if !strings.HasPrefix(contentType, "multipart/form-data; boundary=") {
		t.Errorf("Content-Type = %q, ожидается multipart с boundary", contentType)
	}
	if fields["expected_end_date"] != "31-12-2025" {
		t.Errorf("expected_end_date = %q, ожидается DD-MM-YYYY", fields["expected_end_date"])
	}
	if _, ok := fields["notes"]; ok {
		t.Error("пустые notes не должны отправляться")
	}
	if fileName != "modelo.ifc" || fileBody != "ISO-10303-21;" {
		t.Errorf("файл = %q (%q)", fileName, fileBody)
	}

	obra := res.Data
	if obra.ID != "p9" || obra.Status != model.StatusPlanejamento {
		t.Errorf("obra = %+v", obra)
	}
	if obra.DataInicio != "2025-02-01" || obra.DataPrevisaoTermino != "2025-12-31" {
		t.Errorf("даты = %q / %q, ожидается YYYY-MM-DD", obra.DataInicio, obra.DataPrevisaoTermino)
	}
}

func TestUpdateProject_DatesAndStatusToBackend(t *testing.T) {
	var body string
	_, client := setupMockBackend(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/projects/p1" {
			t.Errorf("запрос = %s %s", r.Method, r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		writeJSON(w, http.StatusOK, `{"id":"p1","name":"A","status":"paused","expected_end_date":"15-08-2026"}`)
	})

	data := "2026-08-15"
	status := model.StatusPausada
	res := client.UpdateProject(context.Background(), "p1", model.EdicaoObra{
		DataPrevisaoTermino: &data,
		Status:              &status,
	})
	if !res.OK() {
		t.Fatalf("UpdateProject() error = %s", res.Err())
	}
	if body != `{"expected_end_date":"15-08-2026","status":"paused"}` {
		t.Errorf("тело = %s", body)
	}
	if res.Data.Status != model.StatusPausada || res.Data.DataPrevisaoTermino != "2026-08-15" {
		t.Errorf("obra = %+v", res.Data)
	}
}

func TestListProjects_Mapping(t *testing.T) {
	_, client := setupMockBackend(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"projects":[
			{"id":1,"name":"A","status":"in_progress","progress":45.6,"notes":null},
			{"id":"b-2","name":"B","status":"completed","progress":100,"notes":"ok"}
		]}`)
	})

	res := client.ListProjects(context.Background())
	if !res.OK() {
		t.Fatalf("ListProjects() error = %s", res.Err())
	}
	obras := *res.Data
	if len(obras) != 2 {
		t.Fatalf("len = %d, ожидается 2", len(obras))
	}
	if obras[0].ID != "1" || obras[0].Status != model.StatusEmAndamento || obras[0].Progresso != 46 {
		t.Errorf("obras[0] = %+v", obras[0])
	}
	if obras[1].ID != "b-2" || obras[1].Status != model.StatusConcluida || obras[1].Observacoes != "ok" {
		t.Errorf("obras[1] = %+v", obras[1])
	}
}

func TestListProjects_EmptyIsNotNil(t *testing.T) {
	_, client := setupMockBackend(t, "", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"projects":[]}`)
	})

	res := client.ListProjects(context.Background())
	if !res.OK() || res.Data == nil || *res.Data == nil {
		t.Fatalf("ожидался пустой список, получено %+v", res)
	}
}

func TestGetProject_Detail(t *testing.T) {
	_, client := setupMockBackend(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{
			"project":{"id":"p1","name":"A","status":"in_progress","start_date":"10-01-2025"},
			"photos":[{"id":"f1","project_id":"p1","name":"frente","photo_date":"2025-03-04","url":"https://cdn/f1.jpg"}],
			"bim_files":[{"id":"b1","project_id":"p1","file_name":"m.ifc","file_type":"ifc","file_size":2048,"url":"https://cdn/m.ifc"}],
			"reports":[{"id":"r1","project_id":"p1","analysis_id":"an-1","overall_progress":0.45,"sequence":1}]
		}`)
	})

	res := client.GetProject(context.Background(), "p1")
	if !res.OK() {
		t.Fatalf("GetProject() error = %s", res.Err())
	}
	d := res.Data
	if d.Obra.DataInicio != "2025-01-10" {
		t.Errorf("DataInicio = %q", d.Obra.DataInicio)
	}
	if len(d.Fotos) != 1 || d.Fotos[0].DataFoto != "2025-03-04" {
		t.Errorf("Fotos = %+v", d.Fotos)
	}
	if len(d.ArquivosBIM) != 1 || d.ArquivosBIM[0].TamanhoBytes != 2048 {
		t.Errorf("ArquivosBIM = %+v", d.ArquivosBIM)
	}
	if len(d.Relatorios) != 1 || d.Relatorios[0].Progresso != 45 || d.Relatorios[0].CaminhoPDF != "/reports/analysis/an-1" {
		t.Errorf("Relatorios = %+v", d.Relatorios)
	}
}

func TestGetProject_MissingProject(t *testing.T) {
	_, client := setupMockBackend(t, "", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"photos":[]}`)
	})

	res := client.GetProject(context.Background(), "p1")
	assertEnvelope(t, res)
	if res.Kind != KindDecode {
		t.Errorf("Kind = %q, ожидается decode", res.Kind)
	}
}

func TestUpdateProgress(t *testing.T) {
	var body string
	_, client := setupMockBackend(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/projects/p1/progress" {
			t.Errorf("запрос = %s %s", r.Method, r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		writeJSON(w, http.StatusOK, `{"id":"p1","name":"A","status":"in_progress","progress":70}`)
	})

	res := client.UpdateProgress(context.Background(), "p1", 70, model.StatusEmAndamento)
	if !res.OK() {
		t.Fatalf("UpdateProgress() error = %s", res.Err())
	}
	if body != `{"progress":70,"status":"in_progress"}` {
		t.Errorf("тело = %s", body)
	}
	if res.Data.Progresso != 70 {
		t.Errorf("Progresso = %d", res.Data.Progresso)
	}
}

func TestDelete_NoContentAndJSON(t *testing.T) {
	tests := []struct {
		name string
		call func(*Client) Result[model.Removido]
		path string
		resp func(http.ResponseWriter)
	}{
		{
			name: "проект 204",
			call: func(c *Client) Result[model.Removido] { return c.DeleteProject(context.Background(), "p1") },
			path: "/projects/p1",
			resp: func(w http.ResponseWriter) { w.WriteHeader(http.StatusNoContent) },
		},
		{
			name: "фото с JSON",
			call: func(c *Client) Result[model.Removido] { return c.DeletePhoto(context.Background(), "f1") },
			path: "/photos/f1",
			resp: func(w http.ResponseWriter) { writeJSON(w, http.StatusOK, `{"message":"removida"}`) },
		},
		{
			name: "BIM 204",
			call: func(c *Client) Result[model.Removido] { return c.DeleteBIM(context.Background(), "p1") },
			path: "/bim/p1",
			resp: func(w http.ResponseWriter) { w.WriteHeader(http.StatusNoContent) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client := setupMockBackend(t, "tok", func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodDelete || r.URL.Path != tt.path {
					t.Errorf("запрос = %s %s", r.Method, r.URL.Path)
				}
				tt.resp(w)
			})

			res := tt.call(client)
			assertEnvelope(t, res)
			if !res.OK() {
				t.Fatalf("error = %s", res.Err())
			}
		})
	}
}

func TestUploadPhoto(t *testing.T) {
	var fields map[string][]string
	_, client := setupMockBackend(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/photos/p1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		fields = r.MultipartForm.Value
		if _, hdr, err := r.FormFile("photo"); err != nil {
			t.Errorf("FormFile: %v", err)
		} else if hdr.Header.Get("Content-Type") != "image/jpeg" {
			t.Errorf("Content-Type части = %q", hdr.Header.Get("Content-Type"))
		}
		writeJSON(w, http.StatusCreated, `{"id":"f1","project_id":"p1","name":"frente","photo_date":"2025-03-04","url":"https://cdn/f1.jpg"}`)
	})

	res := client.UploadPhoto(context.Background(), "p1",
		model.NovaFoto{Nome: "frente", DataFoto: "2025-03-04"},
		FilePart{FileName: "f.jpg", ContentType: "image/jpeg", Content: strings.NewReader("jpeg")},
	)
	if !res.OK() {
		t.Fatalf("UploadPhoto() error = %s", res.Err())
	}
	if fields["photo_date"][0] != "2025-03-04" {
		t.Errorf("photo_date = %v, дата фото не конвертируется", fields["photo_date"])
	}
	if res.Data.DataFoto != "2025-03-04" {
		t.Errorf("DataFoto = %q", res.Data.DataFoto)
	}
}

func TestListPhotos_BareArray(t *testing.T) {
	_, client := setupMockBackend(t, "", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"id":"f1","url":"u1","description":"d"},{"id":"f2","url":"u2"}]`)
	})

	res := client.ListPhotos(context.Background(), "p1")
	if !res.OK() {
		t.Fatalf("ListPhotos() error = %s", res.Err())
	}
	if len(*res.Data) != 2 || (*res.Data)[0].Descricao != "d" {
		t.Errorf("fotos = %+v", *res.Data)
	}
}

func TestBIM_GetUploadDownload(t *testing.T) {
	_, client := setupMockBackend(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/bim/p1":
			if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
				t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
			}
			writeJSON(w, http.StatusCreated, `{"id":"b1","project_id":"p1","file_name":"m.ifc","file_type":"ifc","file_size":10}`)
		case r.Method == http.MethodGet && r.URL.Path == "/bim/p1":
			writeJSON(w, http.StatusOK, `{"id":"b1","project_id":"p1","file_name":"m.ifc","file_type":"ifc","file_size":10}`)
		case r.Method == http.MethodGet && r.URL.Path == "/bim/download/p1":
			writeJSON(w, http.StatusOK, `{"url":"https://s3/m.ifc?sig=1","expires_in":3600}`)
		default:
			writeJSON(w, http.StatusNotFound, `{"detail":"Not Found"}`)
		}
	})
	ctx := context.Background()

	up := client.UploadBIM(ctx, "p1", FilePart{FileName: "m.ifc", Content: strings.NewReader("0123456789")})
	if !up.OK() || up.Data.NomeArquivo != "m.ifc" {
		t.Fatalf("UploadBIM() = %+v", up)
	}

	got := client.GetBIM(ctx, "p1")
	if !got.OK() || got.Data.TamanhoBytes != 10 {
		t.Fatalf("GetBIM() = %+v", got)
	}

	link := client.GetBIMDownloadURL(ctx, "p1")
	if !link.OK() || link.Data.ExpiraEmSegundos != 3600 || link.Data.URL != "https://s3/m.ifc?sig=1" {
		t.Fatalf("GetBIMDownloadURL() = %+v", link)
	}

	missing := client.GetBIM(ctx, "p2")
	if missing.Err() != "Not Found" || missing.Status != http.StatusNotFound {
		t.Errorf("GetBIM(p2) = %+v", missing)
	}
}

func TestListReports_ProgressFraction(t *testing.T) {
	_, client := setupMockBackend(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[
			{"id":"r1","analysis_id":"a1","overall_progress":0.45},
			{"id":"r2","analysis_id":"a2","overall_progress":0.999},
			{"id":"r3","analysis_id":"a3","overall_progress":0}
		]`)
	})

	res := client.ListReports(context.Background(), "p1")
	if !res.OK() {
		t.Fatalf("ListReports() error = %s", res.Err())
	}
	want := []int{45, 100, 0}
	for i, r := range *res.Data {
		if r.Progresso != want[i] {
			t.Errorf("relatorio[%d].Progresso = %d, ожидается %d", i, r.Progresso, want[i])
		}
	}
}

func TestListReports_ProgressOutOfRange(t *testing.T) {
	_, client := setupMockBackend(t, "", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"id":"r1","analysis_id":"a1","overall_progress":67.5}]`)
	})

	res := client.ListReports(context.Background(), "p1")
	if res.Kind != KindDecode {
		t.Errorf("Kind = %q, ожидается decode", res.Kind)
	}
}

func TestGetReportPDF(t *testing.T) {
	_, client := setupMockBackend(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reports/analysis/an-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/pdf")
		io.WriteString(w, "%PDF-1.7")
	})

	res := client.GetReportPDF(context.Background(), "an-1")
	if !res.OK() {
		t.Fatalf("GetReportPDF() error = %s", res.Err())
	}
	if res.Data.ContentType != "application/pdf" || string(res.Data.Conteudo) != "%PDF-1.7" {
		t.Errorf("pdf = %+v", res.Data)
	}
}

func TestListAlerts(t *testing.T) {
	_, client := setupMockBackend(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bim/projects/p1/alerts" {
			t.Errorf("path = %s", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, `{"project_id":"p1","alerts":[
			{"alert_id":"al1","analysis_id":"a1","alert_type":"missing_element","severity":"high","title":"Pilar ausente","resolved":false,"element_id":"E-12"},
			{"alert_id":"al2","analysis_id":"a1","alert_type":"deviation","severity":"low","title":"Desvio","resolved":true,"resolved_by":"ana@obras.example"}
		]}`)
	})

	res := client.ListAlerts(context.Background(), "p1")
	if !res.OK() {
		t.Fatalf("ListAlerts() error = %s", res.Err())
	}
	r := res.Data
	if r.Total != 2 || r.Abertos != 1 || r.Resolvidos != 1 {
		t.Errorf("счётчики = %d/%d/%d", r.Total, r.Abertos, r.Resolvidos)
	}
	if r.Alertas[0].ElementoID != "E-12" || r.Alertas[1].ResolvidoPor != "ana@obras.example" {
		t.Errorf("alertas = %+v", r.Alertas)
	}
}

func TestGetTimeline(t *testing.T) {
	_, client := setupMockBackend(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bim/timeline/p1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, `{"project_name":"Linha 6","timeline":[
			{"timestamp":"2025-03-01T10:00:00Z","analysis_id":"a1","progress":0.2,"summary":"fundação","detected_elements_count":12,"alerts_count":1},
			{"timestamp":"2025-03-11T10:00:00Z","analysis_id":"a2","progress":0.45,"summary":"estrutura","detected_elements_count":30,"alerts_count":2}
		],
		"progress_evolution":[{"index":1,"date":"2025-03-01T10:00:00Z","progress":0.2},{"index":2,"date":"2025-03-11T10:00:00Z","progress":0.45}],
		"total_analyses":2,"current_progress":0.45,"velocity":0.025,"velocity_unit":null}`)
	})

	res := client.GetTimeline(context.Background(), "p1")
	if !res.OK() {
		t.Fatalf("GetTimeline() error = %s", res.Err())
	}
	l := res.Data
	if l.ObraID != "p1" || l.NomeObra != "Linha 6" || len(l.Pontos) != 2 {
		t.Fatalf("linha do tempo = %+v", l)
	}
	p := l.Pontos[0]
	if p.Progresso != 20 || p.QtdElementos != 12 || p.QtdAlertas != 1 {
		t.Errorf("ponto = %+v", p)
	}
	if len(l.Evolucao) != 2 || l.Evolucao[1].Indice != 2 || l.Evolucao[1].Progresso != 45 {
		t.Errorf("evolucao = %+v", l.Evolucao)
	}
	if l.TotalAnalises != 2 || l.ProgressoAtual != 45 {
		t.Errorf("total/atual = %d/%d", l.TotalAnalises, l.ProgressoAtual)
	}
	if l.Velocidade == nil || *l.Velocidade != 2.5 || l.UnidadeVelocidade != "% por dia" {
		t.Errorf("velocidade = %v %q", l.Velocidade, l.UnidadeVelocidade)
	}
}

func TestGetTimeline_SingleAnalysis(t *testing.T) {
	_, client := setupMockBackend(t, "", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"timeline":[
			{"timestamp":"2025-03-01T10:00:00Z","analysis_id":"a1","progress":0.3}
		],"velocity":null}`)
	})

	res := client.GetTimeline(context.Background(), "p1")
	if !res.OK() {
		t.Fatalf("GetTimeline() error = %s", res.Err())
	}
	l := res.Data
	if l.Velocidade != nil || l.UnidadeVelocidade != "" {
		t.Errorf("velocidade = %v %q, ожидается null", l.Velocidade, l.UnidadeVelocidade)
	}
	if l.TotalAnalises != 1 || l.ProgressoAtual != 30 {
		t.Errorf("total/atual = %d/%d", l.TotalAnalises, l.ProgressoAtual)
	}
	if len(l.Evolucao) != 1 || l.Evolucao[0].Indice != 1 || l.Evolucao[0].Progresso != 30 {
		t.Errorf("evolucao без progress_evolution = %+v", l.Evolucao)
	}
}

func TestGetProgressSummary(t *testing.T) {
	_, client := setupMockBackend(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bim/progress/p1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, `{"project_id":"p1","total_analyses":2,
			"analyses":[
				{"analysis_id":"a1","overall_progress":0.55,"summary":"estrutura","analyzed_at":"2025-03-05T10:30:00"},
				{"analysis_id":"a2","overall_progress":0.675,"summary":"pilares","analyzed_at":null}
			],
			"open_alerts":3,
			"recent_alerts":[{"alert_id":"al1","severity":"medium","title":"Elemento não detectado"}],
			"overall_progress":0.6125,"last_analysis_date":"2025-03-05T10:30:00"}`)
	})

	res := client.GetProgressSummary(context.Background(), "p1")
	assertEnvelope(t, res)
	if !res.OK() {
		t.Fatalf("GetProgressSummary() error = %s", res.Err())
	}
	r := res.Data
	if r.ProgressoMedio != 61 || r.TotalAnalises != 2 || r.AlertasAbertos != 3 {
		t.Errorf("resumo = %+v", r)
	}
	if r.Analises[1].Progresso != 68 || r.Analises[1].DataAnalise != "" {
		t.Errorf("analises = %+v", r.Analises)
	}
	if r.UltimaAnalise == nil || *r.UltimaAnalise != "2025-03-05T10:30:00" {
		t.Errorf("ultima_analise = %v", r.UltimaAnalise)
	}
	if len(r.AlertasRecentes) != 1 || r.AlertasRecentes[0].ID != "al1" {
		t.Errorf("alertas_recentes = %+v", r.AlertasRecentes)
	}
}

func TestGetProgressSummary_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"без analyses", `{"overall_progress":0.5}`},
		{"без overall_progress", `{"analyses":[]}`},
		{"процент вместо доли", `{"analyses":[],"overall_progress":61.25}`},
		{"анализ без id", `{"analyses":[{"overall_progress":0.1}],"overall_progress":0.1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client := setupMockBackend(t, "", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, tt.body)
			})
			res := client.GetProgressSummary(context.Background(), "p1")
			assertEnvelope(t, res)
			if res.Kind != KindDecode {
				t.Errorf("Kind = %q, ожидается decode", res.Kind)
			}
		})
	}
}

func TestGetProgressSummary_NoAnalyses(t *testing.T) {
	_, client := setupMockBackend(t, "", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"project_id":"p1","total_analyses":0,"analyses":[],"open_alerts":0,
			"recent_alerts":[],"overall_progress":0.0,"last_analysis_date":null}`)
	})

	res := client.GetProgressSummary(context.Background(), "p1")
	if !res.OK() {
		t.Fatalf("GetProgressSummary() error = %s", res.Err())
	}
	if res.Data.UltimaAnalise != nil || res.Data.ProgressoMedio != 0 || len(res.Data.Analises) != 0 {
		t.Errorf("resumo = %+v", res.Data)
	}
}

func TestCompareAnalyses(t *testing.T) {
	var query string
	_, client := setupMockBackend(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bim/compare/p1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		query = r.URL.Query().Get("analysis_ids")
		writeJSON(w, http.StatusOK, `{"project_id":"p1","comparisons":[
			{"analysis_id":"a1","timestamp":"2025-03-01T09:00:00Z","progress":0.25,"summary":"fundação",
				"detected_elements":["elem1",{"element_id":"IfcWall-7"}],"alerts":["alerta1"]},
			{"analysis_id":"a2","timestamp":"2025-03-05T14:30:00Z","progress":0.55,"summary":"estrutura",
				"detected_elements":["elem1","elem2","elem3"],"alerts":[{"alert_id":"al2"},{"alert_id":"al3"}]}
		]}`)
	})

	res := client.CompareAnalyses(context.Background(), "p1", []string{" a1 ", "", "a2"})
	assertEnvelope(t, res)
	if !res.OK() {
		t.Fatalf("CompareAnalyses() error = %s", res.Err())
	}
	if query != "a1,a2" {
		t.Errorf("analysis_ids = %q, ожидается a1,a2", query)
	}
	c := res.Data
	if len(c.Analises) != 2 || c.Analises[0].Elementos[1] != "IfcWall-7" || c.Analises[1].Alertas[1] != "al3" {
		t.Fatalf("analises = %+v", c.Analises)
	}
	// differences нет в ответе: считаются по соседним анализам
	if len(c.Diferencas) != 1 {
		t.Fatalf("diferencas = %+v", c.Diferencas)
	}
	d := c.Diferencas[0]
	if d.De != "a1" || d.Para != "a2" || d.VariacaoProgresso != 30 || d.NovosAlertas != 1 {
		t.Errorf("diferenca = %+v", d)
	}
}

func TestCompareAnalyses_Errors(t *testing.T) {
	t.Run("пустой список", func(t *testing.T) {
		calls := 0
		_, client := setupMockBackend(t, "", func(w http.ResponseWriter, r *http.Request) {
			calls++
		})
		res := client.CompareAnalyses(context.Background(), "p1", []string{" ", ""})
		assertEnvelope(t, res)
		if res.Kind != KindInput || calls != 0 {
			t.Errorf("Kind = %q, запросов = %d", res.Kind, calls)
		}
	})

	t.Run("анализы не найдены", func(t *testing.T) {
		_, client := setupMockBackend(t, "", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, `{"detail":"Nenhuma análise encontrada"}`)
		})
		res := client.CompareAnalyses(context.Background(), "p1", []string{"x"})
		if res.Kind != KindStatus || res.Status != http.StatusNotFound || res.Err() != "Nenhuma análise encontrada" {
			t.Errorf("res = %+v (%s)", res, res.Err())
		}
	})

	t.Run("разница вне диапазона", func(t *testing.T) {
		_, client := setupMockBackend(t, "", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{"comparisons":[],"differences":[{"from":"a1","to":"a2","progress_change":30.0}]}`)
		})
		res := client.CompareAnalyses(context.Background(), "p1", []string{"a1", "a2"})
		if res.Kind != KindDecode {
			t.Errorf("Kind = %q, ожидается decode", res.Kind)
		}
	})
}
