package model

// Relatorio — отчёт анализа прогресса. Только чтение.
type Relatorio struct {
	ID          string `json:"id_relatorio"`
	ObraID      string `json:"id_obra"`
	AnaliseID   string `json:"id_analise"`
	DataAnalise string `json:"data_analise"`
	// Progresso — общий прогресс анализа в процентах (0–100)
	Progresso int `json:"progresso"`
	Numero    int `json:"numero"`
	// CaminhoPDF — относительный путь для получения PDF отчёта
	CaminhoPDF string `json:"caminho_pdf"`
	CriadoEm   string `json:"criado_em"`
}

// PDF — бинарное содержимое отчёта.
type PDF struct {
	ContentType string
	Conteudo    []byte
}

// Alerta — предупреждение анализа (отсутствующий элемент, отклонение и т.п.).
type Alerta struct {
	ID           string `json:"id_alerta"`
	ObraID       string `json:"id_obra"`
	AnaliseID    string `json:"id_analise"`
	Tipo         string `json:"tipo"`
	Severidade   string `json:"severidade"`
	Titulo       string `json:"titulo"`
	Descricao    string `json:"descricao"`
	ElementoID   string `json:"id_elemento,omitempty"`
	CriadoEm     string `json:"criado_em"`
	Resolvido    bool   `json:"resolvido"`
	ResolvidoEm  string `json:"resolvido_em,omitempty"`
	ResolvidoPor string `json:"resolvido_por,omitempty"`
}

// ResumoAlertas — список предупреждений проекта со счётчиками.
type ResumoAlertas struct {
	ObraID     string   `json:"id_obra"`
	Total      int      `json:"total"`
	Abertos    int      `json:"abertos"`
	Resolvidos int      `json:"resolvidos"`
	Alertas    []Alerta `json:"alertas"`
}

// PontoLinhaDoTempo — один анализ на временной шкале проекта.
type PontoLinhaDoTempo struct {
	AnaliseID    string `json:"id_analise"`
	DataAnalise  string `json:"data_analise"`
	Progresso    int    `json:"progresso"`
	Resumo       string `json:"resumo"`
	QtdElementos int    `json:"qtd_elementos"`
	QtdAlertas   int    `json:"qtd_alertas"`
}

// PontoEvolucao — точка графика прогресса (Indice с 1).
type PontoEvolucao struct {
	Indice    int    `json:"indice"`
	Data      string `json:"data"`
	Progresso int    `json:"progresso"`
}

// LinhaDoTempo — хронология анализов проекта.
type LinhaDoTempo struct {
	ObraID         string              `json:"id_obra"`
	NomeObra       string              `json:"nome_obra,omitempty"`
	Pontos         []PontoLinhaDoTempo `json:"pontos"`
	Evolucao       []PontoEvolucao     `json:"evolucao"`
	TotalAnalises  int                 `json:"total_analises"`
	ProgressoAtual int                 `json:"progresso_atual"`
	// Velocidade — пункты процента в день; nil, пока анализов меньше двух
	Velocidade        *float64 `json:"velocidade"`
	UnidadeVelocidade string   `json:"unidade_velocidade,omitempty"`
}

// AnaliseResumida — анализ в сводке прогресса.
type AnaliseResumida struct {
	AnaliseID   string `json:"id_analise"`
	Progresso   int    `json:"progresso"`
	Resumo      string `json:"resumo"`
	DataAnalise string `json:"data_analise,omitempty"`
}

// ResumoProgresso — сводка прогресса проекта по всем анализам.
type ResumoProgresso struct {
	ObraID        string            `json:"id_obra"`
	NomeObra      string            `json:"nome_obra,omitempty"`
	TotalAnalises int               `json:"total_analises"`
	Analises      []AnaliseResumida `json:"analises"`
	// ProgressoMedio — среднее по анализам, в процентах
	ProgressoMedio  int      `json:"progresso_medio"`
	UltimaAnalise   *string  `json:"ultima_analise"`
	AlertasAbertos  int      `json:"alertas_abertos"`
	AlertasRecentes []Alerta `json:"alertas_recentes"`
}

// AnaliseComparada — один анализ в сравнении.
type AnaliseComparada struct {
	AnaliseID   string   `json:"id_analise"`
	DataAnalise string   `json:"data_analise,omitempty"`
	Progresso   int      `json:"progresso"`
	Resumo      string   `json:"resumo"`
	Elementos   []string `json:"elementos"`
	Alertas     []string `json:"alertas"`
}

// DiferencaAnalises — изменение между соседними анализами.
type DiferencaAnalises struct {
	De                string `json:"de"`
	Para              string `json:"para"`
	VariacaoProgresso int    `json:"variacao_progresso"`
	NovosAlertas      int    `json:"novos_alertas"`
}

// Comparacao — анализы проекта бок о бок в хронологическом порядке.
type Comparacao struct {
	ObraID     string              `json:"id_obra"`
	NomeObra   string              `json:"nome_obra,omitempty"`
	Analises   []AnaliseComparada  `json:"analises"`
	Diferencas []DiferencaAnalises `json:"diferencas"`
}
