package model

// ArquivoBIM — текущий BIM-файл проекта (IFC, RVT и т.п.).
type ArquivoBIM struct {
	ID           string `json:"id_bim"`
	ObraID       string `json:"id_obra"`
	NomeArquivo  string `json:"nome_arquivo"`
	TipoArquivo  string `json:"tipo_arquivo"`
	TamanhoBytes int64  `json:"tamanho_bytes"`
	URL          string `json:"url"`
	CriadoEm     string `json:"criado_em"`
}

// LinkDownload — временная ссылка на скачивание BIM-файла.
type LinkDownload struct {
	URL string `json:"url"`
	// ExpiraEmSegundos — срок действия ссылки
	ExpiraEmSegundos int `json:"expira_em_segundos"`
}
