package model

// Foto — фотография проекта.
type Foto struct {
	ID        string `json:"id_foto"`
	ObraID    string `json:"id_obra"`
	Nome      string `json:"nome"`
	Descricao string `json:"descricao"`
	// DataFoto — дата съёмки (YYYY-MM-DD)
	DataFoto string `json:"data_foto"`
	URL      string `json:"url"`
	CriadoEm string `json:"criado_em"`
}

// NovaFoto — поля формы загрузки фото (сам файл передаётся отдельно).
type NovaFoto struct {
	Nome      string `json:"nome"`
	DataFoto  string `json:"data_foto,omitempty"`
	Descricao string `json:"descricao,omitempty"`
}
