// Пакет model — модели представления, которые шлюз отдаёт SPA.
// Имена полей JSON совпадают с теми, что ожидает frontend (португальские),
// даты — в формате UI (YYYY-MM-DD), прогресс — целый процент 0–100.
package model

// StatusObra — статус строительного проекта в терминах UI.
type StatusObra string

const (
	StatusPlanejamento StatusObra = "planejamento"
	StatusEmAndamento  StatusObra = "em_andamento"
	StatusConcluida    StatusObra = "concluida"
	StatusPausada      StatusObra = "pausada"
)

// Valid проверяет, что статус входит в допустимый набор.
func (s StatusObra) Valid() bool {
	switch s {
	case StatusPlanejamento, StatusEmAndamento, StatusConcluida, StatusPausada:
		return true
	}
	return false
}

// Obra — строительный проект (представление UI).
type Obra struct {
	// ID — непрозрачный стабильный идентификатор проекта
	ID string `json:"id_obra"`
	// Nome — название проекта
	Nome string `json:"nome"`
	// Responsavel — ответственный инженер
	Responsavel string `json:"responsavel"`
	// Localizacao — адрес / местоположение
	Localizacao string `json:"localizacao"`
	// DataInicio — дата начала (YYYY-MM-DD)
	DataInicio string `json:"data_inicio"`
	// DataPrevisaoTermino — ожидаемая дата завершения (YYYY-MM-DD)
	DataPrevisaoTermino string `json:"data_previsao_termino"`
	// Observacoes — свободный текст
	Observacoes string `json:"observacoes"`
	// Status — статус проекта
	Status StatusObra `json:"status"`
	// Progresso — процент выполнения 0–100
	Progresso int `json:"progresso"`
	// CriadoEm / AtualizadoEm — временные метки backend (как есть)
	CriadoEm     string `json:"criado_em"`
	AtualizadoEm string `json:"atualizado_em"`
}

// NovaObra — поля формы создания проекта (файл модели передаётся отдельно).
type NovaObra struct {
	Nome                string `json:"nome"`
	Responsavel         string `json:"responsavel"`
	Localizacao         string `json:"localizacao"`
	DataPrevisaoTermino string `json:"data_previsao_termino"`
	Observacoes         string `json:"observacoes,omitempty"`
}

// EdicaoObra — частичное изменение проекта. nil — поле не меняется.
type EdicaoObra struct {
	Nome                *string     `json:"nome,omitempty"`
	Responsavel         *string     `json:"responsavel,omitempty"`
	Localizacao         *string     `json:"localizacao,omitempty"`
	DataInicio          *string     `json:"data_inicio,omitempty"`
	DataPrevisaoTermino *string     `json:"data_previsao_termino,omitempty"`
	Observacoes         *string     `json:"observacoes,omitempty"`
	Status              *StatusObra `json:"status,omitempty"`
}

// DetalheObra — проект вместе с фото, BIM-файлами и отчётами.
type DetalheObra struct {
	Obra        Obra         `json:"obra"`
	Fotos       []Foto       `json:"fotos"`
	ArquivosBIM []ArquivoBIM `json:"arquivos_bim"`
	Relatorios  []Relatorio  `json:"relatorios"`
}

// Removido — результат успешного удаления ресурса.
type Removido struct {
	ID string `json:"id"`
}
