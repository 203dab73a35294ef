// Пакет dateconv — преобразование текстовых дат между форматом UI (YYYY-MM-DD)
// и форматом backend (DD-MM-YYYY).
// Чистое строковое преобразование: разбиение по "-", перестановка, склейка.
// Календарная корректность не проверяется.
package dateconv

import "strings"

// ToBackend переводит дату из формата UI (YYYY-MM-DD) в формат backend (DD-MM-YYYY).
// Пустая строка остаётся пустой, строки не из трёх частей возвращаются без изменений.
func ToBackend(uiDate string) string {
	return swap(uiDate)
}

// ToUI переводит дату из формата backend (DD-MM-YYYY) в формат UI (YYYY-MM-DD).
// Пустая строка остаётся пустой, строки не из трёх частей возвращаются без изменений.
func ToUI(backendDate string) string {
	return swap(backendDate)
}

// swap меняет местами первую и третью часть даты.
// Оба направления симметричны: YYYY-MM-DD ⇄ DD-MM-YYYY.
func swap(date string) string {
	if date == "" {
		return ""
	}
	parts := strings.Split(date, "-")
	if len(parts) != 3 {
		return date
	}
	return parts[2] + "-" + parts[1] + "-" + parts[0]
}
