// Package validation содержит проверку пользовательского ввода
// и генерацию идентификаторов заказов.
package validation

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxInputLength — предельная длина пользовательского ввода в символах.
const MaxInputLength = 100

// Подстроки, характерные для попыток инъекций. Ввод с такими фрагментами
// отклоняется целиком, без попыток его исправить.
var dangerousPatterns = []string{"<script>", "../", ";", "--"}

// ValidateUserInput проверяет текст, полученный от пользователя.
// Отклоняются пустой ввод, ввод длиннее MaxInputLength символов
// и ввод с опасными подстроками.
func ValidateUserInput(text string) bool {
	if text == "" || utf8.RuneCountInString(text) > MaxInputLength {
		return false
	}

	lower := strings.ToLower(text)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lower, pattern) {
			return false
		}
	}

	return true
}

// NormalizeHandle убирает окружающие пробелы и ведущие символы @ из хендла.
func NormalizeHandle(handle string) string {
	return strings.TrimLeft(strings.TrimSpace(handle), "@")
}

// NewOrderID генерирует идентификатор заказа из метки времени создания
// и случайного четырёхзначного суффикса.
func NewOrderID() string {
	timestamp := time.Now().Unix()
	suffix := 1000 + rand.Intn(9000)
	return fmt.Sprintf("ORD%d%d", timestamp, suffix)
}
