package engine

import (
	"strings"

	"soul-server/internal/session"
)

// Ключевые слова для извлечения состояния истории из сгенерированного текста.
// Совпадение по подстроке, без какого-либо NLU. Результат только справочный
// и попадает в блок Current State системного промта.
var (
	locationKeywords = []string{"library", "beach", "garden", "room", "street", "forest", "castle", "cave"}
	timeKeywords     = []string{"midnight", "evening", "morning", "daytime", "night", "dusk", "dawn"}
	themeKeywords    = []string{"mystery", "exploration", "love", "friendship", "adventure", "discovery", "search", "secret"}
)

// extractStoryState обновляет поля состояния сессии по ключевым словам
// из текста главы. Отсутствие совпадений оставляет прежние значения.
func extractStoryState(s *session.Session, storyText string) {
	lower := strings.ToLower(storyText)

	for _, keyword := range locationKeywords {
		if strings.Contains(lower, keyword) {
			s.Location = keyword
			break
		}
	}
	for _, keyword := range timeKeywords {
		if strings.Contains(lower, keyword) {
			s.TimeOfDay = keyword
			break
		}
	}
	for _, keyword := range themeKeywords {
		if strings.Contains(lower, keyword) {
			s.Theme = keyword
			break
		}
	}
}
