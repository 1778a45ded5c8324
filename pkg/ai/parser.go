package ai

import (
	"bufio"
	"strings"
)

// Префиксы строк с вариантами выбора. Буква чувствительна к регистру,
// после нее идет литеральная точка.
var optionPrefixes = []string{"A.", "B.", "C.", "D."}

// ParseStoryResponse разбирает сырой ответ модели на текст главы и варианты
// выбора. Модель не обязана соблюдать запрошенный формат, поэтому парсер
// терпим к мусору: никогда не возвращает ошибку, а отсутствие вариантов —
// допустимый результат (вызывающий код показывает текст без кнопок).
func ParseStoryResponse(response string) (storyText string, options []string) {
	options = make([]string, 0, 4)
	var storyLines []string

	scanner := bufio.NewScanner(strings.NewReader(strings.TrimSpace(response)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if prefix := matchOptionPrefix(line); prefix != "" {
			optionText := strings.TrimSpace(strings.TrimPrefix(line, prefix))
			if optionText != "" {
				options = append(options, optionText)
			}
			continue
		}

		// Горизонтальные разделители не несут контента
		if strings.HasPrefix(line, "---") {
			continue
		}

		storyLines = append(storyLines, line)
	}

	return strings.Join(storyLines, "\n"), options
}

// matchOptionPrefix возвращает совпавший префикс варианта или пустую строку.
func matchOptionPrefix(line string) string {
	for _, prefix := range optionPrefixes {
		if strings.HasPrefix(line, prefix) {
			return prefix
		}
	}
	return ""
}
