// Package history содержит менеджер истории сессии: ограниченный журнал
// сюжетных и интерактивных записей и построение сжатого контекста для AI.
// Полная история растет неограниченно с числом глав, а каждый запрос к AI
// заново встраивает контекст, поэтому журнал усечен до последних записей.
package history

import (
	"fmt"
	"strings"
	"time"
)

const (
	// NotStartedSentinel возвращается вместо контекста, пока история пуста.
	NotStartedSentinel = "Story has not started"

	// Пределы усечения при построении сжатого контекста.
	recentStoryCount       = 3
	recentInteractionCount = 2
	storyTextLimit         = 100
	choiceTextLimit        = 50
)

// StoryEntry — одна сгенерированная глава.
type StoryEntry struct {
	Chapter   int       `json:"chapter"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// InteractionEntry — один выбор пользователя.
type InteractionEntry struct {
	Choice     string    `json:"choice"`
	ChoiceText string    `json:"choiceText"`
	Response   string    `json:"response"`
	Timestamp  time.Time `json:"timestamp"`
}

// Manager хранит ограниченную историю одной сессии.
// Не потокобезопасен: сериализацию вызовов обеспечивает реестр сессий.
type Manager struct {
	maxHistoryLength int
	maxSummaryLength int

	storyEntries       []StoryEntry
	interactionEntries []InteractionEntry
	summary            string

	now func() time.Time
}

// NewManager создает менеджер истории с заданными пределами.
func NewManager(maxHistoryLength, maxSummaryLength int) *Manager {
	if maxHistoryLength <= 0 {
		maxHistoryLength = 5
	}
	if maxSummaryLength <= 0 {
		maxSummaryLength = 200
	}
	return &Manager{
		maxHistoryLength: maxHistoryLength,
		maxSummaryLength: maxSummaryLength,
		now:              time.Now,
	}
}

// AddStoryEntry добавляет главу и усекает журнал до последних N записей.
func (m *Manager) AddStoryEntry(chapter int, text string) {
	m.storyEntries = append(m.storyEntries, StoryEntry{
		Chapter:   chapter,
		Text:      text,
		Timestamp: m.now().UTC(),
	})
	m.trim()
}

// AddInteractionEntry добавляет выбор пользователя и усекает журнал.
func (m *Manager) AddInteractionEntry(choice, choiceText, response string) {
	m.interactionEntries = append(m.interactionEntries, InteractionEntry{
		Choice:     choice,
		ChoiceText: choiceText,
		Response:   response,
		Timestamp:  m.now().UTC(),
	})
	m.trim()
}

// trim оставляет только самые свежие записи.
func (m *Manager) trim() {
	if len(m.storyEntries) > m.maxHistoryLength {
		m.storyEntries = m.storyEntries[len(m.storyEntries)-m.maxHistoryLength:]
	}
	if len(m.interactionEntries) > m.maxHistoryLength {
		m.interactionEntries = m.interactionEntries[len(m.interactionEntries)-m.maxHistoryLength:]
	}
}

// OptimizedContext детерминированно строит сжатый контекст: резюме,
// последние 3 главы (до 100 символов каждая) и последние 2 выбора
// (до 50 символов текста). Ничего не мутирует.
func (m *Manager) OptimizedContext() string {
	var parts []string

	if m.summary != "" {
		parts = append(parts, "Story summary: "+m.summary)
	}

	if len(m.storyEntries) > 0 {
		recent := m.storyEntries
		if len(recent) > recentStoryCount {
			recent = recent[len(recent)-recentStoryCount:]
		}
		lines := make([]string, 0, len(recent))
		for _, entry := range recent {
			lines = append(lines, fmt.Sprintf("Chapter %d: %s", entry.Chapter, truncate(entry.Text, storyTextLimit)))
		}
		parts = append(parts, "Recent story: "+strings.Join(lines, " | "))
	}

	if len(m.interactionEntries) > 0 {
		recent := m.interactionEntries
		if len(recent) > recentInteractionCount {
			recent = recent[len(recent)-recentInteractionCount:]
		}
		lines := make([]string, 0, len(recent))
		for _, entry := range recent {
			lines = append(lines, fmt.Sprintf("Choice %s: %s...", entry.Choice, truncateNoEllipsis(entry.ChoiceText, choiceTextLimit)))
		}
		parts = append(parts, "Recent choices: "+strings.Join(lines, " | "))
	}

	if len(parts) == 0 {
		return NotStartedSentinel
	}
	return strings.Join(parts, " | ")
}

// UpdateSummary сохраняет резюме, усеченное до maxSummaryLength символов.
func (m *Manager) UpdateSummary(text string) {
	m.summary = truncateNoEllipsis(text, m.maxSummaryLength)
}

// Summary возвращает текущее резюме.
func (m *Manager) Summary() string {
	return m.summary
}

// Clear очищает журналы и резюме; используется при сбросе сессии.
func (m *Manager) Clear() {
	m.storyEntries = nil
	m.interactionEntries = nil
	m.summary = ""
}

// StoryLength возвращает число записей сюжета.
func (m *Manager) StoryLength() int {
	return len(m.storyEntries)
}

// InteractionLength возвращает число записей взаимодействий.
func (m *Manager) InteractionLength() int {
	return len(m.interactionEntries)
}

// StoryEntries возвращает копию журнала сюжета (для снапшота сессии).
func (m *Manager) StoryEntries() []StoryEntry {
	out := make([]StoryEntry, len(m.storyEntries))
	copy(out, m.storyEntries)
	return out
}

// InteractionEntries возвращает копию журнала взаимодействий.
func (m *Manager) InteractionEntries() []InteractionEntry {
	out := make([]InteractionEntry, len(m.interactionEntries))
	copy(out, m.interactionEntries)
	return out
}

// Restore восстанавливает состояние менеджера из снапшота.
func (m *Manager) Restore(stories []StoryEntry, interactions []InteractionEntry, summary string) {
	m.storyEntries = append([]StoryEntry(nil), stories...)
	m.interactionEntries = append([]InteractionEntry(nil), interactions...)
	m.summary = summary
	m.trim()
}

// truncate обрезает строку до limit рун и добавляет многоточие, если она длиннее.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// truncateNoEllipsis обрезает строку до limit рун без маркера усечения.
func truncateNoEllipsis(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
