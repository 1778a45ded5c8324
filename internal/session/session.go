// Package session содержит модель сессии исследования души и явный реестр
// сессий, заменяющий глобальные словари "пользователь -> состояние".
package session

import (
	"sync"
	"time"

	"soul-server/internal/history"
)

// State — состояние конечного автомата сессии.
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateEnded      State = "ended"
)

// Mode — режим старта истории. Устанавливается один раз при старте сессии.
type Mode string

const (
	ModeRandom Mode = "random"
	ModeCustom Mode = "custom"
)

// Session — одно прохождение истории одним пользователем.
// Поля мутируются только движком истории; все вызовы движка для одной
// сессии должны быть сериализованы через Lock/Unlock.
type Session struct {
	mu sync.Mutex

	Key   string `json:"key"`
	State State  `json:"state"`
	Mode  Mode   `json:"mode"`

	// Счетчик глав с нуля; ограничен TotalChapters движка.
	CurrentChapter int `json:"currentChapter"`

	// Полная история выборов (однобуквенные токены) и их текстов.
	// Буквы намеренно не усекаются: последовательность мала и целиком
	// встраивается в промт финального анализа.
	Choices     []string `json:"choices"`
	ChoiceTexts []string `json:"choiceTexts"`

	// Заполняются только в режиме custom, каждое не более одного раза.
	CustomScene     string `json:"customScene"`
	CustomCharacter string `json:"customCharacter"`

	// Состояние истории, извлеченное по ключевым словам. Только справочно.
	Location     string `json:"location"`
	TimeOfDay    string `json:"timeOfDay"`
	StoryContext string `json:"storyContext"`
	Theme        string `json:"theme"`

	History *history.Manager `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// New создает пустую сессию в состоянии NOT_STARTED.
func New(key string, historyMaxLength, summaryMaxLength int) *Session {
	now := time.Now().UTC()
	return &Session{
		Key:       key,
		State:     StateNotStarted,
		History:   history.NewManager(historyMaxLength, summaryMaxLength),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Lock сериализует доступ к сессии. Все вызовы движка по одному ключу
// должны идти строго по очереди; HTTP-слой этого сам не гарантирует.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock освобождает сессию.
func (s *Session) Unlock() { s.mu.Unlock() }

// Touch обновляет время последней мутации.
func (s *Session) Touch() {
	s.UpdatedAt = time.Now().UTC()
}

// AwaitingCustomSetup сообщает, ждет ли сессия описания сцены и персонажа.
func (s *Session) AwaitingCustomSetup() bool {
	return s.State == StateNotStarted && s.Mode == ModeCustom && s.CustomScene == ""
}

// Reset очищает все поля сессии и журнал истории, возвращая ее в NOT_STARTED.
// Сама запись сессии сохраняется.
func (s *Session) Reset() {
	s.State = StateNotStarted
	s.Mode = ""
	s.CurrentChapter = 0
	s.Choices = nil
	s.ChoiceTexts = nil
	s.CustomScene = ""
	s.CustomCharacter = ""
	s.Location = ""
	s.TimeOfDay = ""
	s.StoryContext = ""
	s.Theme = ""
	s.History.Clear()
	s.Touch()
}

// Info — read-only проекция сессии для вызывающего кода и персистентности.
type Info struct {
	Key                string   `json:"key"`
	State              State    `json:"state"`
	Mode               Mode     `json:"mode"`
	CurrentChapter     int      `json:"currentChapter"`
	TotalChapters      int      `json:"totalChapters"`
	Choices            []string `json:"choices"`
	StoryHistoryLength int      `json:"storyHistoryLength"`
	InteractionLength  int      `json:"interactionLength"`
	CustomScene        string   `json:"customScene,omitempty"`
	CustomCharacter    string   `json:"customCharacter,omitempty"`
}

// Info собирает снимок сессии; totalChapters приходит из конфигурации движка.
func (s *Session) Info(totalChapters int) Info {
	choices := make([]string, len(s.Choices))
	copy(choices, s.Choices)
	return Info{
		Key:                s.Key,
		State:              s.State,
		Mode:               s.Mode,
		CurrentChapter:     s.CurrentChapter,
		TotalChapters:      totalChapters,
		Choices:            choices,
		StoryHistoryLength: s.History.StoryLength(),
		InteractionLength:  s.History.InteractionLength(),
		CustomScene:        s.CustomScene,
		CustomCharacter:    s.CustomCharacter,
	}
}

// Snapshot — полное сериализуемое состояние сессии для внешнего хранилища.
type Snapshot struct {
	Key             string                     `json:"key"`
	State           State                      `json:"state"`
	Mode            Mode                       `json:"mode"`
	CurrentChapter  int                        `json:"currentChapter"`
	Choices         []string                   `json:"choices"`
	ChoiceTexts     []string                   `json:"choiceTexts"`
	CustomScene     string                     `json:"customScene,omitempty"`
	CustomCharacter string                     `json:"customCharacter,omitempty"`
	Location        string                     `json:"location,omitempty"`
	TimeOfDay       string                     `json:"timeOfDay,omitempty"`
	StoryContext    string                     `json:"storyContext,omitempty"`
	Theme           string                     `json:"theme,omitempty"`
	Summary         string                     `json:"summary,omitempty"`
	StoryEntries    []history.StoryEntry       `json:"storyEntries,omitempty"`
	Interactions    []history.InteractionEntry `json:"interactions,omitempty"`
	CreatedAt       time.Time                  `json:"createdAt"`
	UpdatedAt       time.Time                  `json:"updatedAt"`
}

// Snapshot собирает полное состояние сессии.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		Key:             s.Key,
		State:           s.State,
		Mode:            s.Mode,
		CurrentChapter:  s.CurrentChapter,
		Choices:         append([]string(nil), s.Choices...),
		ChoiceTexts:     append([]string(nil), s.ChoiceTexts...),
		CustomScene:     s.CustomScene,
		CustomCharacter: s.CustomCharacter,
		Location:        s.Location,
		TimeOfDay:       s.TimeOfDay,
		StoryContext:    s.StoryContext,
		Theme:           s.Theme,
		Summary:         s.History.Summary(),
		StoryEntries:    s.History.StoryEntries(),
		Interactions:    s.History.InteractionEntries(),
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

// Restore восстанавливает сессию из снапшота (например, после рестарта).
func (s *Session) Restore(snap Snapshot) {
	s.State = snap.State
	s.Mode = snap.Mode
	s.CurrentChapter = snap.CurrentChapter
	s.Choices = append([]string(nil), snap.Choices...)
	s.ChoiceTexts = append([]string(nil), snap.ChoiceTexts...)
	s.CustomScene = snap.CustomScene
	s.CustomCharacter = snap.CustomCharacter
	s.Location = snap.Location
	s.TimeOfDay = snap.TimeOfDay
	s.StoryContext = snap.StoryContext
	s.Theme = snap.Theme
	s.History.Restore(snap.StoryEntries, snap.Interactions, snap.Summary)
	s.CreatedAt = snap.CreatedAt
	s.UpdatedAt = snap.UpdatedAt
}
