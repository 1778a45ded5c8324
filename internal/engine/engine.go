// Package engine содержит конечный автомат исследования души: оркестрацию
// промтов, вызовы генеративной модели через retry.Executor и правила
// перехода между главами вплоть до финального анализа.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"soul-server/internal/retry"
	"soul-server/internal/session"
	"soul-server/pkg/ai"

	"go.uber.org/zap"
)

// Команды и тексты подсказок. Сопоставление строго литеральное.
const (
	commandStart  = "start"
	commandCustom = "custom"

	sceneMarker     = "Scene:"
	characterMarker = "Character:"

	startGuidance = "Send 'start' to begin a random exploration, or 'custom' to set up your own scene and character."

	customSetupInstruction = "Please describe your desired scene and character. For example: 'Scene: a mysterious library, Character: a scholar searching for answers'"

	customFormatError = "Invalid format. Please use: 'Scene: [scene description], Character: [character description]'"

	choiceGuidance = "Please choose one of the options: A, B, C or D."

	endedGuidance = "This exploration has ended. Reset the session to begin a new journey."
)

// acceptedChoices — допустимые токены выбора.
var acceptedChoices = map[string]bool{"A": true, "B": true, "C": true, "D": true}

// Engine управляет переходами NOT_STARTED -> IN_PROGRESS -> ENDED для сессий.
// Сам движок без состояния сессии и безопасен для совместного использования;
// сериализацию вызовов по одной сессии обеспечивает вызывающий код.
type Engine struct {
	totalChapters int
	generator     ai.Generator
	executor      *retry.Executor
	prompts       PromptSource
	logger        *zap.Logger

	// Генератор случайности инжектируется, чтобы тесты могли зафиксировать
	// seed и проверять детерминированную сборку промтов.
	rngMu sync.Mutex
	rng   *rand.Rand
}

// New создает движок истории.
func New(totalChapters int, generator ai.Generator, executor *retry.Executor, prompts PromptSource, rng *rand.Rand, logger *zap.Logger) *Engine {
	if totalChapters <= 0 {
		totalChapters = 5
	}
	return &Engine{
		totalChapters: totalChapters,
		generator:     generator,
		executor:      executor,
		prompts:       prompts,
		rng:           rng,
		logger:        logger.Named("StoryEngine"),
	}
}

// TotalChapters возвращает настроенное число глав.
func (e *Engine) TotalChapters() int {
	return e.totalChapters
}

// StartExploration обрабатывает стартовый ввод из состояния NOT_STARTED.
// "start" запускает случайный режим, "custom" переводит сессию в ожидание
// описания сцены; любой другой ввод возвращает подсказку без смены состояния.
func (e *Engine) StartExploration(ctx context.Context, s *session.Session, input string) string {
	if s.State == session.StateEnded {
		return endedGuidance
	}
	if s.State == session.StateInProgress {
		return choiceGuidance
	}

	switch strings.ToLower(strings.TrimSpace(input)) {
	case commandStart:
		s.Mode = session.ModeRandom
		adjective, noun, verb := e.randomSeeds()
		e.logger.Info("Случайный старт истории",
			zap.String("sessionKey", s.Key),
			zap.String("adjective", adjective),
			zap.String("noun", noun),
			zap.String("verb", verb))
		return e.generateOpening(ctx, s, buildOpeningPrompt(adjective, noun, verb))

	case commandCustom:
		s.Mode = session.ModeCustom
		s.Touch()
		return customSetupInstruction

	default:
		return startGuidance
	}
}

// HandleCustomSetup разбирает описание сцены и персонажа. Валиден только
// пока сессия ждет настройки; формат можно присылать заново без ограничений.
func (e *Engine) HandleCustomSetup(ctx context.Context, s *session.Session, input string) string {
	if !s.AwaitingCustomSetup() {
		return startGuidance
	}

	scene, character, ok := parseCustomSetup(input)
	if !ok {
		return customFormatError
	}

	s.CustomScene = scene
	s.CustomCharacter = character
	e.logger.Info("Пользовательская настройка принята",
		zap.String("sessionKey", s.Key),
		zap.String("scene", scene),
		zap.String("character", character))

	return e.generateOpening(ctx, s, buildCustomOpeningPrompt(scene, character))
}

// parseCustomSetup извлекает помеченные подстроки сцены и персонажа.
func parseCustomSetup(input string) (scene, character string, ok bool) {
	sceneIdx := strings.Index(input, sceneMarker)
	characterIdx := strings.Index(input, characterMarker)
	if sceneIdx < 0 || characterIdx < 0 || characterIdx < sceneIdx {
		return "", "", false
	}

	scene = strings.TrimSpace(input[sceneIdx+len(sceneMarker) : characterIdx])
	scene = strings.TrimRight(scene, ",;")
	scene = strings.TrimSpace(scene)
	character = strings.TrimSpace(input[characterIdx+len(characterMarker):])

	if scene == "" || character == "" {
		return "", "", false
	}
	return scene, character, true
}

// generateOpening генерирует первую главу и переводит сессию в IN_PROGRESS.
// При исчерпании повторов подставляет запасную историю: состояние сессии
// продвигается так, как если бы вызов удался.
func (e *Engine) generateOpening(ctx context.Context, s *session.Session, userPrompt string) string {
	systemPrompt := e.buildSystemPrompt(s)

	response, err := e.executor.Execute(ctx, func(ctx context.Context) (string, error) {
		return e.generator.GenerateText(ctx, systemPrompt, userPrompt)
	})
	if err != nil {
		e.logger.Error("Генерация начала истории не удалась, подставлен запасной текст",
			zap.String("sessionKey", s.Key), zap.Error(err))
		fallbacksTotal.WithLabelValues(stageStart).Inc()
		response = e.pickFallback(defaultStories)
	}

	s.History.AddStoryEntry(s.CurrentChapter, response)
	extractStoryState(s, response)
	s.State = session.StateInProgress
	s.Touch()

	return response
}

// ProcessChoice обрабатывает выбор пользователя в состоянии IN_PROGRESS.
// Невалидный токен выбора возвращает подсказку без какой-либо мутации.
// На границе последней главы продолжение и финальный анализ генерируются
// двумя последовательными вызовами и склеиваются пустой строкой.
func (e *Engine) ProcessChoice(ctx context.Context, s *session.Session, choice, choiceText string) string {
	if s.State == session.StateEnded {
		return endedGuidance
	}
	if s.State != session.StateInProgress {
		return startGuidance
	}

	choice = strings.ToUpper(strings.TrimSpace(choice))
	if !acceptedChoices[choice] {
		return choiceGuidance
	}

	e.logger.Info("Выбор пользователя",
		zap.String("sessionKey", s.Key),
		zap.String("choice", choice),
		zap.Int("chapter", s.CurrentChapter+1),
		zap.Int("totalChapters", e.totalChapters))

	s.Choices = append(s.Choices, choice)
	s.ChoiceTexts = append(s.ChoiceTexts, choiceText)
	// Плейсхолдер ответа пуст на момент вставки
	s.History.AddInteractionEntry(choice, choiceText, "")

	if s.CurrentChapter < e.totalChapters-1 {
		response := e.generateChapter(ctx, s, choice, choiceText)
		s.CurrentChapter++
		s.Touch()
		return response
	}

	// Последняя глава: продолжение и сразу финальный анализ
	response := e.generateChapter(ctx, s, choice, choiceText)
	s.CurrentChapter++
	ending := e.generateEnding(ctx, s)
	s.State = session.StateEnded
	s.Touch()
	explorationsCompleted.Inc()

	e.logger.Info("Исследование завершено",
		zap.String("sessionKey", s.Key),
		zap.Strings("choices", s.Choices))

	return response + "\n\n" + ending
}

// generateChapter генерирует следующую главу, при отказе — запасную.
func (e *Engine) generateChapter(ctx context.Context, s *session.Session, choice, choiceText string) string {
	systemPrompt := e.buildSystemPrompt(s)
	userPrompt := buildChapterPrompt(s.CurrentChapter+1, choice, choiceText)

	response, err := e.executor.Execute(ctx, func(ctx context.Context) (string, error) {
		return e.generator.GenerateText(ctx, systemPrompt, userPrompt)
	})
	if err != nil {
		e.logger.Error("Генерация главы не удалась, подставлен запасной текст",
			zap.String("sessionKey", s.Key),
			zap.Int("chapter", s.CurrentChapter+1),
			zap.Error(err))
		fallbacksTotal.WithLabelValues(stageChapter).Inc()
		response = e.pickFallback(defaultChapters)
	}

	s.History.AddStoryEntry(s.CurrentChapter, response)
	extractStoryState(s, response)
	return response
}

// generateEnding генерирует финальный анализ по полной истории выборов.
// Единственный путь с фиксированным (не случайным) запасным текстом.
func (e *Engine) generateEnding(ctx context.Context, s *session.Session) string {
	systemPrompt := e.buildSystemPrompt(s)
	userPrompt := buildEndingPrompt(s.Choices)

	ending, err := e.executor.Execute(ctx, func(ctx context.Context) (string, error) {
		return e.generator.GenerateText(ctx, systemPrompt, userPrompt)
	})
	if err != nil {
		e.logger.Error("Генерация финального анализа не удалась, подставлен запасной текст",
			zap.String("sessionKey", s.Key), zap.Error(err))
		fallbacksTotal.WithLabelValues(stageEnding).Inc()
		ending = defaultEnding
	}

	s.History.UpdateSummary(fmt.Sprintf("User choice history: %v, final analysis complete", s.Choices))
	return ending
}

// ResetSession очищает сессию и журнал истории из любого состояния.
func (e *Engine) ResetSession(s *session.Session) {
	s.Reset()
	e.logger.Info("Сессия сброшена", zap.String("sessionKey", s.Key))
}

// SessionInfo возвращает снимок сессии для персистентности.
func (e *Engine) SessionInfo(s *session.Session) session.Info {
	return s.Info(e.totalChapters)
}

// pickFallback выбирает случайный запасной текст из пула.
func (e *Engine) pickFallback(pool []string) string {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return pool[e.rng.Intn(len(pool))]
}
