package engine_test

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"soul-server/internal/engine"
	"soul-server/internal/history"
	"soul-server/internal/mocks"
	"soul-server/internal/retry"
	"soul-server/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// stubPrompts возвращает фиксированные инструкции вместо файлов промтов.
type stubPrompts map[string]string

func (p stubPrompts) Get(key string) string { return p[key] }

const storyResponse = `You wake up in a silent forest at dawn.

A. Follow the narrow path.
B. Climb the tallest tree.
C. Call out for anyone nearby.
D. Sit still and listen.`

const endingResponse = `After this soul exploration journey, you have discovered your true thoughts deep inside.
---
**Soulmate Type Analysis**
You are an Explorer: you like adventure and new things.`

func newTestEngine(t *testing.T, totalChapters int) (*engine.Engine, *mocks.MockGenerator) {
	gen := mocks.NewMockGenerator(t)
	exec := retry.New(time.Millisecond, 5*time.Millisecond, 2, zap.NewNop())
	rng := rand.New(rand.NewSource(42))
	eng := engine.New(totalChapters, gen, exec, stubPrompts{engine.PromptRole: "You are a soul exploration guide."}, rng, zap.NewNop())
	return eng, gen
}

func newSession() *session.Session {
	return session.New("user-1", 5, 200)
}

func TestStartExploration_RandomMode(t *testing.T) {
	eng, gen := newTestEngine(t, 5)
	s := newSession()

	gen.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).Return(storyResponse, nil).Once()

	response := eng.StartExploration(context.Background(), s, "start")

	assert.Equal(t, storyResponse, response)
	assert.Equal(t, session.StateInProgress, s.State)
	assert.Equal(t, session.ModeRandom, s.Mode)
	assert.Equal(t, 0, s.CurrentChapter)
	assert.Equal(t, 1, s.History.StoryLength())

	// Системный промт содержит сентинел: история еще пуста на момент сборки
	systemPrompt := gen.Calls[0].Arguments.String(1)
	assert.Contains(t, systemPrompt, history.NotStartedSentinel)
	assert.Contains(t, systemPrompt, "You are a soul exploration guide.")
}

func TestStartExploration_InputNormalization(t *testing.T) {
	eng, gen := newTestEngine(t, 5)
	s := newSession()

	gen.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).Return(storyResponse, nil).Once()

	// Команда матчится после trim+lower
	eng.StartExploration(context.Background(), s, "  START \n")
	assert.Equal(t, session.StateInProgress, s.State)
}

func TestStartExploration_UnknownInputReprompts(t *testing.T) {
	eng, _ := newTestEngine(t, 5)
	s := newSession()

	response := eng.StartExploration(context.Background(), s, "hello there")

	assert.Contains(t, response, "start")
	assert.Equal(t, session.StateNotStarted, s.State)
	assert.Empty(t, s.Mode)
	assert.Equal(t, 0, s.History.StoryLength())
}

func TestStartExploration_DeterministicSeeds(t *testing.T) {
	// Одинаковый seed должен давать одинаковый промт старта
	buildUserPrompt := func() string {
		eng, gen := newTestEngine(t, 5)
		s := newSession()
		gen.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).Return(storyResponse, nil).Once()
		eng.StartExploration(context.Background(), s, "start")
		return gen.Calls[0].Arguments.String(2)
	}

	first := buildUserPrompt()
	second := buildUserPrompt()
	assert.Equal(t, first, second)
	assert.Contains(t, first, "Adjective:")
}

func TestCustomSetupFlow(t *testing.T) {
	eng, gen := newTestEngine(t, 5)
	s := newSession()

	response := eng.StartExploration(context.Background(), s, "custom")
	assert.Contains(t, response, "Scene:")
	assert.Equal(t, session.StateNotStarted, s.State)
	assert.Equal(t, session.ModeCustom, s.Mode)
	assert.True(t, s.AwaitingCustomSetup())

	// Неверный формат: состояние не меняется, можно повторять без ограничений
	response = eng.HandleCustomSetup(context.Background(), s, "a library with a scholar")
	assert.Contains(t, response, "Invalid format")
	assert.True(t, s.AwaitingCustomSetup())

	response = eng.HandleCustomSetup(context.Background(), s, "just Character: someone")
	assert.Contains(t, response, "Invalid format")
	assert.True(t, s.AwaitingCustomSetup())

	gen.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).Return(storyResponse, nil).Once()

	response = eng.HandleCustomSetup(context.Background(), s, "Scene: a mysterious library, Character: a scholar searching for answers")
	assert.Equal(t, storyResponse, response)
	assert.Equal(t, session.StateInProgress, s.State)
	assert.Equal(t, "a mysterious library", s.CustomScene)
	assert.Equal(t, "a scholar searching for answers", s.CustomCharacter)

	// Запрос старта должен опираться на описание, а не на случайные зерна
	userPrompt := gen.Calls[0].Arguments.String(2)
	assert.Contains(t, userPrompt, "a mysterious library")
	assert.NotContains(t, userPrompt, "Adjective:")
}

func TestHandleCustomSetup_InvalidOutsideAwaitingState(t *testing.T) {
	eng, _ := newTestEngine(t, 5)
	s := newSession()

	response := eng.HandleCustomSetup(context.Background(), s, "Scene: x, Character: y")
	assert.Contains(t, response, "start")
	assert.Empty(t, s.CustomScene)
}

func TestProcessChoice_RejectsInvalidChoiceWithoutMutation(t *testing.T) {
	eng, gen := newTestEngine(t, 5)
	s := newSession()

	gen.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).Return(storyResponse, nil).Once()
	eng.StartExploration(context.Background(), s, "start")

	for _, invalid := range []string{"E", "1", "", "AB", "Z"} {
		response := eng.ProcessChoice(context.Background(), s, invalid, "")
		assert.Contains(t, response, "A, B, C or D")
		assert.Empty(t, s.Choices)
		assert.Equal(t, 0, s.CurrentChapter)
		assert.Equal(t, 0, s.History.InteractionLength())
	}
}

func TestProcessChoice_CaseInsensitiveNormalizedToUpper(t *testing.T) {
	eng, gen := newTestEngine(t, 5)
	s := newSession()

	gen.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).Return(storyResponse, nil).Times(2)
	eng.StartExploration(context.Background(), s, "start")

	eng.ProcessChoice(context.Background(), s, " b ", "climb the tree")

	assert.Equal(t, []string{"B"}, s.Choices)
	assert.Equal(t, 1, s.CurrentChapter)
}

func TestProcessChoice_BeforeStartReprompts(t *testing.T) {
	eng, _ := newTestEngine(t, 5)
	s := newSession()

	response := eng.ProcessChoice(context.Background(), s, "A", "")
	assert.Contains(t, response, "start")
	assert.Empty(t, s.Choices)
}

func TestFullWalkthrough_FiveChapters(t *testing.T) {
	eng, gen := newTestEngine(t, 5)
	s := newSession()

	// 1 старт + 5 глав + 1 финал = 7 вызовов генерации
	gen.On("GenerateText", mock.Anything, mock.Anything, mock.MatchedBy(func(p string) bool {
		return !strings.Contains(p, "soulmate type analysis")
	})).Return(storyResponse, nil).Times(6)
	gen.On("GenerateText", mock.Anything, mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "soulmate type analysis")
	})).Return(endingResponse, nil).Once()

	eng.StartExploration(context.Background(), s, "start")

	choices := []string{"A", "B", "C", "D", "A"}
	var finalResponse string
	for i, choice := range choices {
		finalResponse = eng.ProcessChoice(context.Background(), s, choice, "")
		if i < len(choices)-1 {
			assert.Equal(t, session.StateInProgress, s.State, "chapter %d", i+1)
		}
	}

	assert.Equal(t, session.StateEnded, s.State)
	assert.Equal(t, choices, s.Choices)
	assert.Equal(t, 5, s.CurrentChapter)

	// Финальный ответ — продолжение и анализ, разделенные пустой строкой
	parts := strings.SplitN(finalResponse, "\n\n", 2)
	assert.Len(t, parts, 2)
	assert.Contains(t, parts[1], "Soulmate Type Analysis")

	// Промт финала содержит полную (неусеченную) историю выборов
	endingCall := gen.Calls[len(gen.Calls)-1]
	assert.Contains(t, endingCall.Arguments.String(2), "[A B C D A]")

	// Резюме обновлено после финала
	assert.Contains(t, s.History.Summary(), "final analysis complete")

	// После финала выборы больше не принимаются
	response := eng.ProcessChoice(context.Background(), s, "A", "")
	assert.Contains(t, response, "ended")
	assert.Equal(t, choices, s.Choices)
}

func TestProcessChoice_FallbackOnGenerationFailure(t *testing.T) {
	eng, gen := newTestEngine(t, 5)
	s := newSession()

	gen.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).Return(storyResponse, nil).Once()
	eng.StartExploration(context.Background(), s, "start")

	// Все попытки (maxRetries=2 -> 3 вызова) проваливаются
	failure := errors.New("rate limited")
	gen.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).Return("", failure).Times(3)

	response := eng.ProcessChoice(context.Background(), s, "A", "")

	// Пользователь получает связный запасной текст, а не ошибку
	assert.NotContains(t, response, "rate limited")
	assert.NotEmpty(t, response)

	// Состояние продвигается так, как если бы вызов удался
	assert.Equal(t, 1, s.CurrentChapter)
	assert.Equal(t, []string{"A"}, s.Choices)
	assert.Equal(t, 2, s.History.StoryLength())
	assert.Equal(t, session.StateInProgress, s.State)
}

func TestEndingFallbackOnGenerationFailure(t *testing.T) {
	eng, gen := newTestEngine(t, 1)
	s := newSession()

	gen.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).Return(storyResponse, nil).Once()
	eng.StartExploration(context.Background(), s, "start")

	// Глава генерируется, финал — нет (3 неудачных попытки)
	gen.On("GenerateText", mock.Anything, mock.Anything, mock.MatchedBy(func(p string) bool {
		return !strings.Contains(p, "soulmate type analysis")
	})).Return(storyResponse, nil).Once()
	gen.On("GenerateText", mock.Anything, mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "soulmate type analysis")
	})).Return("", errors.New("upstream down")).Times(3)

	response := eng.ProcessChoice(context.Background(), s, "D", "")

	assert.Equal(t, session.StateEnded, s.State)
	assert.Contains(t, response, "Soulmate Type Analysis")
	assert.NotContains(t, response, "upstream down")
}

func TestResetAfterEnding_NoLeakageIntoNewSession(t *testing.T) {
	eng, gen := newTestEngine(t, 2)
	s := newSession()

	gen.On("GenerateText", mock.Anything, mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "soulmate type analysis")
	})).Return(endingResponse, nil).Once()
	gen.On("GenerateText", mock.Anything, mock.Anything, mock.MatchedBy(func(p string) bool {
		return !strings.Contains(p, "soulmate type analysis")
	})).Return(storyResponse, nil).Times(4)

	eng.StartExploration(context.Background(), s, "start")
	eng.ProcessChoice(context.Background(), s, "A", "")
	eng.ProcessChoice(context.Background(), s, "B", "")
	assert.Equal(t, session.StateEnded, s.State)

	eng.ResetSession(s)

	assert.Equal(t, session.StateNotStarted, s.State)
	assert.Empty(t, s.Choices)
	assert.Zero(t, s.CurrentChapter)
	assert.Equal(t, history.NotStartedSentinel, s.History.OptimizedContext())

	// Новый старт не должен видеть прошлую историю в системном промте
	eng.StartExploration(context.Background(), s, "start")
	lastCall := gen.Calls[len(gen.Calls)-1]
	assert.Contains(t, lastCall.Arguments.String(1), history.NotStartedSentinel)
	assert.Empty(t, s.Choices)
}

func TestSessionInfoSnapshot(t *testing.T) {
	eng, gen := newTestEngine(t, 5)
	s := newSession()

	gen.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).Return(storyResponse, nil).Times(2)
	eng.StartExploration(context.Background(), s, "start")
	eng.ProcessChoice(context.Background(), s, "C", "call out")

	info := eng.SessionInfo(s)

	assert.Equal(t, 1, info.CurrentChapter)
	assert.Equal(t, 5, info.TotalChapters)
	assert.Equal(t, []string{"C"}, info.Choices)
	assert.Equal(t, session.ModeRandom, info.Mode)
	assert.Equal(t, 2, info.StoryHistoryLength)
	assert.Equal(t, 1, info.InteractionLength)
}

func TestStoryStateExtraction(t *testing.T) {
	eng, gen := newTestEngine(t, 5)
	s := newSession()

	forestStory := "You wander through a silent forest at dawn, drawn by a distant mystery.\n\nA. Go\nB. Stay\nC. Look\nD. Wait"
	gen.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).Return(forestStory, nil).Once()

	eng.StartExploration(context.Background(), s, "start")

	assert.Equal(t, "forest", s.Location)
	assert.Equal(t, "dawn", s.TimeOfDay)
	assert.Equal(t, "mystery", s.Theme)
}
