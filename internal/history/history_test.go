package history_test

import (
	"fmt"
	"strings"
	"testing"

	"soul-server/internal/history"

	"github.com/stretchr/testify/assert"
)

func TestManager_TrimsToLastFiveEntries(t *testing.T) {
	m := history.NewManager(5, 200)

	for i := 0; i < 12; i++ {
		m.AddStoryEntry(i, fmt.Sprintf("story %d", i))
		m.AddInteractionEntry("A", fmt.Sprintf("choice %d", i), "")
	}

	assert.Equal(t, 5, m.StoryLength())
	assert.Equal(t, 5, m.InteractionLength())

	// Остаются самые свежие записи (FIFO-вытеснение)
	stories := m.StoryEntries()
	assert.Equal(t, 7, stories[0].Chapter)
	assert.Equal(t, 11, stories[4].Chapter)
}

func TestManager_OptimizedContextSentinel(t *testing.T) {
	m := history.NewManager(5, 200)
	assert.Equal(t, history.NotStartedSentinel, m.OptimizedContext())
}

func TestManager_OptimizedContextIsBounded(t *testing.T) {
	m := history.NewManager(5, 200)

	longStory := strings.Repeat("s", 500)
	longChoice := strings.Repeat("c", 300)
	for i := 0; i < 10; i++ {
		m.AddStoryEntry(i, longStory)
		m.AddInteractionEntry("B", longChoice, "")
	}
	m.UpdateSummary(strings.Repeat("x", 1000))

	context := m.OptimizedContext()

	// Резюме усечено до 200 символов
	assert.Contains(t, context, "Story summary: "+strings.Repeat("x", 200))
	assert.NotContains(t, context, strings.Repeat("x", 201))

	// Только 3 последних главы, каждая не длиннее 100 символов + маркер
	assert.Equal(t, 3, strings.Count(context, "Chapter "))
	assert.Contains(t, context, strings.Repeat("s", 100)+"...")
	assert.NotContains(t, context, strings.Repeat("s", 101))

	// Только 2 последних выбора, текст не длиннее 50 символов
	assert.Equal(t, 2, strings.Count(context, "Choice B"))
	assert.NotContains(t, context, strings.Repeat("c", 51))

	// Общая длина ограничена независимо от числа добавленных записей
	assert.Less(t, len(context), 800)
}

func TestManager_OptimizedContextShortEntriesKeptWhole(t *testing.T) {
	m := history.NewManager(5, 200)
	m.AddStoryEntry(1, "a short chapter")

	context := m.OptimizedContext()
	assert.Contains(t, context, "Chapter 1: a short chapter")
	assert.NotContains(t, context, "a short chapter...")
}

func TestManager_OptimizedContextIsPure(t *testing.T) {
	m := history.NewManager(5, 200)
	m.AddStoryEntry(1, "chapter one")
	m.AddInteractionEntry("A", "open the door", "")

	first := m.OptimizedContext()
	second := m.OptimizedContext()
	assert.Equal(t, first, second)
	assert.Equal(t, 1, m.StoryLength())
}

func TestManager_TruncationIsRuneSafe(t *testing.T) {
	m := history.NewManager(5, 200)
	m.AddStoryEntry(1, strings.Repeat("я", 150))

	context := m.OptimizedContext()
	assert.Contains(t, context, strings.Repeat("я", 100)+"...")
	// Усечение не должно резать многобайтовые символы
	assert.True(t, strings.HasSuffix(strings.TrimSuffix(context, "..."), "я"))
}

func TestManager_ClearResetsEverything(t *testing.T) {
	m := history.NewManager(5, 200)
	m.AddStoryEntry(1, "chapter")
	m.AddInteractionEntry("C", "choice", "")
	m.UpdateSummary("summary")

	m.Clear()

	assert.Equal(t, 0, m.StoryLength())
	assert.Equal(t, 0, m.InteractionLength())
	assert.Equal(t, history.NotStartedSentinel, m.OptimizedContext())
}

func TestManager_RestoreRoundTrip(t *testing.T) {
	m := history.NewManager(5, 200)
	m.AddStoryEntry(1, "chapter one")
	m.AddInteractionEntry("D", "wait and observe", "")
	m.UpdateSummary("the journey so far")

	restored := history.NewManager(5, 200)
	restored.Restore(m.StoryEntries(), m.InteractionEntries(), m.Summary())

	assert.Equal(t, m.OptimizedContext(), restored.OptimizedContext())
}
