package session_test

import (
	"sync"
	"testing"

	"soul-server/internal/session"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRegistry_GetOrCreate(t *testing.T) {
	r := session.NewRegistry(5, 200, zap.NewNop())

	s1, created := r.GetOrCreate("user-1")
	assert.True(t, created)
	assert.Equal(t, session.StateNotStarted, s1.State)

	s2, created := r.GetOrCreate("user-1")
	assert.False(t, created)
	assert.Same(t, s1, s2)

	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Evict(t *testing.T) {
	r := session.NewRegistry(5, 200, zap.NewNop())

	r.GetOrCreate("user-1")
	r.Evict("user-1")

	_, ok := r.Get("user-1")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())

	// Повторное удаление безопасно
	r.Evict("user-1")
}

func TestRegistry_ConcurrentGetOrCreateYieldsOneSession(t *testing.T) {
	r := session.NewRegistry(5, 200, zap.NewNop())

	const workers = 32
	sessions := make([]*session.Session, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			sessions[i], _ = r.GetOrCreate("same-key")
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		assert.Same(t, sessions[0], sessions[i])
	}
	assert.Equal(t, 1, r.Len())
}

func TestSession_ResetClearsEverything(t *testing.T) {
	s := session.New("user-1", 5, 200)
	s.State = session.StateEnded
	s.Mode = session.ModeCustom
	s.CurrentChapter = 4
	s.Choices = []string{"A", "B"}
	s.ChoiceTexts = []string{"first", "second"}
	s.CustomScene = "a library"
	s.CustomCharacter = "a scholar"
	s.History.AddStoryEntry(1, "chapter text")
	s.History.UpdateSummary("summary")

	s.Reset()

	assert.Equal(t, session.StateNotStarted, s.State)
	assert.Empty(t, s.Choices)
	assert.Empty(t, s.ChoiceTexts)
	assert.Zero(t, s.CurrentChapter)
	assert.Empty(t, s.CustomScene)
	assert.Equal(t, 0, s.History.StoryLength())
}

func TestSession_SnapshotRestoreRoundTrip(t *testing.T) {
	s := session.New("user-1", 5, 200)
	s.State = session.StateInProgress
	s.Mode = session.ModeRandom
	s.CurrentChapter = 2
	s.Choices = []string{"A", "C"}
	s.ChoiceTexts = []string{"open", "ask"}
	s.History.AddStoryEntry(1, "first chapter")
	s.History.AddInteractionEntry("A", "open", "")
	s.History.UpdateSummary("so far")

	snap := s.Snapshot()

	restored := session.New("user-1", 5, 200)
	restored.Restore(snap)

	assert.Equal(t, s.State, restored.State)
	assert.Equal(t, s.CurrentChapter, restored.CurrentChapter)
	assert.Equal(t, s.Choices, restored.Choices)
	assert.Equal(t, s.History.OptimizedContext(), restored.History.OptimizedContext())
}

func TestSession_InfoProjection(t *testing.T) {
	s := session.New("user-1", 5, 200)
	s.State = session.StateInProgress
	s.Mode = session.ModeRandom
	s.CurrentChapter = 1
	s.Choices = []string{"B"}
	s.History.AddStoryEntry(0, "opening")
	s.History.AddInteractionEntry("B", "text", "")

	info := s.Info(5)

	assert.Equal(t, 1, info.CurrentChapter)
	assert.Equal(t, 5, info.TotalChapters)
	assert.Equal(t, []string{"B"}, info.Choices)
	assert.Equal(t, 1, info.StoryHistoryLength)
	assert.Equal(t, 1, info.InteractionLength)

	// Проекция не должна делить срез с сессией
	info.Choices[0] = "Z"
	assert.Equal(t, "B", s.Choices[0])
}
