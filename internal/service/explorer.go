package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"soul-server/internal/engine"
	"soul-server/internal/repository"
	"soul-server/internal/session"
	"soul-server/pkg/ai"
)

// Reply — ответ сервиса на любое действие пользователя. Message содержит
// полный текст ответа, StoryText и Options — его разобранные части
// (у подсказок и сообщений об ошибке формата Options пуст).
type Reply struct {
	Message   string       `json:"message"`
	StoryText string       `json:"storyText"`
	Options   []string     `json:"options,omitempty"`
	Session   session.Info `json:"session"`
}

// ExplorerService — оркестратор поверх ядра движка: реестр сессий,
// сериализация вызовов по одной сессии, снапшоты в Redis после каждой
// мутации и архивирование завершенных исследований.
type ExplorerService struct {
	registry  *session.Registry
	engine    *engine.Engine
	snapshots repository.SnapshotRepository
	results   repository.ResultRepository
	notifier  Notifier
	logger    *zap.Logger
}

// NewExplorerService создает сервис исследований.
func NewExplorerService(
	registry *session.Registry,
	eng *engine.Engine,
	snapshots repository.SnapshotRepository,
	results repository.ResultRepository,
	notifier Notifier,
	logger *zap.Logger,
) *ExplorerService {
	return &ExplorerService{
		registry:  registry,
		engine:    eng,
		snapshots: snapshots,
		results:   results,
		notifier:  notifier,
		logger:    logger.Named("ExplorerService"),
	}
}

// Start обрабатывает стартовый ввод сессии ('start' или 'custom').
func (svc *ExplorerService) Start(ctx context.Context, key, input string) (Reply, error) {
	s := svc.lockSession(ctx, key)
	defer s.Unlock()

	message := svc.engine.StartExploration(ctx, s, input)
	svc.persist(ctx, s)
	return svc.reply(s, message), nil
}

// CustomSetup принимает описание сцены и персонажа для режима custom.
func (svc *ExplorerService) CustomSetup(ctx context.Context, key, input string) (Reply, error) {
	s := svc.lockSession(ctx, key)
	defer s.Unlock()

	message := svc.engine.HandleCustomSetup(ctx, s, input)
	svc.persist(ctx, s)
	return svc.reply(s, message), nil
}

// Choice обрабатывает выбор пользователя. Если этим выбором исследование
// завершилось, результат архивируется и публикуется уведомление; их сбои
// логируются, но пользователю не возвращаются.
func (svc *ExplorerService) Choice(ctx context.Context, key, choice, choiceText string) (Reply, error) {
	s := svc.lockSession(ctx, key)
	defer s.Unlock()

	wasInProgress := s.State == session.StateInProgress
	message := svc.engine.ProcessChoice(ctx, s, choice, choiceText)
	svc.persist(ctx, s)

	if wasInProgress && s.State == session.StateEnded {
		svc.archive(ctx, s, endingOf(s, message))
	}
	return svc.reply(s, message), nil
}

// Reset очищает сессию из любого состояния.
func (svc *ExplorerService) Reset(ctx context.Context, key string) (Reply, error) {
	s := svc.lockSession(ctx, key)
	defer s.Unlock()

	svc.engine.ResetSession(s)
	svc.persist(ctx, s)

	reply := svc.reply(s, "Session reset. Send 'start' to begin a new exploration.")
	return reply, nil
}

// Info возвращает снимок сессии без мутаций.
func (svc *ExplorerService) Info(ctx context.Context, key string) (session.Info, error) {
	s := svc.lockSession(ctx, key)
	defer s.Unlock()
	return svc.engine.SessionInfo(s), nil
}

// lockSession достает сессию из реестра и блокирует ее. Свежесозданная
// сессия восстанавливается из сохраненного снапшота до первой операции.
func (svc *ExplorerService) lockSession(ctx context.Context, key string) *session.Session {
	s, created := svc.registry.GetOrCreate(key)
	s.Lock()
	if !created {
		return s
	}

	snap, found, err := svc.snapshots.Load(ctx, key)
	if err != nil {
		svc.logger.Warn("Не удалось загрузить снапшот сессии",
			zap.String("sessionKey", key), zap.Error(err))
		return s
	}
	if found {
		s.Restore(snap)
		svc.logger.Info("Сессия восстановлена из снапшота",
			zap.String("sessionKey", key),
			zap.String("state", string(s.State)),
			zap.Int("currentChapter", s.CurrentChapter))
	}
	return s
}

// persist сохраняет снапшот после мутации. Ошибка хранилища не блокирует
// ответ пользователю.
func (svc *ExplorerService) persist(ctx context.Context, s *session.Session) {
	if err := svc.snapshots.Save(ctx, s.Snapshot()); err != nil {
		svc.logger.Error("Не удалось сохранить снапшот сессии",
			zap.String("sessionKey", s.Key), zap.Error(err))
	}
}

// archive пишет завершенное исследование в архив и публикует уведомление.
func (svc *ExplorerService) archive(ctx context.Context, s *session.Session, ending string) {
	result := &repository.ExplorationResult{
		ID:             uuid.New(),
		SessionKey:     s.Key,
		Mode:           string(s.Mode),
		Choices:        append([]string(nil), s.Choices...),
		ChaptersPlayed: s.CurrentChapter,
		Ending:         ending,
		CreatedAt:      s.CreatedAt,
		CompletedAt:    time.Now().UTC(),
	}
	if err := svc.results.Save(ctx, result); err != nil {
		svc.logger.Error("Не удалось заархивировать результат исследования",
			zap.String("sessionKey", s.Key), zap.Error(err))
	}

	if err := svc.notifier.NotifyCompleted(ctx, s.Snapshot(), ending); err != nil {
		svc.logger.Error("Не удалось опубликовать уведомление о завершении",
			zap.String("sessionKey", s.Key), zap.Error(err))
	}
}

// endingOf отделяет финальный анализ от текста последней главы: ответ
// финального хода склеен из главы и анализа пустой строкой.
func endingOf(s *session.Session, message string) string {
	entries := s.History.StoryEntries()
	if len(entries) == 0 {
		return message
	}
	return strings.TrimPrefix(message, entries[len(entries)-1].Text+"\n\n")
}

// reply собирает ответ с разобранными вариантами выбора.
func (svc *ExplorerService) reply(s *session.Session, message string) Reply {
	storyText, options := ai.ParseStoryResponse(message)
	return Reply{
		Message:   message,
		StoryText: storyText,
		Options:   options,
		Session:   s.Info(svc.engine.TotalChapters()),
	}
}
