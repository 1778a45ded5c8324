// Package repository содержит хранилища снапшотов активных сессий (Redis)
// и архив завершенных исследований (PostgreSQL).
package repository

import (
	"context"
	"time"

	"soul-server/internal/session"

	"github.com/google/uuid"
)

// SnapshotRepository хранит сериализованные снапшоты активных сессий,
// чтобы пережить рестарт процесса. Ядро движка о нем не знает: снапшоты
// сохраняет сервисный слой после каждой мутации.
type SnapshotRepository interface {
	Save(ctx context.Context, snapshot session.Snapshot) error
	// Load возвращает снапшот и признак его наличия.
	Load(ctx context.Context, key string) (session.Snapshot, bool, error)
	Delete(ctx context.Context, key string) error
}

// ExplorationResult — завершенное исследование с финальным анализом.
type ExplorationResult struct {
	ID             uuid.UUID
	SessionKey     string
	Mode           string
	Choices        []string
	ChaptersPlayed int
	Ending         string
	CreatedAt      time.Time
	CompletedAt    time.Time
}

// ResultRepository архивирует завершенные исследования.
type ResultRepository interface {
	Save(ctx context.Context, result *ExplorationResult) error
}
