package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"soul-server/internal/session"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const sessionKeyPrefix = "soul_session:"

// Compile-time check to ensure redisSnapshotRepository implements SnapshotRepository
var _ SnapshotRepository = (*redisSnapshotRepository)(nil)

type redisSnapshotRepository struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisSnapshotRepository creates a new Redis-backed SnapshotRepository.
// Снапшоты хранятся как JSON-документы с TTL: брошенные сессии истекают сами.
func NewRedisSnapshotRepository(client *redis.Client, ttl time.Duration, logger *zap.Logger) SnapshotRepository {
	return &redisSnapshotRepository{
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisSnapshotRepo"),
	}
}

func snapshotKey(sessionKey string) string {
	return sessionKeyPrefix + sessionKey
}

// Save сериализует снапшот и записывает его с обновлением TTL.
func (r *redisSnapshotRepository) Save(ctx context.Context, snapshot session.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("ошибка сериализации снапшота сессии '%s': %w", snapshot.Key, err)
	}

	if err := r.client.Set(ctx, snapshotKey(snapshot.Key), data, r.ttl).Err(); err != nil {
		r.logger.Error("Не удалось сохранить снапшот сессии",
			zap.String("key", snapshot.Key), zap.Error(err))
		return fmt.Errorf("ошибка сохранения снапшота сессии '%s': %w", snapshot.Key, err)
	}

	r.logger.Debug("Снапшот сессии сохранен",
		zap.String("key", snapshot.Key),
		zap.Int("bytes", len(data)))
	return nil
}

// Load читает и десериализует снапшот; отсутствие ключа не является ошибкой.
func (r *redisSnapshotRepository) Load(ctx context.Context, key string) (session.Snapshot, bool, error) {
	var snapshot session.Snapshot

	data, err := r.client.Get(ctx, snapshotKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return snapshot, false, nil
	}
	if err != nil {
		return snapshot, false, fmt.Errorf("ошибка чтения снапшота сессии '%s': %w", key, err)
	}

	if err := json.Unmarshal(data, &snapshot); err != nil {
		// Битый снапшот лучше потерять, чем завалить сессию навсегда
		r.logger.Warn("Поврежденный снапшот сессии, игнорируется",
			zap.String("key", key), zap.Error(err))
		return session.Snapshot{}, false, nil
	}

	return snapshot, true, nil
}

// Delete удаляет снапшот сессии.
func (r *redisSnapshotRepository) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, snapshotKey(key)).Err(); err != nil {
		return fmt.Errorf("ошибка удаления снапшота сессии '%s': %w", key, err)
	}
	return nil
}
