package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Compile-time check to ensure postgresResultRepository implements ResultRepository
var _ ResultRepository = (*postgresResultRepository)(nil)

// postgresResultRepository реализует ResultRepository для PostgreSQL.
type postgresResultRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresResultRepository создает новый экземпляр репозитория для PostgreSQL.
func NewPostgresResultRepository(db *pgxpool.Pool, logger *zap.Logger) ResultRepository {
	return &postgresResultRepository{
		db:     db,
		logger: logger.Named("PostgresResultRepo"),
	}
}

// EnsureSchema создает таблицу архива, если ее еще нет. Вызывается при старте.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	query := `
        CREATE TABLE IF NOT EXISTS exploration_results (
            id UUID PRIMARY KEY,
            session_key TEXT NOT NULL,
            mode TEXT NOT NULL,
            choices TEXT[] NOT NULL,
            chapters_played INT NOT NULL,
            ending TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL,
            completed_at TIMESTAMPTZ NOT NULL
        );
        CREATE INDEX IF NOT EXISTS idx_exploration_results_session_key
            ON exploration_results (session_key);
    `
	if _, err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("ошибка создания схемы exploration_results: %w", err)
	}
	return nil
}

// Save сохраняет завершенное исследование в базу данных.
func (r *postgresResultRepository) Save(ctx context.Context, result *ExplorationResult) error {
	query := `
        INSERT INTO exploration_results
        (id, session_key, mode, choices, chapters_played, ending, created_at, completed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (id) DO UPDATE SET
            session_key = EXCLUDED.session_key,
            mode = EXCLUDED.mode,
            choices = EXCLUDED.choices,
            chapters_played = EXCLUDED.chapters_played,
            ending = EXCLUDED.ending,
            completed_at = EXCLUDED.completed_at;
    `

	_, err := r.db.Exec(ctx, query,
		result.ID,
		result.SessionKey,
		result.Mode,
		result.Choices,
		result.ChaptersPlayed,
		result.Ending,
		result.CreatedAt,
		result.CompletedAt,
	)
	if err != nil {
		r.logger.Error("Ошибка сохранения результата исследования в БД",
			zap.String("sessionKey", result.SessionKey), zap.Error(err))
		return fmt.Errorf("ошибка сохранения результата '%s' в БД: %w", result.ID, err)
	}

	r.logger.Info("Результат исследования сохранен в архив",
		zap.String("sessionKey", result.SessionKey),
		zap.Strings("choices", result.Choices))
	return nil
}
