package retry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Operation — одна попытка выполнить запрос, возвращающий текст.
type Operation func(ctx context.Context) (string, error)

// Executor выполняет операцию с повторными попытками и экспоненциальной задержкой.
// Не хранит состояние между вызовами Execute, поэтому безопасен для
// одновременного использования из разных сессий.
type Executor struct {
	baseDelay  time.Duration
	maxDelay   time.Duration
	maxRetries int
	logger     *zap.Logger
}

// New создает Executor с заданными параметрами задержки.
func New(baseDelay, maxDelay time.Duration, maxRetries int, logger *zap.Logger) *Executor {
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Executor{
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		maxRetries: maxRetries,
		logger:     logger.Named("BackoffExecutor"),
	}
}

// Delay возвращает задержку перед повтором после попытки attempt (считая с нуля):
// min(baseDelay * 2^attempt, maxDelay).
func (e *Executor) Delay(attempt int) time.Duration {
	delay := e.baseDelay << uint(attempt)
	// Сдвиг может переполниться при больших attempt, тогда delay станет неположительным.
	if delay <= 0 || delay > e.maxDelay {
		return e.maxDelay
	}
	return delay
}

// Execute выполняет op до maxRetries+1 раз. Между неудачными попытками
// ожидает экспоненциально растущую задержку. Последняя ошибка возвращается
// без изменений — подстановка значений по умолчанию остается на совести
// вызывающего кода. Отмена контекста прерывает ожидание.
func (e *Executor) Execute(ctx context.Context, op Operation) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == e.maxRetries {
			e.logger.Error("Все попытки исчерпаны",
				zap.Int("attempts", attempt+1),
				zap.Error(lastErr))
			break
		}

		delay := e.Delay(attempt)
		e.logger.Warn("Попытка не удалась, ожидание перед повтором",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	return "", lastErr
}
