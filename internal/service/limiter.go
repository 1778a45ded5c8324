package service

import (
	"context"
	"sync"
	"time"

	"soul-server/pkg/ai"

	"go.uber.org/zap"
)

// RateLimiter — скользящее окно запросов, общее для всех сессий процесса.
// Генеративный API ограничен глобально, а не по-сессионно, поэтому контроль
// пропускной способности живет над ядром движка, а не внутри него.
type RateLimiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	requests    []time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter создает лимитер: не более maxRequests за window.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Acquire блокирует вызывающего, пока в окне не освободится слот.
// Ожидание кооперативное и прерывается отменой контекста.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()

		// Выбрасываем запросы, вышедшие из окна
		cutoff := now.Add(-l.window)
		kept := l.requests[:0]
		for _, t := range l.requests {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		l.requests = kept

		if len(l.requests) < l.maxRequests {
			l.requests = append(l.requests, now)
			l.mu.Unlock()
			return nil
		}

		waitTime := l.requests[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		if waitTime <= 0 {
			continue
		}
		if err := l.sleep(ctx, waitTime); err != nil {
			return err
		}
	}
}

// Pending возвращает число запросов в текущем окне.
func (l *RateLimiter) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.window)
	count := 0
	for _, t := range l.requests {
		if t.After(cutoff) {
			count++
		}
	}
	return count
}

// limitedGenerator оборачивает ai.Generator общепроцессными лимитерами:
// окно в минуту и суточное окно, как у вариантов деплоя с ограничением квоты.
type limitedGenerator struct {
	inner        ai.Generator
	minuteWindow *RateLimiter
	dailyWindow  *RateLimiter
	logger       *zap.Logger
}

// NewLimitedGenerator возвращает генератор с контролем пропускной способности.
func NewLimitedGenerator(inner ai.Generator, minuteWindow, dailyWindow *RateLimiter, logger *zap.Logger) ai.Generator {
	return &limitedGenerator{
		inner:        inner,
		minuteWindow: minuteWindow,
		dailyWindow:  dailyWindow,
		logger:       logger.Named("LimitedGenerator"),
	}
}

// GenerateText ждет свободный слот в обоих окнах и делегирует генерацию.
func (g *limitedGenerator) GenerateText(ctx context.Context, systemPrompt, userInput string) (string, error) {
	if err := g.dailyWindow.Acquire(ctx); err != nil {
		return "", err
	}
	if err := g.minuteWindow.Acquire(ctx); err != nil {
		return "", err
	}
	return g.inner.GenerateText(ctx, systemPrompt, userInput)
}
