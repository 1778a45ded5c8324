package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Счетчик подстановок запасного текста. Пользователь всегда получает
	// ответ, поэтому без этой метрики реальная частота отказов AI была бы
	// неотличима от нормальной работы.
	fallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soul_explorer_fallbacks_total",
			Help: "Total number of fallback texts returned instead of AI output, partitioned by stage.",
		},
		[]string{"stage"},
	)

	explorationsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "soul_explorer_explorations_completed_total",
			Help: "Total number of explorations that reached the ending analysis.",
		},
	)
)

const (
	stageStart   = "start"
	stageChapter = "chapter"
	stageEnding  = "ending"
)
