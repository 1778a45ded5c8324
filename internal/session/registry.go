package session

import (
	"sync"

	"go.uber.org/zap"
)

// Registry — явное хранилище сессий с операциями create/get/evict.
// Управляет жизненным циклом записей; владение мутируемым состоянием
// каждой сессии остается за ней самой (см. Session.Lock).
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	historyMaxLength int
	summaryMaxLength int
	logger           *zap.Logger
}

// NewRegistry создает пустой реестр сессий.
func NewRegistry(historyMaxLength, summaryMaxLength int, logger *zap.Logger) *Registry {
	return &Registry{
		sessions:         make(map[string]*Session),
		historyMaxLength: historyMaxLength,
		summaryMaxLength: summaryMaxLength,
		logger:           logger.Named("SessionRegistry"),
	}
}

// GetOrCreate возвращает сессию по ключу, создавая ее при необходимости.
// Второе значение — true, если сессия была создана этим вызовом.
func (r *Registry) GetOrCreate(key string) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[key]
	r.mu.RUnlock()
	if ok {
		return s, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Другая горутина могла создать сессию между блокировками
	if s, ok := r.sessions[key]; ok {
		return s, false
	}

	s = New(key, r.historyMaxLength, r.summaryMaxLength)
	r.sessions[key] = s
	r.logger.Info("Создана новая сессия", zap.String("key", key))
	return s, true
}

// Get возвращает сессию по ключу, если она есть.
func (r *Registry) Get(key string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[key]
	return s, ok
}

// Evict удаляет запись сессии из реестра.
func (r *Registry) Evict(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[key]; ok {
		delete(r.sessions, key)
		r.logger.Info("Сессия удалена из реестра", zap.String("key", key))
	}
}

// Len возвращает число активных сессий.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
