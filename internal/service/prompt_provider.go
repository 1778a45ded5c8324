package service

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Имена файлов промтов в каталоге PromptsDir.
var promptFiles = map[string]string{
	"role":       "soul_explorer_role.md",
	"object":     "soul_explorer_object.md",
	"skill":      "soul_explorer_skill.md",
	"constraint": "soul_explorer_constraint.md",
	"workflow":   "soul_explorer_workflow.md",
}

// PromptProvider загружает файлы промтов с диска и кэширует их в памяти.
type PromptProvider struct {
	cacheLock sync.RWMutex
	cacheMap  map[string]string
	logger    *zap.Logger
}

// NewPromptProvider создает провайдер промтов.
func NewPromptProvider(logger *zap.Logger) *PromptProvider {
	return &PromptProvider{
		cacheMap: make(map[string]string),
		logger:   logger.Named("PromptProvider"),
	}
}

// LoadInitialPrompts загружает все промты из каталога в кэш.
// Вызывается один раз при старте. Отсутствующий файл не фатален:
// соответствующая секция системного промта останется пустой.
func (p *PromptProvider) LoadInitialPrompts(dir string) error {
	p.cacheLock.Lock()
	defer p.cacheLock.Unlock()

	for key, filename := range promptFiles {
		path := filepath.Join(dir, filename)
		content, err := os.ReadFile(path)
		if err != nil {
			p.logger.Warn("Файл промта не найден, секция будет пустой",
				zap.String("key", key),
				zap.String("path", path),
				zap.Error(err))
			p.cacheMap[key] = ""
			continue
		}
		p.cacheMap[key] = string(content)
		p.logger.Info("Промт загружен",
			zap.String("key", key),
			zap.Int("bytes", len(content)))
	}

	return nil
}

// Get возвращает содержимое промта по ключу (пустую строку, если его нет).
func (p *PromptProvider) Get(key string) string {
	p.cacheLock.RLock()
	defer p.cacheLock.RUnlock()
	return p.cacheMap[key]
}
