package engine

import (
	"fmt"
	"strings"
	"sync"

	"soul-server/internal/session"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// Ключи файлов промтов, загружаемых провайдером.
const (
	PromptRole       = "role"
	PromptObject     = "object"
	PromptSkill      = "skill"
	PromptConstraint = "constraint"
	PromptWorkflow   = "workflow"
)

// PromptSource отдает содержимое именованного промта (пустая строка, если
// файл не был загружен).
type PromptSource interface {
	Get(key string) string
}

// Пулы лексических зерен для случайного старта истории.
var (
	seedAdjectives = []string{
		"mysterious", "warm", "cold", "romantic", "tense", "calm",
		"bustling", "silent", "bright", "dim", "ancient", "modern",
		"dreamlike", "realistic", "abstract", "tangible", "intricate", "simple",
	}
	seedNouns = []string{
		"soul", "heart", "dream", "reality", "time", "space", "memory", "future",
		"past", "present", "love", "friendship", "kinship", "freedom", "restraint", "hope",
		"despair", "courage", "fear", "wisdom", "ignorance", "kindness", "darkness",
	}
	seedVerbs = []string{
		"traverse", "drift", "run", "wander", "ponder", "feel", "observe", "listen",
		"touch", "embrace", "part", "meet", "grow", "change", "choose", "decide",
		"explore", "discover", "create", "destroy", "heal", "wound",
	}
)

var (
	tokenEncoderOnce sync.Once
	tokenEncoder     *tiktoken.Tiktoken
)

// estimateTokens оценивает число токенов в промте для отладочного лога.
// Оценка приблизительная; при недоступном кодировщике возвращает -1.
func estimateTokens(text string) int {
	tokenEncoderOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			tokenEncoder = enc
		}
	})
	if tokenEncoder == nil {
		return -1
	}
	return len(tokenEncoder.Encode(text, nil, nil))
}

// randomSeeds выбирает три лексических зерна для случайного старта.
func (e *Engine) randomSeeds() (adjective, noun, verb string) {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	adjective = seedAdjectives[e.rng.Intn(len(seedAdjectives))]
	noun = seedNouns[e.rng.Intn(len(seedNouns))]
	verb = seedVerbs[e.rng.Intn(len(seedVerbs))]
	return adjective, noun, verb
}

// buildSystemPrompt собирает системный промт: инструкции из файлов, жесткие
// правила формата и блок текущего состояния со сжатым контекстом. Полная
// история сюда намеренно не попадает — только усеченный контекст, поэтому
// размер промта примерно постоянен независимо от длины истории.
func (e *Engine) buildSystemPrompt(s *session.Session) string {
	context := s.History.OptimizedContext()

	var sb strings.Builder
	sb.WriteString("You must answer and interact with the user in English only.\n\n")

	for _, key := range []string{PromptRole, PromptObject, PromptSkill, PromptConstraint, PromptWorkflow} {
		if content := e.prompts.Get(key); content != "" {
			sb.WriteString(content)
			sb.WriteString("\n\n")
		}
	}

	sb.WriteString("Important Rules:\n")
	sb.WriteString("1. Each story must be within 100-150 characters.\n")
	sb.WriteString("2. Provide A, B, C, D four options.\n")
	sb.WriteString("3. Strictly advance the story based on user choices.\n")
	fmt.Fprintf(&sb, "4. Maximum %d chapters.\n", e.totalChapters)
	sb.WriteString("5. Perform soulmate type analysis at the end.\n")
	sb.WriteString("6. Do not answer questions about yourself or the process.\n\n")

	sb.WriteString("Current State:\n")
	fmt.Fprintf(&sb, "- Total Chapters: %d\n", e.totalChapters)
	fmt.Fprintf(&sb, "- Current Chapter: %d\n", s.CurrentChapter)
	fmt.Fprintf(&sb, "- User Choice History: %v\n", s.Choices)
	fmt.Fprintf(&sb, "- Custom Mode: %v\n", s.Mode == session.ModeCustom)
	if s.Location != "" || s.TimeOfDay != "" || s.Theme != "" {
		fmt.Fprintf(&sb, "- Story State: location=%s, time=%s, theme=%s\n", s.Location, s.TimeOfDay, s.Theme)
	}
	fmt.Fprintf(&sb, "- Story Context: %s\n", context)

	prompt := sb.String()
	e.logger.Debug("Системный промт собран",
		zap.String("sessionKey", s.Key),
		zap.Int("bytes", len(prompt)),
		zap.Int("estimatedTokens", estimateTokens(prompt)))
	return prompt
}

// buildOpeningPrompt строит пользовательский промт для случайного старта.
func buildOpeningPrompt(adjective, noun, verb string) string {
	return fmt.Sprintf(`Please generate a soul exploration story beginning based on the following elements:
- Adjective: %s
- Noun: %s
- Verb: %s

Requirements:
1. Story beginning must be within 100-150 characters.
2. Provide A, B, C, D four options.
3. Options must reflect different personality traits.
4. Leave room for development in subsequent chapters.

Format:
[Story Content]

A. [Option A]
B. [Option B]
C. [Option C]
D. [Option D]`, adjective, noun, verb)
}

// buildCustomOpeningPrompt строит промт старта из описания сцены и персонажа.
func buildCustomOpeningPrompt(scene, character string) string {
	return fmt.Sprintf(`Please generate a soul exploration story beginning based on the following setup:
- Scene: %s
- Character: %s

Requirements:
1. Story beginning must be within 100-150 characters.
2. Provide A, B, C, D four options.
3. Options must reflect different personality traits.
4. Leave room for development in subsequent chapters.

Format:
[Story Content]

A. [Option A]
B. [Option B]
C. [Option C]
D. [Option D]`, scene, character)
}

// buildChapterPrompt строит промт следующей главы по выбору пользователя.
func buildChapterPrompt(chapter int, choice, choiceText string) string {
	return fmt.Sprintf(`Based on the user's choice '%s' and option text '%s', please generate the story content for Chapter %d.

Requirements:
1. Story content must be within 100-150 characters.
2. Provide A, B, C, D four options.
3. Advance the story based on user choices.
4. Maintain story coherence and attractiveness.

Format:
[Story Content]

A. [Option A]
B. [Option B]
C. [Option C]
D. [Option D]`, choice, choiceText, chapter)
}

// buildEndingPrompt строит промт финального анализа. Сюда встраивается
// полная последовательность выборов без усечения: она мала и целиком
// определяет классификацию.
func buildEndingPrompt(choices []string) string {
	return fmt.Sprintf(`Based on the user's complete choice history %v, please provide a soulmate type analysis.

Analyze the user's personality traits and choice patterns, and determine their soulmate type:
- Explorer: likes adventure and new things
- Logical: values logic and thinking
- Emotional: values feelings and intuition
- Destiny: believes in fate and destiny

Format:
After this soul exploration journey, you have discovered your true thoughts deep inside. Each choice reflects your personality traits and values.
---
**Soulmate Type Analysis**
[Detailed analysis, including type judgment and explanation]

IMPORTANT: Please output ONLY in English. Do NOT output any options or prompts.`, choices)
}
