// Package ai предоставляет доступ к генеративной модели: клиентов для
// OpenAI-совместимых API и Ollama, а также парсер ответов с вариантами выбора.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

var log = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

// ErrGenerationFailed — ошибка при генерации текста AI.
var ErrGenerationFailed = errors.New("ошибка генерации текста AI")

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soul_explorer_ai_requests_total",
			Help: "Total number of requests to the AI API.",
		},
		[]string{"model", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "soul_explorer_ai_request_duration_seconds",
			Help:    "Histogram of AI API request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)
)

// Generator — абстракция генеративной модели. Одна попытка на вызов:
// повторы с задержкой выполняет вышестоящий retry.Executor.
type Generator interface {
	// GenerateText генерирует текст на основе системного промта и ввода пользователя.
	GenerateText(ctx context.Context, systemPrompt, userInput string) (string, error)
}

// Config содержит конфигурацию для клиента нейросети.
type Config struct {
	Provider string // openai | ollama
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
}

// NewGenerator создает клиент генеративной модели по конфигурации.
func NewGenerator(cfg Config) (Generator, error) {
	if cfg.Model == "" {
		cfg.Model = "deepseek/deepseek-chat"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	switch cfg.Provider {
	case "ollama":
		return newOllamaGenerator(cfg)
	case "openai", "":
		return newOpenAIGenerator(cfg)
	default:
		return nil, fmt.Errorf("неизвестный AI провайдер: %q", cfg.Provider)
	}
}

// --- OpenAI-совместимый клиент (OpenRouter и т.п.) ---

type openAIGenerator struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func newOpenAIGenerator(cfg Config) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("не указан API ключ для OpenAI-совместимого провайдера")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	log.Info().Str("baseURL", clientConfig.BaseURL).Str("model", cfg.Model).Msg("OpenAI клиент создан")

	return &openAIGenerator{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

// GenerateText отправляет один запрос chat completion.
func (g *openAIGenerator) GenerateText(ctx context.Context, systemPrompt, userInput string) (string, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": g.model, "status": "error"}).Inc()
		return "", fmt.Errorf("%w: системный промт пуст", ErrGenerationFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if userInput != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: userInput,
		})
	}

	startTime := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: 0.8,
		MaxTokens:   1500,
		TopP:        0.95,
	})
	duration := time.Since(startTime)

	if err != nil {
		log.Error().Err(err).Dur("duration", duration).Msg("Ошибка от AI API")
		aiRequestsTotal.With(prometheus.Labels{"model": g.model, "status": "error"}).Inc()
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		log.Warn().Dur("duration", duration).Msg("AI API вернул пустой ответ")
		aiRequestsTotal.With(prometheus.Labels{"model": g.model, "status": "error_empty_response"}).Inc()
		return "", fmt.Errorf("%w: получен пустой ответ", ErrGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": g.model, "status": "success"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": g.model}).Observe(duration.Seconds())

	generatedText := strings.TrimSpace(resp.Choices[0].Message.Content)
	log.Info().
		Str("model", g.model).
		Dur("duration", duration).
		Int("length", len(generatedText)).
		Msg("Получен ответ от AI API")

	return generatedText, nil
}

// --- Ollama клиент ---

type ollamaGenerator struct {
	client  *api.Client
	model   string
	timeout time.Duration
}

func newOllamaGenerator(cfg Config) (Generator, error) {
	// api.NewClient требует URL без суффикса /v1
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/v1")
	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга Ollama Base URL '%s': %w", baseURL, err)
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	log.Info().Str("baseURL", baseURL).Str("model", cfg.Model).Msg("Ollama клиент создан")

	return &ollamaGenerator{
		client:  api.NewClient(parsedURL, httpClient),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

// GenerateText отправляет один chat-запрос к Ollama без стриминга.
func (g *ollamaGenerator) GenerateText(ctx context.Context, systemPrompt, userInput string) (string, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": g.model, "status": "error"}).Inc()
		return "", fmt.Errorf("%w: системный промт пуст", ErrGenerationFailed)
	}

	messages := []api.Message{
		{Role: "system", Content: systemPrompt},
	}
	if userInput != "" {
		messages = append(messages, api.Message{Role: "user", Content: userInput})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    g.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]interface{}{
			"temperature": 0.8,
			"top_p":       0.95,
		},
	}

	requestCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	startTime := time.Now()
	var resp api.ChatResponse
	err := g.client.Chat(requestCtx, req, func(r api.ChatResponse) error {
		resp = r // Сохраняем последний (полный) ответ
		return nil
	})
	duration := time.Since(startTime)

	if err != nil {
		log.Error().Err(err).Dur("duration", duration).Msg("Ошибка от Ollama API")
		aiRequestsTotal.With(prometheus.Labels{"model": g.model, "status": "error"}).Inc()
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	if strings.TrimSpace(resp.Message.Content) == "" {
		log.Warn().Dur("duration", duration).Msg("Ollama API вернул пустой ответ")
		aiRequestsTotal.With(prometheus.Labels{"model": g.model, "status": "error_empty_response"}).Inc()
		return "", fmt.Errorf("%w: получен пустой ответ", ErrGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": g.model, "status": "success"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": g.model}).Observe(duration.Seconds())

	return strings.TrimSpace(resp.Message.Content), nil
}
