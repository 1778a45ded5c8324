package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"soul-server/internal/session"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// CompletedPayload — сообщение о завершенном исследовании для внешних
// потребителей (аналитика, уведомления). Доставка best-effort.
type CompletedPayload struct {
	SessionKey     string    `json:"sessionKey"`
	Mode           string    `json:"mode"`
	Choices        []string  `json:"choices"`
	ChaptersPlayed int       `json:"chaptersPlayed"`
	Ending         string    `json:"ending"`
	CompletedAt    time.Time `json:"completedAt"`
}

// Notifier определяет интерфейс для отправки уведомлений о завершении сессии.
type Notifier interface {
	NotifyCompleted(ctx context.Context, snapshot session.Snapshot, ending string) error
}

// rabbitMQNotifier реализует Notifier для отправки сообщений в RabbitMQ.
type rabbitMQNotifier struct {
	channel   *amqp.Channel
	queueName string
	logger    *zap.Logger
}

// NewRabbitMQNotifier создает Notifier для RabbitMQ и объявляет очередь.
// Предполагается, что канал уже открыт и будет закрыт в main.
func NewRabbitMQNotifier(ch *amqp.Channel, queueName string, logger *zap.Logger) (Notifier, error) {
	_, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-queue-mode": "lazy"},
	)
	if err != nil {
		return nil, fmt.Errorf("не удалось объявить очередь уведомлений '%s': %w", queueName, err)
	}

	return &rabbitMQNotifier{
		channel:   ch,
		queueName: queueName,
		logger:    logger.Named("RabbitMQNotifier"),
	}, nil
}

// NotifyCompleted публикует уведомление в очередь RabbitMQ.
func (n *rabbitMQNotifier) NotifyCompleted(ctx context.Context, snapshot session.Snapshot, ending string) error {
	payload := CompletedPayload{
		SessionKey:     snapshot.Key,
		Mode:           string(snapshot.Mode),
		Choices:        snapshot.Choices,
		ChaptersPlayed: snapshot.CurrentChapter,
		Ending:         ending,
		CompletedAt:    snapshot.UpdatedAt,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ошибка сериализации уведомления для сессии '%s': %w", snapshot.Key, err)
	}

	err = n.channel.PublishWithContext(ctx,
		"",          // exchange
		n.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("ошибка публикации уведомления для сессии '%s': %w", snapshot.Key, err)
	}

	n.logger.Info("Уведомление о завершении отправлено",
		zap.String("sessionKey", snapshot.Key),
		zap.String("queue", n.queueName))
	return nil
}

// noopNotifier используется, когда уведомления выключены конфигурацией.
type noopNotifier struct{}

// NewNoopNotifier возвращает Notifier, который ничего не делает.
func NewNoopNotifier() Notifier { return noopNotifier{} }

func (noopNotifier) NotifyCompleted(context.Context, session.Snapshot, string) error { return nil }
