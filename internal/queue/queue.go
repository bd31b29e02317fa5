package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/veilscan/shielded-stats-pipeline/internal/config"
	"github.com/veilscan/shielded-stats-pipeline/internal/observability/metrics"
	"github.com/veilscan/shielded-stats-pipeline/internal/types"
)

const (
	routingKeyResultStored = "pipeline.result.stored"
	routingKeyJobFailed    = "pipeline.job.failed"

	publishTimeout = 5 * time.Second
)

// ResultStoredEvent is published after a job reaches SUMMARIZED.
type ResultStoredEvent struct {
	JobKey      string    `json:"job_key"`
	ReferenceID string    `json:"reference_id"`
	Source      string    `json:"source"`
	BlockRange  string    `json:"block_range"`
	StoredAt    time.Time `json:"stored_at"`
}

// JobFailedEvent is published after a job reaches FAILED.
type JobFailedEvent struct {
	JobKey   string         `json:"job_key"`
	Stage    types.JobStage `json:"stage"`
	Reason   string         `json:"reason"`
	FailedAt time.Time      `json:"failed_at"`
}

// PublisherInterface lets the orchestrator announce terminal transitions to
// downstream consumers. A nil manager is a no-op.
type PublisherInterface interface {
	PublishResultStored(ctx context.Context, event *ResultStoredEvent) error
	PublishJobFailed(ctx context.Context, event *JobFailedEvent) error
	Shutdown()
}

type QueueManager struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewQueueManager(cfg *config.QueueConfig) (*QueueManager, error) {
	amqpURL := fmt.Sprintf("amqp://%s:%s@%s", cfg.User, cfg.Password, cfg.Url)
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to queue: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open queue channel: %w", err)
	}

	err = channel.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	return &QueueManager{
		conn:     conn,
		channel:  channel,
		exchange: cfg.Exchange,
	}, nil
}

func (qm *QueueManager) PublishResultStored(ctx context.Context, event *ResultStoredEvent) error {
	return qm.publish(ctx, routingKeyResultStored, event)
}

func (qm *QueueManager) PublishJobFailed(ctx context.Context, event *JobFailedEvent) error {
	return qm.publish(ctx, routingKeyJobFailed, event)
}

func (qm *QueueManager) publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = qm.channel.PublishWithContext(ctx, qm.exchange, routingKey, false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
	if err != nil {
		metrics.IncQueuePublishError()
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}
	return nil
}

// Shutdown gracefully stops the interaction with the queue, ensuring all
// resources are properly released.
func (qm *QueueManager) Shutdown() {
	log.Info().Msg("Shutting down queue manager")
	if err := qm.channel.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close queue channel")
	}
	if err := qm.conn.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close queue connection")
	}
}
