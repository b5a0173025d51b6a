// Package messaging publishes designer lifecycle events to Kafka.
package messaging

import (
	"context"
	"encoding/json"
	"time"

	"flowcanvas/internal/config"
	"flowcanvas/internal/designs"
	"flowcanvas/pkg/errors"
	"flowcanvas/pkg/logger"
	"flowcanvas/pkg/metrics"

	"github.com/segmentio/kafka-go"
)

// Producer writes designer events to a single topic, keyed by design id so
// every event for one design lands on the same partition in order.
type Producer struct {
	writer  *kafka.Writer
	config  *config.KafkaConfig
	logger  logger.Logger
	metrics *metrics.Metrics
}

// DesignEvent is the wire shape for design lifecycle events.
type DesignEvent struct {
	Action    string    `json:"action"`
	DesignID  string    `json:"design_id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Revision  int64     `json:"revision"`
	Timestamp time.Time `json:"timestamp"`
}

// ExecutionEvent is the wire shape for execution state changes.
type ExecutionEvent struct {
	Action      string    `json:"action"`
	DesignID    string    `json:"design_id"`
	ExecutionID string    `json:"execution_id"`
	Status      string    `json:"status"`
	DurationMS  *int64    `json:"duration_ms,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewProducer creates a Kafka producer from config.
func NewProducer(cfg *config.KafkaConfig) (*Producer, error) {
	if cfg == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "kafka config is required")
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.ValidationError(errors.CodeMissingField, "at least one kafka broker is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  cfg.ProducerRetryMax,
		BatchTimeout: cfg.ProducerFlushInterval,
		Compression:  kafka.Snappy,
	}

	return &Producer{
		writer:  writer,
		config:  cfg,
		logger:  logger.New("kafka-producer"),
		metrics: metrics.GetGlobal(),
	}, nil
}

// PublishDesignEvent emits a design lifecycle event.
func (p *Producer) PublishDesignEvent(ctx context.Context, action string, design *designs.Design) error {
	event := DesignEvent{
		Action:    action,
		DesignID:  design.ID,
		Name:      design.Name,
		Status:    string(design.Status),
		Revision:  design.Revision,
		Timestamp: time.Now().UTC(),
	}
	return p.publish(ctx, design.ID, event)
}

// PublishExecutionEvent emits an execution state change.
func (p *Producer) PublishExecutionEvent(ctx context.Context, execution *designs.Execution) error {
	event := ExecutionEvent{
		Action:      "execution." + string(execution.Status),
		DesignID:    execution.DesignID,
		ExecutionID: execution.ExecutionID,
		Status:      string(execution.Status),
		DurationMS:  execution.DurationMS,
		Timestamp:   time.Now().UTC(),
	}
	return p.publish(ctx, execution.DesignID, event)
}

func (p *Producer) publish(ctx context.Context, key string, event any) error {
	value, err := json.Marshal(event)
	if err != nil {
		return errors.InternalError("failed to serialize event", err)
	}

	message := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "producer", Value: []byte("flowcanvas")},
		},
	}

	start := time.Now()
	err = p.writer.WriteMessages(ctx, message)
	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Failed to publish event",
			"error", err,
			"topic", p.config.Topic,
			"key", key,
			"duration", duration,
		)
		p.metrics.RecordQueueMessage(p.config.Topic, "error")
		return errors.TransportError(errors.CodeBrokerError, "failed to publish event to kafka", err)
	}

	p.logger.Debug("Event published",
		"topic", p.config.Topic,
		"key", key,
		"size", len(value),
	)
	p.metrics.RecordQueueMessage(p.config.Topic, "success")
	return nil
}

// Health checks broker connectivity.
func (p *Producer) Health(ctx context.Context) error {
	conn, err := kafka.DialContext(ctx, "tcp", p.config.Brokers[0])
	if err != nil {
		return errors.TransportError(errors.CodeBrokerError, "failed to connect to kafka broker", err)
	}
	defer conn.Close()

	if _, err := conn.ReadPartitions(); err != nil {
		return errors.TransportError(errors.CodeBrokerError, "failed to read kafka partitions", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
