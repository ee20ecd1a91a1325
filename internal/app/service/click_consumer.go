package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/linkpulse/linkpulse/internal/app/model"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// ClickConsumer pulls click events off JetStream and drives them through the
// normalizer and aggregator. Events are acked after processing regardless of
// per-dimension failures: the pipeline is at-most-once and a redelivery would
// double count, so a failed event degrades accuracy instead of replaying.
type ClickConsumer struct {
	js         nats.JetStreamContext
	logger     *zap.Logger
	normalizer *Normalizer
	aggregator *Aggregator
	stopChan   chan struct{}
}

// NewClickConsumer creates a new click event consumer.
func NewClickConsumer(js nats.JetStreamContext, logger *zap.Logger, normalizer *Normalizer, aggregator *Aggregator) *ClickConsumer {
	return &ClickConsumer{
		js:         js,
		logger:     logger,
		normalizer: normalizer,
		aggregator: aggregator,
		stopChan:   make(chan struct{}),
	}
}

// Start ensures the stream and durable consumer exist, then begins consuming.
func (c *ClickConsumer) Start() error {
	_, err := c.js.StreamInfo(model.ClickStreamName)
	if err != nil {
		_, err = c.js.AddStream(&nats.StreamConfig{
			Name:     model.ClickStreamName,
			Subjects: []string{model.ClickStreamSubject},
			MaxBytes: model.ClickStreamMaxBytes,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	_, err = c.js.ConsumerInfo(model.ClickStreamName, model.ClickConsumerName)
	if err != nil {
		_, err = c.js.AddConsumer(model.ClickStreamName, &nats.ConsumerConfig{
			Durable:   model.ClickConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.ClickStreamSubject, model.ClickConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(sub)
	return nil
}

// Stop terminates the consume loop.
func (c *ClickConsumer) Stop() {
	close(c.stopChan)
}

func (c *ClickConsumer) consume(sub *nats.Subscription) {
	ctx := context.Background()
	for {
		select {
		case <-c.stopChan:
			c.logger.Info("click consumer stopped")
			return
		default:
		}

		msgs, err := sub.Fetch(10, nats.MaxWait(5*time.Second))
		if err != nil && err != nats.ErrTimeout {
			c.logger.Error("failed to fetch messages", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			var event model.ClickEvent
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				c.logger.Error("failed to unmarshal click event", zap.Error(err))
				msg.Term()
				continue
			}

			click := c.normalizer.Normalize(ctx, event)
			if err := c.aggregator.Apply(ctx, click); err != nil {
				c.logger.Error("failed to apply click event",
					zap.String("id", event.ID),
					zap.String("link_id", event.LinkID),
					zap.Error(err))
			} else {
				c.logger.Debug("click event applied",
					zap.String("id", event.ID),
					zap.String("link_code", event.LinkCode),
					zap.Time("timestamp", event.Timestamp),
				)
			}

			msg.Ack()
		}
	}
}
