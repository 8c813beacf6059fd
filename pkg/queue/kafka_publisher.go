package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

// KafkaPublisher is a synchronous Kafka implementation of QueuePublisher.
//
// Publish blocks until a delivery confirmation arrives from the broker.
// A background goroutine drains the producer event channel and surfaces
// fatal errors on Errors. Close MUST be called at least once to stop the
// goroutine and flush queued messages.
type KafkaPublisher struct {
	producer   *kafka.Producer
	log        *zap.SugaredLogger
	errCh      chan error
	eventsDone chan struct{}
	closedCh   chan struct{}
	once       sync.Once
}

const (
	flushTimeoutMs = 10000
	queueFullDelay = time.Second
)

// NewKafkaPublisher creates a Kafka-backed QueuePublisher. The context
// bounds the lifetime of the event monitor goroutine.
func NewKafkaPublisher(ctx context.Context, conf *kafka.ConfigMap, log *zap.SugaredLogger) (*KafkaPublisher, error) {
	p, err := kafka.NewProducer(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	kq := KafkaPublisher{
		producer:   p,
		log:        log,
		errCh:      make(chan error, 1),
		eventsDone: make(chan struct{}),
		closedCh:   make(chan struct{}),
	}

	go kq.monitorProducerEvents(ctx)

	return &kq, nil
}

// Publish synchronously publishes a message and waits for the delivery
// receipt. If the context is canceled before confirmation, Publish
// returns ctx.Err() but the message may still be delivered. Callers
// retrying after cancellation should tolerate duplicates; the blocks
// table keyed on height absorbs them.
func (q *KafkaPublisher) Publish(ctx context.Context, msg Msg) error {
	deliveryCh := make(chan kafka.Event, 1)
	defer close(deliveryCh)

	kMsg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &msg.Topic,
			Partition: kafka.PartitionAny,
		},
		Key:   msg.Key,
		Value: msg.Value,
	}

	if err := q.produceWithRetry(ctx, kMsg, deliveryCh); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case ev := <-deliveryCh:
		return deliveryResult(kMsg, ev)
	}
}

// Close stops the event monitor and flushes the producer queue. It blocks
// until queued messages are delivered or the context is canceled.
// Calling Close multiple times does nothing.
func (q *KafkaPublisher) Close(ctx context.Context) {
	q.once.Do(func() {
		q.log.Info("closing kafka publisher")
		defer close(q.errCh)

		close(q.closedCh)
		<-q.eventsDone

		for q.producer.Flush(flushTimeoutMs) > 0 {
			q.log.Warn("producer queue not flushed, retrying")
			select {
			case <-ctx.Done():
				q.log.Info("context done, abandoning producer flush")
				q.producer.Close()
				return
			default:
			}
		}

		q.producer.Close()
		q.log.Info("kafka publisher closed")
	})
}

// Errors returns a channel that receives at most one fatal error and is
// closed on shutdown. After receiving an error the publisher is no
// longer usable; call Close and create a new one.
func (q *KafkaPublisher) Errors() <-chan error {
	return q.errCh
}

// produceWithRetry enqueues a message, retrying with a fixed delay while
// the local producer queue is full. All other produce errors are final.
func (q *KafkaPublisher) produceWithRetry(ctx context.Context, msg *kafka.Message, deliveryCh chan kafka.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := q.producer.Produce(msg, deliveryCh)
		if err == nil {
			return nil
		}

		kafkaErr, ok := err.(kafka.Error)
		if ok && kafkaErr.Code() == kafka.ErrQueueFull {
			q.log.Warn("producer queue full, retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(queueFullDelay):
			}
			continue
		}

		return fmt.Errorf("failed to produce: %w", err)
	}
}

func (q *KafkaPublisher) monitorProducerEvents(ctx context.Context) {
	defer close(q.eventsDone)
	for {
		select {
		case <-ctx.Done():
			q.log.Info("stopping kafka event monitor, context done")
			return
		case <-q.closedCh:
			q.log.Info("stopping kafka event monitor, publisher closed")
			return
		case ev, ok := <-q.producer.Events():
			if !ok {
				q.reportFatal(fmt.Errorf("kafka producer event channel closed"))
				return
			}

			switch e := ev.(type) {
			case *kafka.Message:
				// Delivery receipts are consumed in Publish; anything
				// arriving here was produced without a delivery channel.
				if e.TopicPartition.Error != nil {
					q.log.Errorw("failed to deliver message", "partition", e.TopicPartition)
				}
			case kafka.Error:
				if e.IsFatal() || e.Code() == kafka.ErrAllBrokersDown {
					q.reportFatal(fmt.Errorf("fatal kafka error: %#x, %w", e.Code(), e))
					return
				}
				q.log.Warnf("ignoring kafka error: %#x, %v", e.Code(), e)
			default:
				q.log.Warnf("unknown kafka event: %+v", e)
			}
		}
	}
}

func (q *KafkaPublisher) reportFatal(err error) {
	select {
	case q.errCh <- err:
	default:
		q.log.Warnf("error channel full, dropping: %v", err)
	}
}

func deliveryResult(msg *kafka.Message, ev kafka.Event) error {
	switch e := ev.(type) {
	case *kafka.Message:
		if err := e.TopicPartition.Error; err != nil {
			return fmt.Errorf("delivery failed: %w", err)
		}
		return nil
	case kafka.Error:
		return fmt.Errorf("kafka error: code=%d fatal=%t: %w", e.Code(), e.IsFatal(), e)
	default:
		return fmt.Errorf("unexpected delivery event for topic %s: %T", *msg.TopicPartition.Topic, ev)
	}
}
