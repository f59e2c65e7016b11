package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"sns-ingest/internal/domain"
	"sns-ingest/internal/infra/metrics"
)

// RabbitCommandQueue реализует очередь команд через AMQP.
type RabbitCommandQueue struct {
	conn  *amqp.Connection
	queue string

	mu         sync.Mutex
	publishCh  *amqp.Channel
	consumeCh  *amqp.Channel
	deliveries <-chan amqp.Delivery
}

var _ domain.CommandQueue = (*RabbitCommandQueue)(nil)

// NewRabbitCommandQueue подключается к брокеру и объявляет очередь.
func NewRabbitCommandQueue(amqpURL, queue string) (*RabbitCommandQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitCommandQueue{conn: conn, queue: queue, publishCh: ch}, nil
}

// Close закрывает соединение.
func (q *RabbitCommandQueue) Close() error {
	return q.conn.Close()
}

// Enqueue публикует задачу в очередь.
func (q *RabbitCommandQueue) Enqueue(ctx context.Context, job domain.CommandJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	start := time.Now()
	err = q.publishCh.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Receive блокирующе читает задачу. ack(false) возвращает сообщение брокеру.
func (q *RabbitCommandQueue) Receive(ctx context.Context) (domain.CommandJob, domain.AckFunc, error) {
	deliveries, err := q.consume()
	if err != nil {
		return domain.CommandJob{}, nil, err
	}
	for {
		select {
		case <-ctx.Done():
			return domain.CommandJob{}, nil, ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				q.resetConsumer()
				return domain.CommandJob{}, nil, errors.New("rabbitmq: delivery channel closed")
			}
			var job domain.CommandJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				_ = d.Nack(false, false)
				return domain.CommandJob{}, nil, fmt.Errorf("decode job: %w", err)
			}
			ack := func(success bool) error {
				if success {
					return d.Ack(false)
				}
				return d.Nack(false, true)
			}
			return job, ack, nil
		}
	}
}

func (q *RabbitCommandQueue) consume() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	ch, err := q.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open consume channel: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("consume: %w", err)
	}
	q.consumeCh = ch
	q.deliveries = deliveries
	return deliveries, nil
}

func (q *RabbitCommandQueue) resetConsumer() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.consumeCh != nil {
		_ = q.consumeCh.Close()
	}
	q.consumeCh = nil
	q.deliveries = nil
}
