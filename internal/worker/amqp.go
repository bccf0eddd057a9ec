package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ifmain/pinny/internal/logger"
)

const (
	publishTimeout = 5 * time.Second
	// defaultRequeueDelay is how long a job the pool can't take is held before it is requeued.
	defaultRequeueDelay = time.Second
)

// AMQPConfig describes the RabbitMQ topology used for metadata jobs.
type AMQPConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
	Prefetch   int // consumer only, default 8
}

// connect dials RabbitMQ and declares a durable direct exchange with one bound queue.
func connect(cfg AMQPConfig) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	fail := func(step string, err error) (*amqp.Connection, *amqp.Channel, error) {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("%s: %w", step, err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		return fail("declare exchange", err)
	}
	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fail("declare queue", err)
	}
	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fail("bind queue", err)
	}

	return conn, ch, nil
}

func encodeJob(job Job) (amqp.Publishing, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal job: %w", err)
	}
	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         body,
		Timestamp:    time.Now(),
	}, nil
}

func decodeJob(body []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	if job.BookmarkID == "" || job.URL == "" {
		return Job{}, fmt.Errorf("%w: bookmark id and url are required", ErrInvalidJob)
	}
	return job, nil
}

// AMQPQueue publishes metadata jobs to RabbitMQ.
type AMQPQueue struct {
	conn       *amqp.Connection
	mu         sync.Mutex // amqp channels aren't safe for concurrent publishing
	channel    *amqp.Channel
	exchange   string
	routingKey string
	log        logger.Logger
}

func NewAMQPQueue(cfg AMQPConfig, log logger.Logger) (*AMQPQueue, error) {
	if log == nil {
		log = logger.Nop()
	}
	conn, ch, err := connect(cfg)
	if err != nil {
		return nil, err
	}

	log.Info("connected to rabbitmq",
		logger.String("exchange", cfg.Exchange),
		logger.String("queue", cfg.QueueName),
		logger.String("routing_key", cfg.RoutingKey))

	return &AMQPQueue{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		log:        log,
	}, nil
}

// Publish sends a job to the exchange.
func (q *AMQPQueue) Publish(ctx context.Context, job Job) error {
	msg, err := encodeJob(job)
	if err != nil {
		return err
	}

	q.mu.Lock()
	err = q.channel.PublishWithContext(ctx, q.exchange, q.routingKey, false, false, msg)
	q.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}

	q.log.Debug("published metadata job", logger.String("bookmark", job.BookmarkID))
	return nil
}

// Schedule implements MetadataSync. Publish failures are logged.
func (q *AMQPQueue) Schedule(bookmarkID, url string) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := q.Publish(ctx, Job{BookmarkID: bookmarkID, URL: url}); err != nil {
		q.log.Error("failed to schedule metadata sync",
			logger.String("bookmark", bookmarkID),
			logger.Error(err))
	}
}

func (q *AMQPQueue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// Submitter accepts jobs for local processing.
type Submitter interface {
	Submit(job Job) bool
}

// Consumer reads jobs from RabbitMQ and hands them to a Submitter.
type Consumer struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	queue    string
	prefetch int
	target   Submitter
	log      logger.Logger

	requeueDelay time.Duration
}

func NewConsumer(cfg AMQPConfig, target Submitter, log logger.Logger) (*Consumer, error) {
	if log == nil {
		log = logger.Nop()
	}
	conn, ch, err := connect(cfg)
	if err != nil {
		return nil, err
	}
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 8
	}
	return &Consumer{
		conn:     conn,
		channel:  ch,
		queue:    cfg.QueueName,
		prefetch: prefetch,
		target:   target,
		log:      log,

		requeueDelay: defaultRequeueDelay,
	}, nil
}

// Run consumes until ctx is cancelled or the broker closes the channel.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.channel.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := c.channel.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.log.Info("consuming metadata jobs", logger.String("queue", c.queue))
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

// handle acks a delivery once the job is accepted locally. Malformed jobs are
// rejected; jobs the target can't take right now are requeued.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	job, err := decodeJob(d.Body)
	if err != nil {
		c.log.Error("rejecting malformed metadata job", logger.Error(err))
		if err := d.Reject(false); err != nil {
			c.log.Warn("reject failed", logger.Error(err))
		}
		return
	}

	if !c.target.Submit(job) {
		// hold the delivery briefly so the broker doesn't redeliver in a tight loop
		select {
		case <-time.After(c.requeueDelay):
		case <-ctx.Done():
		}
		if err := d.Nack(false, true); err != nil {
			c.log.Warn("nack failed", logger.Error(err))
		}
		return
	}

	if err := d.Ack(false); err != nil {
		c.log.Warn("ack failed", logger.String("bookmark", job.BookmarkID), logger.Error(err))
	}
}

func (c *Consumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
