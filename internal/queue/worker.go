package queue

import (
	"context"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const retryHeader = "x-retry-count"

type HandlerFunc func(ctx context.Context, body []byte) error

// RetryPolicy controls redelivery of failed messages. After MaxRetries the
// message is rejected and dead-lettered.
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
}

// ConsumeWithRetry blocks until ctx is done or the delivery channel closes.
func (c *Client) ConsumeWithRetry(ctx context.Context, queue string, handler HandlerFunc, policy RetryPolicy, logger *zap.Logger) error {
	msgs, err := c.ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("consumer closed")
			}
			c.deliver(ctx, queue, msg, handler, policy, logger)
		}
	}
}

func (c *Client) deliver(ctx context.Context, queue string, msg amqp.Delivery, handler HandlerFunc, policy RetryPolicy, logger *zap.Logger) {
	err := handler(ctx, msg.Body)
	if err == nil {
		_ = msg.Ack(false)
		return
	}

	retryCount := getRetryCount(msg.Headers)
	if retryCount >= policy.MaxRetries {
		if logger != nil {
			logger.Warn("message dead-lettered", zap.String("queue", queue), zap.Int("retries", retryCount), zap.Error(err))
		}
		_ = msg.Nack(false, false)
		return
	}
	if logger != nil {
		logger.Info("message retry scheduled", zap.String("queue", queue), zap.Int("retry", retryCount+1), zap.Error(err))
	}

	select {
	case <-ctx.Done():
		_ = msg.Nack(false, true)
		return
	case <-time.After(policy.Delay):
	}

	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[retryHeader] = int32(retryCount + 1)

	if err := c.publish(ctx, "", queue, amqp.Publishing{
		ContentType:  msg.ContentType,
		DeliveryMode: amqp.Persistent,
		Body:         msg.Body,
		Headers:      headers,
		Timestamp:    time.Now(),
	}); err != nil {
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

func getRetryCount(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	switch t := headers[retryHeader].(type) {
	case int32:
		return int(t)
	case int64:
		return int(t)
	case int:
		return t
	}
	return 0
}
