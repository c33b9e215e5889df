package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var errChannelClosed = errors.New("amqp channel closed")

// Run consumes the bound queue until the context ends, decoding frames onto
// the event channel. Transient handler trouble dead-letters into a TTL retry
// queue and comes back; frames that exhaust their attempts, and poison
// frames (undecodable), land in the final queue. Connection loss triggers a
// jittered reconnect loop.
func (b *Bridge) Run(ctx context.Context) error {
	const op = "gateway.Bridge.Run"
	defer close(b.events)

	base := dsec(b.cfg.ReconnectBackoffBaseSeconds, 1)
	capd := dsec(b.cfg.ReconnectBackoffCapSeconds, 30)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if b.isClosed() {
			return nil
		}

		b.mu.Lock()
		conn := b.conn
		b.mu.Unlock()

		err := b.consume(ctx, conn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if b.isClosed() {
			return nil
		}
		if b.logger != nil {
			b.logger.With("op", op).Error("consume stopped, reconnecting", slog.Any("error", err))
		}

		backoff := base
		for {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if b.isClosed() {
				return nil
			}
			rerr := b.connect(ctx)
			if rerr == nil {
				break
			}
			wait := jitteredDelay(backoff, capd, b.cfg.ReconnectJitterPercent)
			if b.logger != nil {
				b.logger.With("op", op).Error("reconnect failed",
					slog.Any("error", rerr), slog.Duration("retry_in", wait))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			if backoff*2 < capd {
				backoff *= 2
			}
		}
	}
}

func (b *Bridge) consume(ctx context.Context, conn *amqp.Connection) error {
	if conn == nil {
		return errChannelClosed
	}
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = safeClose(ch) }()

	if err := ch.Qos(b.cfg.Prefetch, 0, false); err != nil {
		return err
	}
	if err := b.declareTopology(ch); err != nil {
		return err
	}

	msgs, err := ch.Consume(b.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	closed := ch.NotifyClose(make(chan *amqp.Error, 1))

	if b.logger != nil {
		b.logger.Info("bridge consuming",
			slog.String("queue", b.cfg.Queue), slog.Int("prefetch", b.cfg.Prefetch))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr == nil {
				return errChannelClosed
			}
			return amqpErr
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			b.handleDelivery(ctx, ch, d)
		}
	}
}

func (b *Bridge) handleDelivery(ctx context.Context, ch *amqp.Channel, d amqp.Delivery) {
	const op = "gateway.Bridge.handleDelivery"

	if deathCount(d, b.cfg.Queue) >= b.cfg.RetryMaxAttempts {
		_ = b.publishFinal(ch, d)
		_ = d.Ack(false)
		return
	}

	ev, err := DecodeEvent(d.Body)
	if err != nil {
		// Poison: keep a copy in the final queue, never requeue.
		if b.logger != nil {
			b.logger.With("op", op).Warn("poison frame", slog.Any("error", err))
		}
		_ = b.publishFinal(ch, d)
		_ = d.Ack(false)
		return
	}

	select {
	case b.events <- ev:
		_ = d.Ack(false)
	case <-ctx.Done():
		// Shutting down mid-delivery: dead-letter so another consumer
		// picks it up after the TTL.
		_ = d.Nack(false, false)
	}
}

// declareTopology sets up the main queue plus the TTL retry and final dead
// letter stages:
//
//	main --nack--> dead (TTL) --expire--> main
//	main --exhausted/poison--> final
func (b *Bridge) declareTopology(ch *amqp.Channel) error {
	deadEx := b.cfg.Queue + ".dead"
	finalEx := b.cfg.Queue + ".final"

	mainArgs := amqp.Table{"x-dead-letter-exchange": deadEx}
	if _, err := ch.QueueDeclare(b.cfg.Queue, true, false, false, false, mainArgs); err != nil {
		return err
	}
	for _, key := range b.cfg.BindingKeys {
		if err := ch.QueueBind(b.cfg.Queue, key, b.cfg.Exchange, false, nil); err != nil {
			return err
		}
	}

	if err := ch.ExchangeDeclare(deadEx, "fanout", true, false, false, false, nil); err != nil {
		return err
	}
	deadArgs := amqp.Table{
		"x-message-ttl":          int32(b.cfg.RetryTTL / time.Millisecond),
		"x-dead-letter-exchange": b.cfg.Exchange,
	}
	if _, err := ch.QueueDeclare(deadEx, true, false, false, false, deadArgs); err != nil {
		return err
	}
	if err := ch.QueueBind(deadEx, "", deadEx, false, nil); err != nil {
		return err
	}

	if err := ch.ExchangeDeclare(finalEx, "fanout", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(finalEx, true, false, false, false, nil); err != nil {
		return err
	}
	return ch.QueueBind(finalEx, "", finalEx, false, nil)
}

func (b *Bridge) publishFinal(ch *amqp.Channel, d amqp.Delivery) error {
	return ch.PublishWithContext(context.Background(), b.cfg.Queue+".final", "", false, false, amqp.Publishing{
		ContentType:   firstNonEmpty(d.ContentType, "application/json"),
		Body:          d.Body,
		Headers:       d.Headers,
		MessageId:     d.MessageId,
		CorrelationId: d.CorrelationId,
		DeliveryMode:  amqp.Persistent,
		Timestamp:     time.Now(),
		Type:          d.Type,
		AppId:         d.AppId,
	})
}

// deathCount reads how many times this delivery already cycled through the
// retry stage for our queue.
func deathCount(d amqp.Delivery, queue string) int {
	raw, ok := d.Headers["x-death"]
	if !ok {
		return 0
	}
	list, ok := raw.([]any)
	if !ok {
		return 0
	}
	for _, it := range list {
		if m, ok := it.(amqp.Table); ok {
			if q, _ := m["queue"].(string); q == queue {
				if n, ok := m["count"].(int64); ok {
					return int(n)
				}
			}
		}
	}
	return 0
}
