package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ultrasooq/rfqchat/pkg/chatcore"
	"github.com/ultrasooq/rfqchat/pkg/schemas/common"
	rfqchat "github.com/ultrasooq/rfqchat/pkg/schemas/rfqchat/v1"
)

// -----------------------------------------------------------------------------
// AMQP bridge
// -----------------------------------------------------------------------------
//
// Server-side deployments of the reconciliation core (bots, back-office
// consumers) read the hub's chat events from the broker instead of the
// browser socket, and emit through it. Same chatcore interfaces, different
// wire.

type BridgeConfig struct {
	URL      string
	Exchange string // defaults to the rfqchat contract exchange
	// Queue the bridge consumes; give each deployment its own.
	Queue string
	// Routing keys bound to the queue; defaults to every inbound event type.
	BindingKeys []string
	Producer    string

	Prefetch                    int
	PublishPoolSize             int
	PoolRetryDelayMs            int
	ConnTimeoutSeconds          int
	ReconnectBackoffBaseSeconds int
	ReconnectBackoffCapSeconds  int
	ReconnectJitterPercent      int
	EventBuffer                 int

	// Retry pipeline for transient consume failures; bad frames always go
	// straight to the final queue.
	RetryTTL         time.Duration
	RetryMaxAttempts int

	Dialer func(ctx context.Context, url string) (*amqp.Connection, error)
}

func (c *BridgeConfig) withDefaults() {
	if c.Exchange == "" {
		c.Exchange = rfqchat.Exchange
	}
	if len(c.BindingKeys) == 0 {
		c.BindingKeys = []string{
			rfqchat.MessagePostedMeta.RoutingKey,
			rfqchat.RoomCreatedMeta.RoutingKey,
			rfqchat.AttachmentStatusMeta.RoutingKey,
			rfqchat.PriceStatusMeta.RoutingKey,
			rfqchat.GatewayErrorMeta.RoutingKey,
		}
	}
	if c.Prefetch <= 0 {
		c.Prefetch = 8
	}
	if c.PublishPoolSize <= 0 {
		c.PublishPoolSize = 4
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 64
	}
	if c.RetryTTL <= 0 {
		c.RetryTTL = 10 * time.Second
	}
	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = 5
	}
}

type Bridge struct {
	cfg    BridgeConfig
	logger *slog.Logger
	events chan chatcore.Event

	mu     sync.Mutex
	conn   *amqp.Connection
	pool   *channelPool
	closed bool
}

var (
	_ chatcore.EventSource = (*Bridge)(nil)
	_ chatcore.Emitter     = (*Bridge)(nil)
)

func NewBridge(ctx context.Context, cfg BridgeConfig, logger *slog.Logger) (*Bridge, error) {
	const op = "gateway.NewBridge"

	if cfg.URL == "" {
		return nil, fmt.Errorf("amqp URL is required")
	}
	if cfg.Queue == "" {
		return nil, fmt.Errorf("bridge queue name is required")
	}
	cfg.withDefaults()

	b := &Bridge{
		cfg:    cfg,
		logger: logger,
		events: make(chan chatcore.Event, cfg.EventBuffer),
	}
	if logger != nil {
		u, _ := url.Parse(cfg.URL)
		host := ""
		if u != nil {
			host = u.Host
		}
		logger.With("op", op).Info("connecting to broker", slog.String("host", host))
	}
	if err := b.connect(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return b, nil
}

func (b *Bridge) Events() <-chan chatcore.Event { return b.events }

// connect dials, declares the exchange and rebuilds the publish pool.
func (b *Bridge) connect(ctx context.Context) error {
	dial := b.cfg.Dialer
	if dial == nil {
		dial = func(_ context.Context, u string) (*amqp.Connection, error) { return amqp.Dial(u) }
	}

	deadline := time.Now().Add(dsec(b.cfg.ConnTimeoutSeconds, 30))
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if time.Now().After(deadline) {
		return fmt.Errorf("context deadline exceeded before connection attempt")
	}

	conn, err := dial(ctx, b.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(b.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}
	_ = ch.Close()

	b.mu.Lock()
	if b.pool != nil {
		b.pool.Close()
	}
	b.conn = conn
	b.pool = newChannelPool(conn, b.cfg.PublishPoolSize)
	b.mu.Unlock()
	return nil
}

// Close tears the connection down and stops Run's reconnect loop; Run
// returns shortly after.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.pool != nil {
		b.pool.Close()
	}
	if b.conn != nil {
		_ = b.conn.Close()
	}
}

func (b *Bridge) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Bridge) SendMessage(ctx context.Context, msg rfqchat.SendMessageV1) error {
	return b.publish(ctx, rfqchat.TypeSendMessage, msg.IdempotencyToken, msg)
}

func (b *Bridge) CreateRoom(ctx context.Context, req rfqchat.CreateRoomV1) error {
	return b.publish(ctx, rfqchat.TypeCreateRoom, "", req)
}

func (b *Bridge) UpdatePriceStatus(ctx context.Context, req rfqchat.UpdatePriceStatusV1) error {
	return b.publish(ctx, rfqchat.TypeUpdatePriceStatus, "", req)
}

func (b *Bridge) publish(ctx context.Context, eventType, correlationID string, data any) error {
	env := common.Envelope{
		Meta: common.NewMeta(eventType, b.cfg.Producer),
		Data: data,
	}
	if correlationID != "" {
		env.Meta.CorrelationID = correlationID
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}

	b.mu.Lock()
	pool := b.pool
	b.mu.Unlock()
	if pool == nil {
		return ErrNotConnected
	}
	ch, err := pool.Borrow(ctx, b.cfg.PoolRetryDelayMs)
	if err != nil {
		return fmt.Errorf("borrow channel: %w", err)
	}
	defer pool.Return(ch)

	return ch.PublishWithContext(ctx, b.cfg.Exchange, eventType, false, false, amqp.Publishing{
		ContentType:   "application/json",
		Body:          body,
		DeliveryMode:  amqp.Persistent,
		MessageId:     env.Meta.ID,
		CorrelationId: env.Meta.CorrelationID,
		Type:          env.Meta.Type,
		Timestamp:     env.Meta.Time,
		AppId:         b.cfg.Producer,
	})
}

// -----------------------------------------------------------------------------
// Publish channel pool (bounded, lazy)
// -----------------------------------------------------------------------------

var errPoolClosed = errors.New("channel pool closed")

type channelPool struct {
	conn *amqp.Connection

	mu     sync.Mutex
	idle   []*amqp.Channel
	open   int
	limit  int
	closed bool
}

func newChannelPool(conn *amqp.Connection, limit int) *channelPool {
	if limit <= 0 {
		limit = 4
	}
	return &channelPool{conn: conn, limit: limit}
}

// Borrow hands out an idle channel, opens a new one below the limit, or
// waits retrying until one frees up.
func (p *channelPool) Borrow(ctx context.Context, retryDelayMs int) (*amqp.Channel, error) {
	delay := time.Duration(retryDelayMs) * time.Millisecond
	if delay <= 0 {
		delay = 50 * time.Millisecond
	}
	for {
		p.mu.Lock()
		switch {
		case p.closed:
			p.mu.Unlock()
			return nil, errPoolClosed
		case len(p.idle) > 0:
			ch := p.idle[len(p.idle)-1]
			p.idle = p.idle[:len(p.idle)-1]
			p.mu.Unlock()
			if ch.IsClosed() {
				p.drop()
				continue
			}
			return ch, nil
		case p.open < p.limit:
			p.open++
			p.mu.Unlock()
			ch, err := p.conn.Channel()
			if err != nil {
				p.drop()
				return nil, err
			}
			return ch, nil
		default:
			p.mu.Unlock()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (p *channelPool) Return(ch *amqp.Channel) {
	if ch == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || ch.IsClosed() || p.conn.IsClosed() {
		p.open--
		_ = safeClose(ch)
		return
	}
	p.idle = append(p.idle, ch)
}

func (p *channelPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, ch := range p.idle {
		_ = safeClose(ch)
	}
	p.idle = nil
}

func (p *channelPool) drop() {
	p.mu.Lock()
	p.open--
	p.mu.Unlock()
}

func safeClose(ch *amqp.Channel) error {
	if ch == nil {
		return nil
	}
	defer func() { _ = recover() }()
	return ch.Close()
}
