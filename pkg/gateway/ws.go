package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ultrasooq/rfqchat/pkg/chatcore"
	"github.com/ultrasooq/rfqchat/pkg/schemas/common"
	rfqchat "github.com/ultrasooq/rfqchat/pkg/schemas/rfqchat/v1"
)

// -----------------------------------------------------------------------------
// Websocket gateway client (chatcore.EventSource + chatcore.Emitter)
// -----------------------------------------------------------------------------

var ErrNotConnected = errors.New("gateway connection is down")

type WSConfig struct {
	URL       string // wss://gateway.../chat
	AuthToken string
	Producer  string // value for Meta.Producer on emits

	HandshakeTimeoutSeconds     int
	ReconnectBackoffBaseSeconds int
	ReconnectBackoffCapSeconds  int
	ReconnectJitterPercent      int
	EventBuffer                 int
}

// WSGateway keeps one shared connection to the socket gateway: a read loop
// decodes pushed envelopes onto the inbound event channel, emits are
// fire-and-forget writes. Reconnects with jittered exponential backoff;
// events missed while down are recovered by the caller's history refetch.
type WSGateway struct {
	cfg    WSConfig
	logger *slog.Logger
	events chan chatcore.Event

	mu   sync.Mutex
	conn *websocket.Conn
}

var (
	_ chatcore.EventSource = (*WSGateway)(nil)
	_ chatcore.Emitter     = (*WSGateway)(nil)
)

func NewWSGateway(cfg WSConfig, logger *slog.Logger) (*WSGateway, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("gateway URL is required")
	}
	buf := cfg.EventBuffer
	if buf <= 0 {
		buf = 64
	}
	return &WSGateway{
		cfg:    cfg,
		logger: logger,
		events: make(chan chatcore.Event, buf),
	}, nil
}

func (g *WSGateway) Events() <-chan chatcore.Event { return g.events }

// Run dials and reads until the context ends. The event channel closes on
// return so the session loop can drain and stop.
func (g *WSGateway) Run(ctx context.Context) error {
	const op = "gateway.WSGateway.Run"
	defer close(g.events)

	base := dsec(g.cfg.ReconnectBackoffBaseSeconds, 1)
	capd := dsec(g.cfg.ReconnectBackoffCapSeconds, 30)
	backoff := base

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := g.dial(ctx)
		if err != nil {
			wait := jitteredDelay(backoff, capd, g.cfg.ReconnectJitterPercent)
			if g.logger != nil {
				g.logger.With("op", op).Error("dial failed",
					slog.Any("error", err), slog.Duration("retry_in", wait))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			if backoff*2 < capd {
				backoff *= 2
			}
			continue
		}
		backoff = base

		g.mu.Lock()
		g.conn = conn
		g.mu.Unlock()
		if g.logger != nil {
			g.logger.With("op", op).Info("gateway connected")
		}

		err = g.readLoop(ctx, conn)
		g.mu.Lock()
		g.conn = nil
		g.mu.Unlock()
		_ = conn.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if g.logger != nil {
			g.logger.With("op", op).Error("gateway connection lost", slog.Any("error", err))
		}
	}
}

func (g *WSGateway) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: dsec(g.cfg.HandshakeTimeoutSeconds, 10),
	}
	var hdr map[string][]string
	if g.cfg.AuthToken != "" {
		hdr = map[string][]string{"Authorization": {"Bearer " + g.cfg.AuthToken}}
	}
	conn, _, err := dialer.DialContext(ctx, g.cfg.URL, hdr)
	return conn, err
}

func (g *WSGateway) readLoop(ctx context.Context, conn *websocket.Conn) error {
	const op = "gateway.WSGateway.readLoop"
	for {
		_, body, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		ev, err := DecodeEvent(body)
		if err != nil {
			// Poison frame: log and keep the connection.
			if g.logger != nil {
				g.logger.With("op", op).Warn("dropping undecodable frame", slog.Any("error", err))
			}
			continue
		}
		select {
		case g.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (g *WSGateway) SendMessage(ctx context.Context, msg rfqchat.SendMessageV1) error {
	return g.emit(ctx, rfqchat.TypeSendMessage, msg.IdempotencyToken, msg)
}

func (g *WSGateway) CreateRoom(ctx context.Context, req rfqchat.CreateRoomV1) error {
	return g.emit(ctx, rfqchat.TypeCreateRoom, "", req)
}

func (g *WSGateway) UpdatePriceStatus(ctx context.Context, req rfqchat.UpdatePriceStatusV1) error {
	return g.emit(ctx, rfqchat.TypeUpdatePriceStatus, "", req)
}

// emit frames and writes one payload. Fire and forget: the hub's answer
// arrives as an inbound event, correlated by the idempotency token.
func (g *WSGateway) emit(ctx context.Context, eventType, correlationID string, data any) error {
	env := common.Envelope{
		Meta: common.NewMeta(eventType, g.cfg.Producer),
		Data: data,
	}
	if correlationID != "" {
		env.Meta.CorrelationID = correlationID
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return ErrNotConnected
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = g.conn.SetWriteDeadline(deadline)
	}
	if err := g.conn.WriteMessage(websocket.TextMessage, body); err != nil {
		return fmt.Errorf("emit %s: %w", eventType, err)
	}
	return nil
}
