// roomtail opens one RFQ negotiation room and tails its transcript to
// stdout: a minimal shell around the reconciliation core, mostly useful for
// poking a gateway during development.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ultrasooq/rfqchat/pkg/chatcore"
	"github.com/ultrasooq/rfqchat/pkg/gateway"
	rfqchat "github.com/ultrasooq/rfqchat/pkg/schemas/rfqchat/v1"
)

type runtimeGateway interface {
	chatcore.EventSource
	chatcore.Emitter
	Run(ctx context.Context) error
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file found, relying on environment variables")
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil && ctx.Err() == nil {
		logger.Error("roomtail failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	api, err := gateway.NewRESTClient(gateway.RESTConfig{
		BaseURL:   getEnv("RFQCHAT_API_URL", "http://localhost:8080/api"),
		AuthToken: getEnv("RFQCHAT_API_TOKEN", ""),
	}, logger)
	if err != nil {
		return err
	}

	gw, err := buildGateway(ctx, logger)
	if err != nil {
		return err
	}

	selfID := getEnvAsInt64("RFQCHAT_USER_ID", 0)
	thread := &chatcore.VendorThread{
		SellerID:        getEnvAsInt64("RFQCHAT_SELLER_ID", 0),
		BuyerID:         getEnvAsInt64("RFQCHAT_BUYER_ID", selfID),
		RFQID:           getEnvAsInt64("RFQCHAT_RFQ_ID", 0),
		RFQQuotesUserID: getEnvAsInt64("RFQCHAT_QUOTE_USER_ID", 0),
	}

	session, err := chatcore.NewSession(chatcore.SessionConfig{
		Self:    rfqchat.PartyRef{UserID: selfID, Role: getEnv("RFQCHAT_ROLE", "buyer")},
		Quote:   rfqchat.QuoteRef{RFQID: thread.RFQID, RFQQuotesUserID: thread.RFQQuotesUserID},
		Thread:  thread,
		API:     api,
		Emitter: gw,
		Source:  gw,
		Notify:  logNotifier{logger},
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	go func() {
		if err := gw.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("gateway stopped", slog.Any("error", err))
		}
	}()
	go func() {
		if err := session.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("session stopped", slog.Any("error", err))
		}
	}()

	if err := session.Open(ctx); err != nil {
		return err
	}

	printed := 0
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			entries := session.Visible()
			for ; printed < len(entries); printed++ {
				e := entries[printed]
				fmt.Printf("[%s] %d (%s): %s\n",
					e.CreatedAt.Format(time.TimeOnly), e.AuthorID, e.Delivery, e.Content)
			}
		}
	}
}

// buildGateway prefers the broker bridge when an AMQP URL is configured,
// otherwise dials the websocket gateway.
func buildGateway(ctx context.Context, logger *slog.Logger) (runtimeGateway, error) {
	if amqpURL := getEnv("RFQCHAT_AMQP_URL", ""); amqpURL != "" {
		return gateway.NewBridge(ctx, gateway.BridgeConfig{
			URL:      amqpURL,
			Queue:    getEnv("RFQCHAT_AMQP_QUEUE", "rfqchat.roomtail"),
			Producer: "roomtail",
		}, logger)
	}
	return gateway.NewWSGateway(gateway.WSConfig{
		URL:       getEnv("RFQCHAT_WS_URL", "ws://localhost:8080/chat"),
		AuthToken: getEnv("RFQCHAT_API_TOKEN", ""),
		Producer:  "roomtail",
	}, logger)
}

type logNotifier struct{ log *slog.Logger }

func (n logNotifier) Notify(level chatcore.NotifyLevel, message string) {
	if level == chatcore.NotifyError {
		n.log.Error(message)
		return
	}
	n.log.Info(message)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, err := strconv.ParseInt(getEnv(key, ""), 10, 64); err == nil {
		return value
	}
	return defaultValue
}
