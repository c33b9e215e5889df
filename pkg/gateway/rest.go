package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ultrasooq/rfqchat/pkg/chatcore"
	rfqchat "github.com/ultrasooq/rfqchat/pkg/schemas/rfqchat/v1"
)

// -----------------------------------------------------------------------------
// REST client (chatcore.ChatAPI)
// -----------------------------------------------------------------------------

type RESTConfig struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
}

type RESTClient struct {
	cfg    RESTConfig
	client *http.Client
	logger *slog.Logger
}

var _ chatcore.ChatAPI = (*RESTClient)(nil)

func NewRESTClient(cfg RESTConfig, logger *slog.Logger) (*RESTClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("rest base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RESTClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

// apiResponse is the hub's uniform JSON body.
type apiResponse[T any] struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
}

func (c *RESTClient) FetchRoomID(ctx context.Context, rfqID, counterpartyUserID int64) (int64, error) {
	const op = "gateway.RESTClient.FetchRoomID"

	q := url.Values{}
	q.Set("rfq_id", strconv.FormatInt(rfqID, 10))
	q.Set("counterparty_id", strconv.FormatInt(counterpartyUserID, 10))

	var out apiResponse[struct {
		RoomID int64 `json:"room_id"`
	}]
	err := c.doJSON(ctx, http.MethodGet, "/chat/rooms/find?"+q.Encode(), nil, &out)
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return out.Data.RoomID, nil
}

func (c *RESTClient) FetchChatHistory(ctx context.Context, roomID int64) ([]rfqchat.MessageV1, error) {
	const op = "gateway.RESTClient.FetchChatHistory"

	var out apiResponse[[]rfqchat.MessageV1]
	path := fmt.Sprintf("/chat/rooms/%d/messages", roomID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out.Data, nil
}

func (c *RESTClient) UpdateUnreadMessages(ctx context.Context, userID, roomID int64) error {
	const op = "gateway.RESTClient.UpdateUnreadMessages"

	body := map[string]int64{"user_id": userID}
	path := fmt.Sprintf("/chat/rooms/%d/unread", roomID)
	var out apiResponse[struct{}]
	if err := c.doJSON(ctx, http.MethodPatch, path, body, &out); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *RESTClient) UploadAttachment(ctx context.Context, att rfqchat.AttachmentV1, content []byte) error {
	const op = "gateway.RESTClient.UploadAttachment"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("unique_id", att.UniqueID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	fw, err := mw.CreateFormFile("content", att.FileName)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := fw.Write(content); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/attachments", &buf)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: %w", op, httpError(resp))
	}
	return nil
}

func (c *RESTClient) SelectSuggestedProducts(ctx context.Context, req chatcore.SelectSuggestionsRequest) error {
	const op = "gateway.RESTClient.SelectSuggestedProducts"

	// The hub expects the absolute set; an empty list is a deselect-all,
	// so the ids field must serialize even when empty.
	if req.SelectedSuggestionIDs == nil {
		req.SelectedSuggestionIDs = []int64{}
	}
	var out apiResponse[struct{}]
	if err := c.doJSON(ctx, http.MethodPost, "/rfq/suggested-products/select", req, &out); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *RESTClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return httpError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *RESTClient) authorize(req *http.Request) {
	if c.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	}
}

type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

func httpError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &statusError{Code: resp.StatusCode, Body: string(b)}
}

func isNotFound(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.Code == http.StatusNotFound
}
