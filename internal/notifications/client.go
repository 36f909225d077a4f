package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/mo"
)

// DefaultAPIBase is the Telegram Bot API root.
const DefaultAPIBase = "https://api.telegram.org"

const ParseModeHTML = "HTML"

// OutboundMessage is one sendMessage call.
type OutboundMessage struct {
	ChatID    string
	Text      string
	ThreadID  mo.Option[int64]
	ParseMode string
}

type sendMessageRequest struct {
	ChatID          interface{} `json:"chat_id"`
	Text            string      `json:"text"`
	ParseMode       string      `json:"parse_mode,omitempty"`
	MessageThreadID *int64      `json:"message_thread_id,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

type NotificationError struct {
	Type        string
	StatusCode  int
	Description string
	Underlying  error
}

func (e *NotificationError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("telegram sendMessage failed [%s] %d: %s", e.Type, e.StatusCode, e.Description)
	}
	return fmt.Sprintf("telegram sendMessage failed [%s]: %v", e.Type, e.Underlying)
}

func (e *NotificationError) Unwrap() error { return e.Underlying }

func (e *NotificationError) IsRetryable() bool {
	switch e.Type {
	case "network", "server", "timeout":
		return true
	case "rate_limit":
		return true
	case "auth", "client", "encode":
		return false
	default:
		return e.StatusCode >= 500
	}
}

func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIBase
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// SendMessage performs exactly one sendMessage request. Failures are not retried.
// Delivery counters live in the metrics package and are kept by the caller.
func (c *Client) SendMessage(ctx context.Context, msg OutboundMessage) error {
	payload, err := json.Marshal(buildRequest(msg))
	if err != nil {
		return &NotificationError{Type: "encode", Underlying: err}
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)

	logEvent := log.Debug().
		Str("chat_id", msg.ChatID).
		Int("text_length", len(msg.Text))
	if id, ok := msg.ThreadID.Get(); ok {
		logEvent = logEvent.Int64("thread_id", id)
	}
	logEvent.Msg("Sending Telegram message")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &NotificationError{Type: "client", Underlying: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errType := "network"
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			errType = "timeout"
		}
		return &NotificationError{Type: errType, Underlying: redactToken(err, c.token)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var apiResp apiResponse
		_ = json.Unmarshal(body, &apiResp)
		return &NotificationError{
			Type:        categorizeHTTPError(resp.StatusCode),
			StatusCode:  resp.StatusCode,
			Description: apiResp.Description,
			Underlying:  fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status),
		}
	}

	log.Debug().
		Int("status_code", resp.StatusCode).
		Msg("Telegram message sent")

	return nil
}

func buildRequest(msg OutboundMessage) sendMessageRequest {
	req := sendMessageRequest{
		ChatID:    chatIDValue(msg.ChatID),
		Text:      msg.Text,
		ParseMode: msg.ParseMode,
	}
	if id, ok := msg.ThreadID.Get(); ok {
		req.MessageThreadID = &id
	}
	return req
}

// chatIDValue sends numeric chat IDs as JSON numbers and @channel names as strings.
func chatIDValue(chatID string) interface{} {
	if n, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		return n
	}
	return chatID
}

// redactToken keeps the bot token out of logged transport errors, which quote the URL.
func redactToken(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), token, "<redacted>"))
}

func categorizeHTTPError(statusCode int) string {
	switch {
	case statusCode == 401 || statusCode == 403:
		return "auth"
	case statusCode == 429:
		return "rate_limit"
	case statusCode >= 400 && statusCode < 500:
		return "client"
	case statusCode >= 500:
		return "server"
	default:
		return "unknown"
	}
}
