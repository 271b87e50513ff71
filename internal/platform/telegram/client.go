package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"giveaway-engine-backend/internal/common/logger"
)

const apiBase = "https://api.telegram.org"

// RPSError marks a Telegram rate limit rejection. Callers treat it as a soft
// failure and retry later.
type RPSError struct {
	Msg string
}

func (e *RPSError) Error() string {
	return e.Msg
}

// Response is the generic Telegram Bot API envelope.
type Response struct {
	Ok          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
}

// Client is a minimal Bot API client used for winner notifications. Calls go
// through a circuit breaker so a Telegram outage cannot pile up goroutines.
type Client struct {
	httpClient *http.Client
	token      string
	breaker    *gobreaker.CircuitBreaker
}

func NewClient(token string) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "telegram",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})

	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		token:      token,
		breaker:    breaker,
	}
}

// SendMessage delivers a plain text message to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	params := url.Values{
		"chat_id": {fmt.Sprintf("%d", chatID)},
		"text":    {text},
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.call(ctx, "sendMessage", params)
	})
	return err
}

func (c *Client) call(ctx context.Context, method string, params url.Values) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", apiBase, c.token, method)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var response Response
	if err := json.Unmarshal(body, &response); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if !response.Ok {
		if resp.StatusCode == http.StatusTooManyRequests || strings.Contains(response.Description, "Too Many Requests") {
			return &RPSError{Msg: "rate limit exceeded"}
		}
		return fmt.Errorf("telegram API error: %s", response.Description)
	}

	return nil
}
