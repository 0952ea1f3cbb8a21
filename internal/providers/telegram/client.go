package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrNotConfigured = errors.New("telegram_not_configured")

// APIError is a non-ok reply from the Bot API.
type APIError struct {
	StatusCode  int
	ErrorCode   int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api error %d: %s", e.ErrorCode, e.Description)
}

type Config struct {
	BotToken string
	APIURL   string
	Timeout  time.Duration
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// Client talks to the Telegram Bot HTTP API.
type Client struct {
	token   string
	baseURL string
	client  *http.Client
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.Timeout > 0 {
		httpClient.Timeout = cfg.Timeout
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &Client{
		token:   strings.TrimSpace(cfg.BotToken),
		baseURL: baseURL,
		client:  httpClient,
	}
}

func (c *Client) PostMessage(ctx context.Context, chatID string, message string) error {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return ErrNotConfigured
	}
	payload := sendMessageRequest{
		ChatID:                chatID,
		Text:                  message,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	}
	return c.call(ctx, http.MethodPost, "sendMessage", payload, nil)
}

func (c *Client) GetMe(ctx context.Context) (Bot, error) {
	var bot Bot
	if err := c.call(ctx, http.MethodGet, "getMe", nil, &bot); err != nil {
		return Bot{}, err
	}
	return bot, nil
}

func (c *Client) GetUpdates(ctx context.Context) ([]Update, error) {
	var updates []Update
	if err := c.call(ctx, http.MethodGet, "getUpdates", nil, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

func (c *Client) call(ctx context.Context, method, apiMethod string, payload any, out any) error {
	if c.token == "" {
		return ErrNotConfigured
	}

	var body io.Reader = http.NoBody
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/bot"+c.token+"/"+apiMethod, body)
	if err != nil {
		return fmt.Errorf("telegram %s: build request failed", apiMethod)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", apiMethod, stripURL(err))
	}
	defer resp.Body.Close()

	var decoded apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &APIError{StatusCode: resp.StatusCode, ErrorCode: resp.StatusCode, Description: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("telegram %s: decode response: %w", apiMethod, err)
	}
	if !decoded.OK || resp.StatusCode >= http.StatusBadRequest {
		code := decoded.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return &APIError{StatusCode: resp.StatusCode, ErrorCode: code, Description: decoded.Description}
	}

	if out != nil && len(decoded.Result) > 0 {
		if err := json.Unmarshal(decoded.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", apiMethod, err)
		}
	}
	return nil
}

// stripURL drops the request URL, which embeds the bot token, from transport errors.
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
