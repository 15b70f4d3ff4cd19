// Package telegram is a thin client for the Telegram Bot API, covering the
// call surface the relay needs: identity lookup, webhook management, text and
// media delivery (by URL or by previously captured file_id), and callback
// acknowledgment.
//
// Every method takes the bot token explicitly because the relay serves many
// bots through one client; the client itself only owns the HTTP transport and
// base URL. Failures split into two kinds (see errors.go): *APIError when
// Telegram answered with ok=false, and wrapped transport errors otherwise.
// Call sites in the worker catch both and degrade to logged no-ops.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultBaseURL is the production Bot API endpoint. Overridable for tests
// and for local Bot API servers.
const DefaultBaseURL = "https://api.telegram.org"

// HeaderSecretToken is the header Telegram attaches to webhook deliveries,
// echoing the secret_token passed to setWebhook.
const HeaderSecretToken = "X-Telegram-Bot-Api-Secret-Token"

// Client talks to the Bot API. Safe for concurrent use.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient constructs a Client against baseURL (DefaultBaseURL when empty).
// A nil httpc gets a 30-second-timeout default, matching the platform's own
// webhook retry budget.
func NewClient(baseURL string, httpc *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: baseURL, httpc: httpc}
}

// apiResponse is the uniform Bot API envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

// call POSTs payload to /bot<token>/<method> and decodes the result into out
// (when non-nil). The token never appears in returned errors.
func (c *Client) call(ctx context.Context, token, method string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: %s: encode request: %w", method, err)
	}

	url := c.baseURL + "/bot" + token + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: %s: build request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer resp.Body.Close()

	var env apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("telegram: %s: decode response: %w", method, err)
	}
	if !env.OK {
		return &APIError{Method: method, Code: env.ErrorCode, Description: env.Description}
	}
	if out != nil {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("telegram: %s: decode result: %w", method, err)
		}
	}
	return nil
}

// GetMe validates a bot token and returns the bot's identity.
func (c *Client) GetMe(ctx context.Context, token string) (*User, error) {
	var u User
	if err := c.call(ctx, token, "getMe", struct{}{}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// SetWebhook points the bot's webhook at url, guarded by secret. Pending
// updates are dropped so a re-registration does not replay a backlog.
func (c *Client) SetWebhook(ctx context.Context, token, url, secret string) error {
	payload := map[string]any{
		"url":                  url,
		"secret_token":         secret,
		"allowed_updates":      []string{"message", "callback_query"},
		"drop_pending_updates": true,
		"max_connections":      100,
	}
	return c.call(ctx, token, "setWebhook", payload, nil)
}

// DeleteWebhook removes the bot's webhook registration.
func (c *Client) DeleteWebhook(ctx context.Context, token string) error {
	return c.call(ctx, token, "deleteWebhook", struct{}{}, nil)
}

// SendMessage delivers text to chatID, attaching the inline keyboard when
// non-nil. Text is parsed as Markdown, matching the templates bots configure.
func (c *Client) SendMessage(ctx context.Context, token, chatID, text string, kb *InlineKeyboardMarkup) (*Message, error) {
	payload := map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}
	if kb != nil {
		payload["reply_markup"] = kb
	}
	var m Message
	if err := c.call(ctx, token, "sendMessage", payload, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// SendPhoto delivers a photo. The photo argument is either a public URL
// (upload path) or a previously captured file_id (reuse path); Telegram
// accepts both in the same field.
func (c *Client) SendPhoto(ctx context.Context, token, chatID, photo string) (*Message, error) {
	var m Message
	err := c.call(ctx, token, "sendPhoto", map[string]any{"chat_id": chatID, "photo": photo}, &m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// SendVideo delivers a video by URL or file_id.
func (c *Client) SendVideo(ctx context.Context, token, chatID, video string) (*Message, error) {
	var m Message
	err := c.call(ctx, token, "sendVideo", map[string]any{"chat_id": chatID, "video": video}, &m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// AnswerCallbackQuery acknowledges an inline-keyboard press. With showAlert
// the text pops up as a modal instead of a toast.
func (c *Client) AnswerCallbackQuery(ctx context.Context, token, callbackID, text string, showAlert bool) error {
	payload := map[string]any{
		"callback_query_id": callbackID,
		"text":              text,
		"show_alert":        showAlert,
	}
	return c.call(ctx, token, "answerCallbackQuery", payload, nil)
}
