// Package telegram is a small Bot API client covering the calls the reminder
// bot makes.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"pillsreminder/internal/models"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// APIError is a response with ok=false
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// NotModified reports whether the edit was rejected because the text did not change
func (e *APIError) NotModified() bool {
	return strings.Contains(e.Description, "message is not modified")
}

// Client calls the Bot API over HTTPS
type Client struct {
	rc  *resty.Client
	log zerolog.Logger
}

// NewClient creates a client for the bot identified by token
func NewClient(baseURL, token string, log zerolog.Logger) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")+"/bot"+token).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second)

	return &Client{rc: rc, log: log.With().Str("component", "telegram").Logger()}
}

func (c *Client) call(ctx context.Context, method string, body any, out any) error {
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(body).
		Post("/" + method)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}

	var ar apiResponse
	if err := json.Unmarshal(resp.Body(), &ar); err != nil {
		return fmt.Errorf("telegram %s: status %d: decode response: %w", method, resp.StatusCode(), err)
	}
	if !ar.OK {
		return &APIError{Method: method, Code: ar.ErrorCode, Description: ar.Description}
	}
	if out != nil && len(ar.Result) > 0 {
		if err := json.Unmarshal(ar.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

type inlineMarkup struct {
	InlineKeyboard models.Keyboard `json:"inline_keyboard"`
}

type sendMessageRequest struct {
	ChatID      int64         `json:"chat_id"`
	Text        string        `json:"text"`
	ReplyMarkup *inlineMarkup `json:"reply_markup,omitempty"`
}

// SendMessage posts text with an optional inline keyboard and returns the message id
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, kb models.Keyboard) (int64, error) {
	req := sendMessageRequest{ChatID: chatID, Text: text}
	if len(kb) > 0 {
		req.ReplyMarkup = &inlineMarkup{InlineKeyboard: kb}
	}
	var msg Message
	if err := c.call(ctx, "sendMessage", req, &msg); err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// EditMessageText replaces the text of a sent message and drops its keyboard.
// An unchanged text is not an error.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string) error {
	req := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}
	err := c.call(ctx, "editMessageText", req, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.NotModified() {
		return nil
	}
	return err
}

// AnswerCallbackQuery stops the client-side spinner on a pressed button
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID string) error {
	return c.call(ctx, "answerCallbackQuery", map[string]string{"callback_query_id": callbackID}, nil)
}

// GetUpdates long-polls for updates starting at offset
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]Update, error) {
	req := map[string]any{
		"offset":          offset,
		"timeout":         timeoutSeconds,
		"allowed_updates": []string{"message", "callback_query"},
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", req, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SetMyCommands installs the command menu
func (c *Client) SetMyCommands(ctx context.Context, commands []BotCommand) error {
	return c.call(ctx, "setMyCommands", map[string]any{"commands": commands}, nil)
}

// SetWebhook registers url as the update endpoint
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	req := map[string]any{
		"url":             url,
		"allowed_updates": []string{"message", "callback_query"},
	}
	if secret != "" {
		req["secret_token"] = secret
	}
	return c.call(ctx, "setWebhook", req, nil)
}

// DeleteWebhook switches the bot back to getUpdates
func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", map[string]any{"drop_pending_updates": false}, nil)
}

// Deliver sends a notification. It lets the client serve as the services notifier.
func (c *Client) Deliver(ctx context.Context, chatID int64, text string, kb models.Keyboard) (int64, error) {
	return c.SendMessage(ctx, chatID, text, kb)
}

// Update edits a delivered notification
func (c *Client) Update(ctx context.Context, chatID, messageID int64, text string) error {
	return c.EditMessageText(ctx, chatID, messageID, text)
}
