// Package telegram is a small client for the subset of the Telegram Bot API the bot uses.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the public Bot API endpoint.
	DefaultBaseURL = "https://api.telegram.org"
	defaultTimeout = 15 * time.Second
	// maxResponseBytes caps a decoded reply.
	maxResponseBytes = 8 << 20
)

// Client calls Bot API methods for one bot token.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another Bot API server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New constructs a Client for token.
func New(token string, opts ...Option) *Client {
	c := &Client{
		token:   strings.TrimSpace(token),
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) methodURL(method string) string {
	return c.baseURL + "/bot" + c.token + "/" + method
}

// call posts params as JSON and decodes the result into out when out is non-nil.
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	body, errMarshal := json.Marshal(params)
	if errMarshal != nil {
		return fmt.Errorf("telegram: %s: encode params: %w", method, errMarshal)
	}
	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(body))
	if errReq != nil {
		return fmt.Errorf("telegram: %s: build request: %w", method, errReq)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, method, out)
}

func (c *Client) do(req *http.Request, method string, out any) error {
	resp, errDo := c.http.Do(req)
	if errDo != nil {
		return fmt.Errorf("telegram: %s: %w", method, errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	var envelope apiResponse
	if errDecode := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&envelope); errDecode != nil {
		return fmt.Errorf("telegram: %s: decode response (http %d): %w", method, resp.StatusCode, errDecode)
	}
	if !envelope.OK {
		apiErr := &APIError{Method: method, Code: envelope.ErrorCode, Description: envelope.Description}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		if envelope.Parameters != nil {
			apiErr.RetryAfter = envelope.Parameters.RetryAfter
		}
		return apiErr
	}
	if out == nil || len(envelope.Result) == 0 {
		return nil
	}
	if errResult := json.Unmarshal(envelope.Result, out); errResult != nil {
		return fmt.Errorf("telegram: %s: decode result: %w", method, errResult)
	}
	return nil
}

// chatRef encodes a chat given as "@username" or a numeric id.
func chatRef(chat string) any {
	chat = strings.TrimSpace(chat)
	if id, errParse := strconv.ParseInt(chat, 10, 64); errParse == nil {
		return id
	}
	return chat
}

// GetChatMember returns userID's membership in chat.
func (c *Client) GetChatMember(ctx context.Context, chat string, userID int64) (ChatMember, error) {
	var member ChatMember
	errCall := c.call(ctx, "getChatMember", map[string]any{
		"chat_id": chatRef(chat),
		"user_id": userID,
	}, &member)
	return member, errCall
}

// SendGift sends the gift giftID to userID with an optional text.
func (c *Client) SendGift(ctx context.Context, userID int64, giftID, text string) error {
	params := map[string]any{
		"user_id": userID,
		"gift_id": giftID,
	}
	if text != "" {
		params["text"] = text
	}
	var ok bool
	if errCall := c.call(ctx, "sendGift", params, &ok); errCall != nil {
		return errCall
	}
	if !ok {
		return &APIError{Method: "sendGift", Description: "gift not sent"}
	}
	return nil
}

// SendOptions are the optional parts of a text message.
type SendOptions struct {
	ParseMode   string
	ReplyMarkup *InlineKeyboardMarkup
}

func (o SendOptions) apply(params map[string]any) {
	if o.ParseMode != "" {
		params["parse_mode"] = o.ParseMode
	}
	if o.ReplyMarkup != nil {
		params["reply_markup"] = o.ReplyMarkup
	}
}

// SendMessage sends text to chatID.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, opts SendOptions) (Message, error) {
	params := map[string]any{"chat_id": chatID, "text": text}
	opts.apply(params)
	var msg Message
	errCall := c.call(ctx, "sendMessage", params, &msg)
	return msg, errCall
}

// EditMessageText replaces the text and keyboard of a message sent by the bot.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string, opts SendOptions) error {
	params := map[string]any{"chat_id": chatID, "message_id": messageID, "text": text}
	opts.apply(params)
	return c.call(ctx, "editMessageText", params, nil)
}

// AnswerCallbackQuery acknowledges a button press, optionally showing text.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	params := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		params["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", params, nil)
}

// SendDocument uploads content as a file named filename to chatID.
func (c *Client) SendDocument(ctx context.Context, chatID int64, filename string, content []byte, caption string) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if errField := writer.WriteField("chat_id", strconv.FormatInt(chatID, 10)); errField != nil {
		return fmt.Errorf("telegram: sendDocument: %w", errField)
	}
	if caption != "" {
		if errField := writer.WriteField("caption", caption); errField != nil {
			return fmt.Errorf("telegram: sendDocument: %w", errField)
		}
	}
	part, errPart := writer.CreateFormFile("document", filename)
	if errPart != nil {
		return fmt.Errorf("telegram: sendDocument: %w", errPart)
	}
	if _, errWrite := part.Write(content); errWrite != nil {
		return fmt.Errorf("telegram: sendDocument: %w", errWrite)
	}
	if errClose := writer.Close(); errClose != nil {
		return fmt.Errorf("telegram: sendDocument: %w", errClose)
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendDocument"), &buf)
	if errReq != nil {
		return fmt.Errorf("telegram: sendDocument: build request: %w", errReq)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.do(req, "sendDocument", nil)
}

// GetUpdates long-polls for updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration, allowed []string) ([]Update, error) {
	params := map[string]any{
		"offset":  offset,
		"timeout": int(timeout / time.Second),
	}
	if len(allowed) > 0 {
		params["allowed_updates"] = allowed
	}
	updates := make([]Update, 0)
	errCall := c.call(ctx, "getUpdates", params, &updates)
	return updates, errCall
}

// SetWebhook registers url as the push endpoint.
func (c *Client) SetWebhook(ctx context.Context, url, secret string, dropPending bool, allowed []string) error {
	params := map[string]any{
		"url":                  url,
		"drop_pending_updates": dropPending,
	}
	if secret != "" {
		params["secret_token"] = secret
	}
	if len(allowed) > 0 {
		params["allowed_updates"] = allowed
	}
	return c.call(ctx, "setWebhook", params, nil)
}

// DeleteWebhook removes the push endpoint so getUpdates can be used.
func (c *Client) DeleteWebhook(ctx context.Context, dropPending bool) error {
	return c.call(ctx, "deleteWebhook", map[string]any{"drop_pending_updates": dropPending}, nil)
}

// SetMyCommands installs the bot command menu.
func (c *Client) SetMyCommands(ctx context.Context, commands []BotCommand) error {
	return c.call(ctx, "setMyCommands", map[string]any{"commands": commands}, nil)
}
