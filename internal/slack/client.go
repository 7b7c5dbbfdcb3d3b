// Package slack is a minimal client for the handful of Slack Web API
// methods the bridge needs. Payload shapes follow the Web API docs; there
// is no retry layer here, callers decide what a failed call means.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claw4business/claude-code-slackbot/internal/domain"
)

const maxResponseBytes = 1 << 20

// Message is a channel or thread message as returned by the history APIs.
type Message struct {
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts,omitempty"`
	Text     string `json:"text"`
	User     string `json:"user,omitempty"`
	BotID    string `json:"bot_id,omitempty"`
	Subtype  string `json:"subtype,omitempty"`
}

// Identity is the authenticated bot identity from auth.test.
type Identity struct {
	UserID string
	User   string
	Team   string
}

// APIError is a Slack API level failure: HTTP 200 with ok=false and an
// error code in the body.
type APIError struct {
	Method string
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack %s: %s", e.Method, e.Code)
}

// IsAuthError reports whether err is a credential problem rather than a
// transient failure. Callers treat auth errors as "run without Slack".
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case "invalid_auth", "not_authed", "account_inactive", "token_revoked", "token_expired":
		return true
	}
	return false
}

// Client talks to the Slack Web API with a bot token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a Slack client. baseURL is normally
// "https://slack.com/api" and is overridable for tests.
func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://slack.com/api"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// PostMessage posts text to a channel and returns the message timestamp,
// which doubles as the thread handle for replies. The channel is joined
// first; join failures are ignored because the post itself is the signal
// that matters.
func (c *Client) PostMessage(ctx context.Context, channel, text string) (string, error) {
	if err := c.joinChannel(ctx, channel); err != nil {
		slog.Debug("conversations.join failed", "channel", channel, "error", err)
	}

	var resp struct {
		apiResponse
		TS string `json:"ts"`
	}
	payload := map[string]any{
		"channel":      channel,
		"text":         text,
		"unfurl_links": false,
		"unfurl_media": false,
	}
	if err := c.callJSON(ctx, "chat.postMessage", payload, &resp); err != nil {
		return "", err
	}
	return resp.TS, nil
}

// PostThreadReply posts text into an existing thread.
func (c *Client) PostThreadReply(ctx context.Context, channel, threadTS, text string) error {
	var resp struct {
		apiResponse
		TS string `json:"ts"`
	}
	payload := map[string]any{
		"channel":      channel,
		"text":         text,
		"thread_ts":    threadTS,
		"unfurl_links": false,
		"unfurl_media": false,
	}
	return c.callJSON(ctx, "chat.postMessage", payload, &resp)
}

// FetchRepliesSince returns human replies in a thread strictly newer than
// afterTS, oldest first. The thread root, bot messages and system subtypes
// (joins, edits, pins) are filtered out.
func (c *Client) FetchRepliesSince(ctx context.Context, channel, threadTS, afterTS string) ([]Message, error) {
	params := url.Values{}
	params.Set("channel", channel)
	params.Set("ts", threadTS)
	params.Set("limit", "100")

	var resp struct {
		apiResponse
		Messages []Message `json:"messages"`
	}
	if err := c.callForm(ctx, "conversations.replies", params, &resp); err != nil {
		return nil, err
	}

	replies := make([]Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		if m.TS == threadTS {
			continue
		}
		if m.BotID != "" || m.Subtype != "" {
			continue
		}
		if afterTS != "" && domain.CompareTS(m.TS, afterTS) <= 0 {
			continue
		}
		replies = append(replies, m)
	}
	return replies, nil
}

// FetchHistory returns the newest channel messages, newest first, exactly
// as Slack orders them.
func (c *Client) FetchHistory(ctx context.Context, channel string, limit int) ([]Message, error) {
	params := url.Values{}
	params.Set("channel", channel)
	params.Set("limit", strconv.Itoa(limit))

	var resp struct {
		apiResponse
		Messages []Message `json:"messages"`
	}
	if err := c.callForm(ctx, "conversations.history", params, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// AuthTest verifies the token and returns the bot identity.
func (c *Client) AuthTest(ctx context.Context) (*Identity, error) {
	var resp struct {
		apiResponse
		UserID string `json:"user_id"`
		User   string `json:"user"`
		Team   string `json:"team"`
	}
	if err := c.callJSON(ctx, "auth.test", map[string]any{}, &resp); err != nil {
		return nil, err
	}
	return &Identity{UserID: resp.UserID, User: resp.User, Team: resp.Team}, nil
}

func (c *Client) joinChannel(ctx context.Context, channel string) error {
	var resp struct {
		apiResponse
	}
	return c.callJSON(ctx, "conversations.join", map[string]any{"channel": channel}, &resp)
}

type apiResponse struct {
	OK  bool   `json:"ok"`
	Err string `json:"error,omitempty"`
}

func (r *apiResponse) apiOK() (bool, string) {
	return r.OK, r.Err
}

type apiEnvelope interface {
	apiOK() (bool, string)
}

// callJSON posts a JSON body, for write-style methods.
func (c *Client) callJSON(ctx context.Context, method string, payload any, out apiEnvelope) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	return c.do(req, method, out)
}

// callForm issues a query-string GET, for read-style methods which do not
// accept JSON bodies.
func (c *Client) callForm(ctx context.Context, method string, params url.Values, out apiEnvelope) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+method+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	return c.do(req, method, out)
}

func (c *Client) do(req *http.Request, method string, out apiEnvelope) error {
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close response body", "method", method, "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("call %s: unexpected status %d", method, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}

	if ok, code := out.apiOK(); !ok {
		return &APIError{Method: method, Code: code}
	}
	return nil
}
