// Package client talks to a running timerd over its HTTP event channel.
package client

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"pomodoro/timerd/internal/channel"
	apperrors "pomodoro/timerd/internal/errors"
	"pomodoro/timerd/internal/model"
)

// DefaultTimeout bounds one-shot requests made by pomoctl.
const DefaultTimeout = 10 * time.Second

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New returns a client for baseURL. httpClient may be nil; it must not carry a
// total timeout if Watch is used.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: httpClient}
}

func (c *Client) State(ctx context.Context) (model.TimerState, error) {
	var state model.TimerState
	err := c.do(ctx, http.MethodGet, "/api/timer/state", nil, &state)
	return state, err
}

func (c *Client) Start(ctx context.Context, cmd channel.Command) error {
	cmd.Type = channel.CommandStartTimer
	return c.Send(ctx, cmd, nil)
}

func (c *Client) Pause(ctx context.Context) error {
	return c.Send(ctx, channel.Command{Type: channel.CommandPauseTimer}, nil)
}

// Skip leaves sessionType and currentSession unset when nil so the engine
// uses its own state.
func (c *Client) Skip(ctx context.Context, sessionType *model.SessionType, currentSession *int) error {
	return c.Send(ctx, channel.Command{
		Type:           channel.CommandSkipTimer,
		SessionType:    sessionType,
		CurrentSession: currentSession,
	}, nil)
}

func (c *Client) UpdateSettings(ctx context.Context, settings model.Settings) error {
	patch := model.PatchOf(settings)
	return c.Send(ctx, channel.Command{Type: channel.CommandSettingsUpdated, Settings: &patch}, nil)
}

func (c *Client) History(ctx context.Context, limit int) ([]model.SessionHistoryEntry, error) {
	var resp struct {
		Sessions []model.SessionHistoryEntry `json:"sessions"`
	}
	path := "/api/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp.Sessions, err
}

func (c *Client) Today(ctx context.Context) (model.DailyStats, error) {
	var stats model.DailyStats
	err := c.do(ctx, http.MethodGet, "/api/stats/today", nil, &stats)
	return stats, err
}

// Send posts a raw command. out may be nil or receive the response body.
func (c *Client) Send(ctx context.Context, cmd channel.Command, out any) error {
	return c.do(ctx, http.MethodPost, "/api/commands", cmd, out)
}

// Watch streams notifications to fn until ctx ends or the server closes the
// stream. The initial connected message is not passed on.
func (c *Client) Watch(ctx context.Context, fn func(channel.Notification)) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("open event stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var n channel.Notification
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &n); err != nil {
			return fmt.Errorf("decode notification: %w", err)
		}
		if n.Type == "connected" {
			continue
		}
		fn(n)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("read event stream: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func decodeError(resp *http.Response) error {
	var envelope struct {
		Error apperrors.APIError `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Error.Code == "" {
		return apperrors.New(resp.StatusCode, apperrors.CodeInternal, strings.TrimSpace(string(raw)))
	}
	apiErr := envelope.Error
	apiErr.Status = resp.StatusCode
	return &apiErr
}
