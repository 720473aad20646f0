package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/annel0/blockguard/internal/api"
	"github.com/annel0/blockguard/internal/api/replay"
	"github.com/gorilla/websocket"
)

// Client представляет тонкий клиент административного REST API
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// VetoFilter содержит параметры выборки журнала запретов
type VetoFilter struct {
	World    string
	Category string
	Since    *time.Time
	Limit    int
}

// APIError описывает ответ сервера со статусом не 2xx
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Login получает JWT администратора и запоминает его
func (c *Client) Login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return errors.New("username and password are required")
	}
	var resp api.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", api.LoginRequest{Username: username, Password: password}, &resp); err != nil {
		return err
	}
	if resp.Token == "" {
		return fmt.Errorf("login rejected: %s", resp.Message)
	}
	c.Token = resp.Token
	return nil
}

func (c *Client) Vetoes(ctx context.Context, f VetoFilter) ([]replay.Record, error) {
	q := url.Values{}
	if f.World != "" {
		q.Set("world", f.World)
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Since != nil {
		q.Set("since", f.Since.UTC().Format(time.RFC3339))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	path := "/api/admin/vetoes"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp struct {
		Vetoes []replay.Record `json:"vetoes"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Vetoes, nil
}

func (c *Client) Stats(ctx context.Context) (map[string]interface{}, error) {
	var out map[string]interface{}
	return out, c.do(ctx, http.MethodGet, "/api/admin/stats", nil, &out)
}

func (c *Client) State(ctx context.Context) (api.StateResponse, error) {
	var out api.StateResponse
	return out, c.do(ctx, http.MethodGet, "/api/admin/state", nil, &out)
}

// Halt включает или снимает глобальную остановку активности
func (c *Client) Halt(ctx context.Context, enabled bool) (api.StateResponse, error) {
	return c.toggle(ctx, "/api/admin/halt", enabled)
}

// FireSpread останавливает или возобновляет распространение огня в мире
func (c *Client) FireSpread(ctx context.Context, world string, halted bool) (api.StateResponse, error) {
	return c.toggle(ctx, "/api/admin/fire/"+url.PathEscape(world), halted)
}

func (c *Client) toggle(ctx context.Context, path string, enabled bool) (api.StateResponse, error) {
	var resp struct {
		Data api.StateResponse `json:"data"`
	}
	err := c.do(ctx, http.MethodPost, path, api.ToggleRequest{Enabled: &enabled}, &resp)
	return resp.Data, err
}

func (c *Client) Reload(ctx context.Context) (map[string]interface{}, error) {
	var out map[string]interface{}
	return out, c.do(ctx, http.MethodPost, "/api/admin/reload", nil, &out)
}

// Evaluate прогоняет событие через цепочку без побочных эффектов
func (c *Client) Evaluate(ctx context.Context, category string, event []byte) (api.GuardResponse, error) {
	var out api.GuardResponse
	return out, c.do(ctx, http.MethodPost, "/api/guard/"+url.PathEscape(category)+"/evaluate", json.RawMessage(event), &out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var generic api.GenericResponse
		if json.Unmarshal(data, &generic) == nil && generic.Message != "" {
			return &APIError{Status: resp.StatusCode, Message: generic.Message}
		}
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Watch читает поток событий /api/admin/stream до отмены контекста или ошибки
func (c *Client) Watch(ctx context.Context, types []string, fn func(api.StreamMessage) bool) error {
	u := "ws" + strings.TrimPrefix(c.BaseURL, "http") + "/api/admin/stream"
	if len(types) > 0 {
		u += "?types=" + url.QueryEscape(strings.Join(types, ","))
	}
	header := http.Header{}
	if c.Token != "" {
		header.Set("Authorization", "Bearer "+c.Token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u, header)
	if err != nil {
		if resp != nil {
			return &APIError{Status: resp.StatusCode, Message: err.Error()}
		}
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	for {
		var msg api.StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if !fn(msg) {
			return nil
		}
	}
}
