package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const defaultBaseURL = "https://open.feishu.cn"

// 令牌失效类错误码，刷新令牌后重试一次
const (
	codeTokenInvalid = 99991663
	codeTokenExpired = 99991664
)

// APIError 开放平台返回的业务错误
type APIError struct {
	Code int
	Msg  string
	Path string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("飞书API错误[%d]: %s (path=%s)", e.Code, e.Msg, e.Path)
}

func (e *APIError) tokenRejected() bool {
	return e.Code == codeTokenInvalid || e.Code == codeTokenExpired
}

// appToken 缓存的 app_access_token，过期前60秒视为失效
type appToken struct {
	mu      sync.Mutex
	value   string
	renewAt time.Time
}

func (t *appToken) get(now time.Time) (string, bool) {
	if t.value == "" || !now.Before(t.renewAt) {
		return "", false
	}
	return t.value, true
}

func (t *appToken) reset() {
	t.mu.Lock()
	t.value = ""
	t.mu.Unlock()
}

// Client 仓库通知用的飞书自建应用客户端
type Client struct {
	appID     string
	appSecret string
	baseURL   string
	http      *http.Client
	token     appToken
}

type Option func(*Client)

// WithBaseURL 私有化部署或测试桩
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func NewClient(appID, appSecret string, opts ...Option) *Client {
	c := &Client{
		appID:     appID,
		appSecret: appSecret,
		baseURL:   defaultBaseURL,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AppAccessToken 取缓存令牌，失效时在锁内刷新
func (c *Client) AppAccessToken(ctx context.Context) (string, error) {
	c.token.mu.Lock()
	defer c.token.mu.Unlock()

	now := time.Now()
	if v, ok := c.token.get(now); ok {
		return v, nil
	}

	var resp struct {
		BaseResponse
		AppAccessToken string `json:"app_access_token"`
		Expire         int    `json:"expire"`
	}
	body := map[string]string{"app_id": c.appID, "app_secret": c.appSecret}
	if err := c.post(ctx, "/open-apis/auth/v3/app_access_token/internal", "", body, &resp); err != nil {
		return "", fmt.Errorf("获取app_access_token: %w", err)
	}

	c.token.value = resp.AppAccessToken
	c.token.renewAt = now.Add(time.Duration(resp.Expire-60) * time.Second)
	return resp.AppAccessToken, nil
}

// call 带令牌调用开放平台；令牌被拒时清缓存重试一次
func (c *Client) call(ctx context.Context, path string, body, out interface{}) error {
	for attempt := 0; ; attempt++ {
		token, err := c.AppAccessToken(ctx)
		if err != nil {
			return err
		}
		err = c.post(ctx, path, token, body, out)
		var apiErr *APIError
		if attempt == 0 && errors.As(err, &apiErr) && apiErr.tokenRejected() {
			c.token.reset()
			continue
		}
		return err
	}
}

// post 发送 JSON 请求并检查统一错误码，out 需内嵌 BaseResponse 或为 nil
func (c *Client) post(ctx context.Context, path, token string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("编码请求: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("请求飞书: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应: %w", err)
	}
	var base BaseResponse
	if err := json.Unmarshal(raw, &base); err != nil {
		return fmt.Errorf("解析响应(HTTP %d): %w", resp.StatusCode, err)
	}
	if base.Code != 0 {
		return &APIError{Code: base.Code, Msg: base.Msg, Path: path}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("解析响应: %w", err)
		}
	}
	return nil
}
