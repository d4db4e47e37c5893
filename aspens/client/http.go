package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/aspens-xyz/aspens-go/pkg/ratelimit"
)

// httpClient Market Stack RPC 传输层的 resty 封装。
//
// 只读请求（GET）允许底层超时，但任何写操作（下单、撤单）都不配置
// 自动重试：失败原样上抛，是否重试由调用方决定。
type httpClient struct {
	client  *resty.Client
	limiter *ratelimit.Manager
}

func newHTTPClient(baseURL string, timeout time.Duration) *httpClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	// resty 会自动从环境变量读取代理配置（HTTP_PROXY / HTTPS_PROXY）
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "aspens-go-sdk")

	return &httpClient{client: client, limiter: ratelimit.NewManager()}
}

// apiError 服务端错误响应体
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// get 执行 GET 请求并解析 JSON 响应到 out
func (h *httpClient) get(ctx context.Context, op, endpoint string, params map[string]string, out any) error {
	if err := h.limiter.Wait(ctx, endpoint); err != nil {
		return &TransportError{Op: op, URL: h.client.BaseURL + endpoint, Err: err}
	}
	req := h.client.R().SetContext(ctx)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Get(endpoint)
	return h.finish(op, endpoint, resp, err)
}

// post 执行 POST 请求并解析 JSON 响应到 out。
// 速率限制只延后发送，绝不重发：一个请求至多到达服务端一次。
func (h *httpClient) post(ctx context.Context, op, endpoint string, body, out any) error {
	if err := h.limiter.Wait(ctx, endpoint); err != nil {
		return &TransportError{Op: op, URL: h.client.BaseURL + endpoint, Err: err}
	}
	req := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Post(endpoint)
	return h.finish(op, endpoint, resp, err)
}

// finish 统一的错误归一化：网络错误与非 2xx 状态都包装为 *TransportError
func (h *httpClient) finish(op, endpoint string, resp *resty.Response, err error) error {
	url := h.client.BaseURL + endpoint
	if err != nil {
		return &TransportError{Op: op, URL: url, Err: err}
	}
	if resp.IsError() {
		var apiErr apiError
		if jsonErr := json.Unmarshal(resp.Body(), &apiErr); jsonErr == nil && (apiErr.Error != "" || apiErr.Message != "") {
			msg := apiErr.Error
			if msg == "" {
				msg = apiErr.Message
			}
			return &TransportError{
				Op:  op,
				URL: url,
				Err: errors.Errorf("HTTP %d: %s", resp.StatusCode(), msg),
			}
		}
		return &TransportError{
			Op:  op,
			URL: url,
			Err: errors.Errorf("HTTP %d: %s", resp.StatusCode(), strings.TrimSpace(string(resp.Body()))),
		}
	}
	if resp.StatusCode() == http.StatusNoContent {
		return nil
	}
	return nil
}

// canonicalJSON 序列化签名载荷。签名与服务端校验使用同一份字节，
// 因此必须走确定性的编码路径（encoding/json 按结构体字段顺序输出）。
func canonicalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("序列化签名载荷失败: %w", err)
	}
	return data, nil
}
