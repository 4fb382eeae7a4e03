package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBytes = 4 << 20 // 4MB，新闻列表/详情页远小于该值

// DefaultHeaders 模拟常见浏览器请求头，部分政府站点会拒绝裸 UA
var DefaultHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "zh-CN,zh;q=0.8,en-US;q=0.5,en;q=0.3",
}

// ErrorKind 区分抓取失败的类别，调用方据此决定是否重试/如何分类
type ErrorKind int

const (
	KindTimeout ErrorKind = iota
	KindConnectionFailed
	KindHTTPStatus
	KindDecodeFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnectionFailed:
		return "connection_failed"
	case KindHTTPStatus:
		return "http_status"
	case KindDecodeFailed:
		return "decode_failed"
	}
	return "unknown"
}

// Error 是抓取的类型化失败。空内容的成功响应不是 Error，
// 调用方永远能区分“抓到了但没有条目”和“没抓到”。
type Error struct {
	Kind   ErrorKind
	Status int // 仅 KindHTTPStatus 时有效
	URL    string
	Err    error
}

func (e *Error) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("fetch %s: %s %d", e.URL, e.Kind, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// retryable 判断是否值得重试：超时、连接失败、5xx 与 429 可重试；
// 其它 4xx 和非法 URL 直接失败。
func retryable(e *Error) bool {
	switch e.Kind {
	case KindTimeout, KindConnectionFailed:
		return true
	case KindHTTPStatus:
		return e.Status >= 500 || e.Status == http.StatusTooManyRequests
	}
	return false
}

// Request 描述一次抓取。URL 必须是绝对地址。
type Request struct {
	URL     string
	Method  string // 默认 GET
	Form    url.Values
	Headers map[string]string
	Timeout time.Duration
	// NoProxy 为 true 时本次请求忽略系统/环境代理配置
	NoProxy bool
}

// Result 为一次成功抓取的产物，仅归本次调用所有，不跨 goroutine 共享
type Result struct {
	Body       []byte
	Text       string
	Encoding   string
	StatusCode int
	FinalURL   string
}

// RetryPolicy 显式的有界重试策略，退避按次数线性递增
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

var DefaultRetry = RetryPolicy{MaxAttempts: 3, Delay: time.Second}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	return p.Delay * time.Duration(attempt+1)
}

// Client 是带重试与编码识别的 HTTP 抓取器，无跨请求可变状态，可并发使用
type Client struct {
	retry     RetryPolicy
	proxied   *http.Client
	proxyless *http.Client

	// AlwaysNoProxy 为 true 时所有请求绕过环境代理，等价于每个
	// Request 都设 NoProxy。构造后设置一次，不再变更。
	AlwaysNoProxy bool
}

func NewClient(retry RetryPolicy) *Client {
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetry
	}
	base := http.DefaultTransport.(*http.Transport).Clone()
	noProxy := base.Clone()
	noProxy.Proxy = nil
	return &Client{
		retry:     retry,
		proxied:   &http.Client{Transport: base},
		proxyless: &http.Client{Transport: noProxy},
	}
}

// Fetch 抓取一个页面：有界重试 + 编码自动识别。
// 失败返回 *Error；成功时 Result.Text 一定是合法 UTF-8。
func (c *Client) Fetch(ctx context.Context, req Request) (*Result, error) {
	u, err := url.Parse(req.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &Error{Kind: KindConnectionFailed, URL: req.URL, Err: errors.New("invalid absolute url")}
	}

	var last *Error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		res, ferr := c.once(ctx, req)
		if ferr == nil {
			return res, nil
		}
		last = ferr
		if !retryable(ferr) || attempt == c.retry.MaxAttempts-1 {
			break
		}
		wait := c.retry.backoff(attempt)
		log.Printf("fetch %s failed (attempt %d/%d): %v, retry in %s", req.URL, attempt+1, c.retry.MaxAttempts, ferr, wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, &Error{Kind: KindTimeout, URL: req.URL, Err: ctx.Err()}
		}
	}
	return nil, last
}

func (c *Client) once(ctx context.Context, req Request) (*Result, *Error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(req.Form) > 0 {
		body = strings.NewReader(req.Form.Encode())
	}
	hreq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, &Error{Kind: KindConnectionFailed, URL: req.URL, Err: err}
	}
	for k, v := range DefaultHeaders {
		hreq.Header.Set(k, v)
	}
	if len(req.Form) > 0 {
		hreq.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	}
	for k, v := range req.Headers {
		hreq.Header.Set(k, v)
	}

	hc := c.proxied
	if req.NoProxy || c.AlwaysNoProxy {
		hc = c.proxyless
	}
	resp, err := hc.Do(hreq)
	if err != nil {
		return nil, classifyNetErr(req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &Error{Kind: KindHTTPStatus, Status: resp.StatusCode, URL: req.URL}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyNetErr(req.URL, err)
	}

	text, encName := decodeBody(raw, resp.Header.Get("Content-Type"))
	finalURL := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &Result{
		Body:       raw,
		Text:       text,
		Encoding:   encName,
		StatusCode: resp.StatusCode,
		FinalURL:   finalURL,
	}, nil
}

func classifyNetErr(rawURL string, err error) *Error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &Error{Kind: KindTimeout, URL: rawURL, Err: err}
	}
	return &Error{Kind: KindConnectionFailed, URL: rawURL, Err: err}
}
