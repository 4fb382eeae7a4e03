// Package render 是动态渲染 sidecar 的 HTTP 客户端。
// 部分政务站点列表/正文由前端脚本填充，静态抓取拿不到内容时走这里兜底。
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 40 * time.Second},
	}
}

// Options 控制 sidecar 怎么取内容。调用方最了解目标站的 DOM，
// 容器选择器随请求传过去，sidecar 本身不认识任何站点。
type Options struct {
	// Selectors 按优先级列出目标容器；第一个渲染出内容的命中即返回。
	// 为空时 sidecar 全页收集段落兜底。
	Selectors []string
	MaxChars  int
	// HTML 为 true 时返回容器的 outerHTML，调用方自行解析（列表页场景）；
	// 否则返回清理过的 innerText
	HTML bool
}

type renderRequest struct {
	URL       string   `json:"url"`
	Selectors []string `json:"selectors,omitempty"`
	MaxChars  int      `json:"maxChars,omitempty"`
	HTML      bool     `json:"html,omitempty"`
}

type renderResponse struct {
	OK      bool   `json:"ok"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Render 让 sidecar 渲染页面并按 Options 提取内容
func (c *Client) Render(ctx context.Context, pageURL string, opts Options) (string, error) {
	body, err := json.Marshal(renderRequest{
		URL:       pageURL,
		Selectors: opts.Selectors,
		MaxChars:  opts.MaxChars,
		HTML:      opts.HTML,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/render", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("render: unexpected status %d", resp.StatusCode)
	}

	var out renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if !out.OK {
		if out.Error == "" {
			out.Error = "render failed"
		}
		return "", errors.New(out.Error)
	}
	return out.Content, nil
}
