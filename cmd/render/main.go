package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// render 是动态渲染 sidecar：部分站点的列表/正文由前端脚本填充，
// 静态抓取拿不到内容时由调用方带着目标容器选择器来这里渲染。
// 调用方最了解自己站点的 DOM，所以选择器随请求传入而不是写死在这里。

type renderRequest struct {
	URL string `json:"url"`
	// Selectors 按优先级列出目标容器，第一个有内容的命中即返回；
	// 为空时等 body 就绪后全页兜底
	Selectors []string `json:"selectors,omitempty"`
	MaxChars  int      `json:"maxChars,omitempty"`
	// HTML 为 true 时返回容器的 outerHTML（供调用方自行解析列表），
	// 否则返回 innerText
	HTML bool `json:"html,omitempty"`
}

type renderResponse struct {
	OK      bool   `json:"ok"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

const (
	defaultTextChars = 1000
	maxContentChars  = 200000
	navigateTimeout  = 25 * time.Second
	containerWait    = 8 * time.Second // 容器出现的等待上限，超时转全页兜底
)

func main() {
	// 整个进程复用一个 headless 实例，逐请求开独立超时上下文
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	if err := chromedp.Run(browserCtx); err != nil {
		log.Printf("warn: warmup chromedp failed: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/render", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req renderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, renderResponse{Error: "invalid json"})
			return
		}
		if req.URL == "" {
			writeJSON(w, http.StatusBadRequest, renderResponse{Error: "url is required"})
			return
		}

		content, err := renderPage(browserCtx, req)
		if err != nil {
			log.Printf("render error: %v (url=%s)", err, req.URL)
			writeJSON(w, http.StatusOK, renderResponse{Error: err.Error()})
			return
		}
		if content == "" {
			writeJSON(w, http.StatusOK, renderResponse{Error: "empty content"})
			return
		}
		writeJSON(w, http.StatusOK, renderResponse{OK: true, Content: content})
	})

	addr := ":" + getEnv("PORT", "4000")
	log.Printf("render sidecar listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("http server error: %v", err)
	}
}

// renderPage 渲染页面并提取请求指定的容器。
// 两段式：先轮询等任一选择器出现并带上内容，等不到再全页收段落兜底。
func renderPage(browserCtx context.Context, req renderRequest) (string, error) {
	ctx, cancel := context.WithTimeout(browserCtx, navigateTimeout)
	defer cancel()

	if err := chromedp.Run(ctx,
		chromedp.Navigate(req.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return "", err
	}

	var content string
	if len(req.Selectors) > 0 {
		err := chromedp.Run(ctx, chromedp.Poll(
			pickJS(req.Selectors, req.HTML),
			&content,
			chromedp.WithPollingInterval(250*time.Millisecond),
			chromedp.WithPollingTimeout(containerWait),
		))
		if err != nil && !errors.Is(err, chromedp.ErrPollingTimeout) {
			return "", err
		}
	}
	if content == "" {
		if req.HTML {
			return "", fmt.Errorf("container not found: %s", strings.Join(req.Selectors, ", "))
		}
		// 容器没等到（或没指定），退回全页收集较长段落
		if err := chromedp.Run(ctx, chromedp.Evaluate(paragraphJS, &content)); err != nil {
			return "", err
		}
	}

	if !req.HTML {
		content = tidyText(content)
	}
	return clip(content, req.MaxChars, req.HTML), nil
}

// pickJS 生成轮询表达式：按优先级找第一个有实际内容的容器。
// 返回空串时 Poll 视为未就绪继续等。
func pickJS(selectors []string, wantHTML bool) string {
	sels, _ := json.Marshal(selectors)
	field := "innerText"
	if wantHTML {
		field = "outerHTML"
	}
	return fmt.Sprintf(`(() => {
  for (const sel of %s) {
    const el = document.querySelector(sel);
    if (!el) continue;
    const text = (el.innerText || "").trim();
    if (text.length > 0) return el.%s;
  }
  return "";
})()`, sels, field)
}

// paragraphJS 全页兜底：收集较长段落直到够一个摘要的量
const paragraphJS = `(() => {
  const pieces = [];
  let total = 0;
  for (const node of document.querySelectorAll("p, div")) {
    const t = (node.innerText || "").trim();
    if (t.length < 40) continue;
    pieces.push(t);
    total += t.length;
    if (total > 4000) break;
  }
  return pieces.join("\n\n");
})()`

// tidyText 逐行清理：行内去首尾空白，连续空行压成一个
func tidyText(s string) string {
	var out []string
	blank := true // 吞掉开头的空行
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

// clip 按 rune 截断。HTML 模式不能从中间截（会截坏标签），只设硬上限
func clip(s string, maxChars int, isHTML bool) string {
	limit := maxChars
	if isHTML {
		limit = maxContentChars
	} else if limit <= 0 {
		limit = defaultTextChars
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	if isHTML {
		return "" // 超长 HTML 说明选择器选得太宽，宁可失败
	}
	return string(rs[:limit])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
