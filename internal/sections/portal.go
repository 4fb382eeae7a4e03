// Package sections 负责中钢协门户的两级栏目拓扑发现：
// 顶层栏目来自 index.js 探测，三个指定栏目再各发一次请求展开子栏目，
// 发现结果与静态基线对账，输出 added / missing 观测集。
package sections

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/fengzhi/newshub/internal/fetch"
)

const (
	DefaultPortalBase = "https://www.chinaisa.org.cn/gxportal/xfpt/portal/"
	DefaultIndexBase  = "https://www.chinaisa.org.cn/gxportal/xfgl/portal/"
)

// Portal 封装门户的 AJAX 请求方式：POST 表单字段 params 装一个 JSON，
// 后端对 param 字段既接受对象也接受转义字符串，逐个变体尝试。
type Portal struct {
	Client     *fetch.Client
	PortalBase string
	IndexBase  string
}

func NewPortal(client *fetch.Client) *Portal {
	return &Portal{Client: client, PortalBase: DefaultPortalBase, IndexBase: DefaultIndexBase}
}

// ColumnPage 是 getColumnList 的响应体，两个字段都是 HTML 片段
type ColumnPage struct {
	ArticleListHTML string `json:"articleListHtml"`
	ColumnListHTML  string `json:"columnListHtml"`
}

type articleView struct {
	ArticleContent string `json:"article_content"`
}

// ListURL 返回某栏目对外的列表页地址（用于 Referer 与条目 URL 拼接）
func (p *Portal) ListURL(columnID string) string {
	return p.IndexBase + "list.html?columnId=" + columnID
}

// IndexScriptURL 返回门户首页脚本地址，顶层栏目从中枚举
func (p *Portal) IndexScriptURL() string {
	return p.IndexBase + "index.js"
}

// paramVariants 生成 params 表单值的兼容变体：param 内嵌 JSON 字符串的
// 原样与 percent-encoding 两种写法，老后端对两者的解析行为不一致
func paramVariants(columnID string, pageNo, pageSize int) []string {
	type payload struct {
		ColumnID string `json:"columnId"`
		Param    string `json:"param,omitempty"`
	}
	inner, _ := json.Marshal(map[string]int{"pageNo": pageNo, "pageSize": pageSize})

	var out []string
	if pageNo > 0 {
		raw, _ := json.Marshal(payload{ColumnID: columnID, Param: string(inner)})
		out = append(out, string(raw), url.QueryEscape(string(raw)))
	}
	bare, _ := json.Marshal(payload{ColumnID: columnID})
	out = append(out, string(bare))
	return out
}

// ColumnListRequest 构造 getColumnList 的规范形态请求（param 为内嵌 JSON 字符串），
// 供翻页器逐页使用；需要变体回退时用 GetColumnList
func (p *Portal) ColumnListRequest(columnID string, pageNo, pageSize int) fetch.Request {
	variants := paramVariants(columnID, pageNo, pageSize)
	return fetch.Request{
		URL:    p.PortalBase + "getColumnList",
		Method: "POST",
		Form:   url.Values{"params": {variants[0]}},
		Headers: map[string]string{
			"Referer":          p.ListURL(columnID),
			"X-Requested-With": "XMLHttpRequest",
		},
		Timeout: 15 * time.Second,
		NoProxy: true,
	}
}

// GetColumnList 拉取一个栏目的第 pageNo 页（pageNo<=0 表示首屏无分页参数）
func (p *Portal) GetColumnList(ctx context.Context, columnID string, pageNo, pageSize int) (*ColumnPage, error) {
	var lastErr error
	for _, variant := range paramVariants(columnID, pageNo, pageSize) {
		res, err := p.Client.Fetch(ctx, fetch.Request{
			URL:    p.PortalBase + "getColumnList",
			Method: "POST",
			Form:   url.Values{"params": {variant}},
			Headers: map[string]string{
				"Referer":          p.ListURL(columnID),
				"X-Requested-With": "XMLHttpRequest",
			},
			Timeout: 15 * time.Second,
			NoProxy: true,
		})
		if err != nil {
			lastErr = err
			continue
		}
		var page ColumnPage
		if err := json.Unmarshal([]byte(res.Text), &page); err != nil {
			lastErr = fmt.Errorf("getColumnList: unmarshal: %w", err)
			continue
		}
		if page.ArticleListHTML != "" || page.ColumnListHTML != "" {
			return &page, nil
		}
		lastErr = fmt.Errorf("getColumnList: empty column payload for %s", columnID)
	}
	return nil, lastErr
}

// ViewArticle 通过 viewArticleById 拉取文章正文 HTML
func (p *Portal) ViewArticle(ctx context.Context, articleID, columnID string) (string, error) {
	payload, _ := json.Marshal(map[string]string{
		"articleId": articleID,
		"columnId":  columnID,
		"type":      "",
	})
	res, err := p.Client.Fetch(ctx, fetch.Request{
		URL:    p.PortalBase + "viewArticleById",
		Method: "POST",
		Form:   url.Values{"params": {string(payload)}},
		Headers: map[string]string{
			"Referer":          p.IndexBase + "content.html?articleId=" + articleID + "&columnId=" + columnID,
			"X-Requested-With": "XMLHttpRequest",
		},
		Timeout: 15 * time.Second,
		NoProxy: true,
	})
	if err != nil {
		return "", err
	}
	var view articleView
	if err := json.Unmarshal([]byte(res.Text), &view); err != nil {
		return "", fmt.Errorf("viewArticleById: unmarshal: %w", err)
	}
	if view.ArticleContent == "" {
		return "", fmt.Errorf("viewArticleById: empty article_content")
	}
	return view.ArticleContent, nil
}
