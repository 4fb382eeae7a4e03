// Package sources 聚集各站点的适配器实现。核心流水线只认 crawl.Source，
// 每个站点文件只负责：列表页 URL 规则、列表/详情的选择器、频道表。
package sources

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fengzhi/newshub/internal/crawl"
	"github.com/fengzhi/newshub/internal/fetch"
	"github.com/fengzhi/newshub/internal/news"
	"github.com/fengzhi/newshub/internal/rank"
	"github.com/fengzhi/newshub/internal/render"
)

const summaryLimit = 200

// 站点发布时间都按北京时间理解，“今天”也要按东八区算，
// 不然 UTC 凌晨会把当天的稿子归到昨天
var locEast8 = time.FixedZone("CST", 8*60*60)

// dayEast8 取 t 对应的北京时间零点
func dayEast8(t time.Time) time.Time {
	y, m, d := t.In(locEast8).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, locEast8)
}

// pageURL 把页码（从 1 开始）映射为列表页地址，空串表示该页不存在
type pageURL func(page int) string

// indexPaged 返回政府/协会站常见的翻页规则：
// 第 1 页是 index.html，第 n 页是 index_{n-1}.html
func indexPaged(first, pattern string) pageURL {
	return func(page int) string {
		if page <= 1 {
			return first
		}
		return fmt.Sprintf(pattern, page-1)
	}
}

// listExtractor 从列表页文档提取 (title, href, dateText) 三元组
type listExtractor func(doc *goquery.Document) []listRow

type listRow struct {
	title    string
	href     string
	dateText string
}

// liRows 是最常见的列表结构：li 里一个链接 + 一个带日期的 span。
// 没有日期 span 的 li 多半是导航链接，直接跳过。
// scope 容器没命中时退回全文档扫 li，站点改版不至于直接抓空。
func liRows(scope string) listExtractor {
	return func(doc *goquery.Document) []listRow {
		sel := "li"
		if scope != "" && doc.Find(scope).Length() > 0 {
			sel = scope + " li"
		}
		var rows []listRow
		doc.Find(sel).Each(func(_ int, li *goquery.Selection) {
			a := li.Find("a[href]").First()
			span := li.Find("span").First()
			if a.Length() == 0 || span.Length() == 0 {
				return
			}
			title := strings.TrimSpace(a.AttrOr("title", ""))
			if title == "" {
				title = strings.TrimSpace(a.Text())
			}
			href := strings.TrimSpace(a.AttrOr("href", ""))
			if title == "" || href == "" || strings.Contains(href, "javascript:") {
				return
			}
			rows = append(rows, listRow{title: title, href: href, dateText: strings.TrimSpace(span.Text())})
		})
		return rows
	}
}

// 详情页正文容器的常见写法，按命中率排序。
// div#Zoom 和 div#zoom 都要列：CSS 的 ID 选择器区分大小写，交通运输部用大写
var contentSelectors = []string{
	"div.TRS_Editor", "div#zoom", "div#Zoom", "div.art-con", "div.article_con",
	"div.article-content", "div.detail-main", "div.content-txt", "div.zhengwen",
	"div.content", "article",
}

// htmlSource 是静态 HTML“列表页 + 详情页”来源的通用实现
type htmlSource struct {
	origin  string
	base    string // 相对链接的拼接基准
	pages   pageURL
	extract listExtractor
	// descending 表示列表按日期倒序，时间窗可以截停翻页
	descending bool
	// single 表示只有首页可靠（翻页地址不稳定的站点），不向后翻
	single bool
}

func (s *htmlSource) BuildListRequest(page int) fetch.Request {
	return fetch.Request{URL: s.pages(page), Timeout: 10 * time.Second, NoProxy: true}
}

func (s *htmlSource) DateDescending() bool { return s.descending }

func (s *htmlSource) ExtractPage(res *fetch.Result) ([]news.Item, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.Text))
	if err != nil {
		return nil, false, &crawl.ExtractError{Reason: err.Error()}
	}
	rows := s.extract(doc)
	items := make([]news.Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, news.Item{
			Title:       r.title,
			URL:         absURL(s.base, r.href),
			Origin:      s.origin,
			PublishDate: news.ParseDate(r.dateText),
		})
	}
	// 静态分页站没有显式的结束标记，翻到空页为止
	return items, !s.single && len(items) > 0, nil
}

func (s *htmlSource) BuildDetailRequest(it news.Item) fetch.Request {
	return fetch.Request{URL: it.URL, Timeout: 10 * time.Second, NoProxy: true}
}

func (s *htmlSource) ExtractDetail(res *fetch.Result) (string, *time.Time) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.Text))
	if err != nil {
		return "", nil
	}
	node := doc.Selection
	for _, sel := range contentSelectors {
		if found := doc.Find(sel).First(); found.Length() > 0 {
			node = found
			break
		}
	}
	return news.Summarize(node.Text(), summaryLimit), news.ParseDate(doc.Text())
}

func absURL(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(u).String()
}

// channelDef 是多频道来源里的一个频道
type channelDef struct {
	name string
	kind rank.Kind
	src  crawl.Source
}

// Renderer 渲染动态页面并按 Options 取内容。
// 详情兜底用文本模式，MOFCOM 这类前端填充的列表页用 HTML 模式。
type Renderer interface {
	Render(ctx context.Context, pageURL string, opts render.Options) (string, error)
}

// multiChannel 把若干频道的抓取合成一次调用：逐频道翻页、补详情、
// 归一排序后按全局 MaxItems 截断。频道顺序即输出优先级。
type multiChannel struct {
	id       string
	client   *fetch.Client
	channels []channelDef
	demote   rank.DemotePolicy
	renderer Renderer
	// renderSelectors 是本站详情正文的容器提示，随渲染请求带给 sidecar
	renderSelectors []string
}

// WithRenderer 为详情抓取配置动态渲染兜底，r 为 nil 表示不启用。
// selectors 指定本站正文容器，缺省退回通用容器表。
func (m *multiChannel) WithRenderer(r Renderer, selectors ...string) *multiChannel {
	m.renderer = r
	m.renderSelectors = selectors
	return m
}

func (m *multiChannel) ID() string { return m.id }

func (m *multiChannel) Run(ctx context.Context, policy crawl.Policy) crawl.Outcome {
	return crawl.Safely(func() crawl.Outcome {
		if err := policy.Validate(); err != nil {
			return crawl.Classify(nil, err)
		}
		var batches []rank.Batch
		progress := false
		for _, ch := range m.channels {
			items, err := crawl.Paginate(ctx, m.client, ch.src, policy)
			if err != nil {
				if !progress {
					return crawl.Classify(nil, err)
				}
				// 已有进展时宁可丢掉后续频道也不失败整次调用
				log.Printf("%s: channel %s failed after progress: %v", m.id, ch.name, err)
				continue
			}
			progress = true
			if ds, ok := ch.src.(crawl.DetailSource); ok {
				items = crawl.EnrichDetails(ctx, m.client, ds, items)
			}
			if m.renderer != nil {
				items = m.renderMissing(ctx, items)
			}
			batches = append(batches, rank.Batch{Channel: ch.name, Kind: ch.kind, Items: items})
		}
		merged := rank.Merge(batches, m.demote)
		if len(merged) > policy.MaxItems {
			merged = merged[:policy.MaxItems]
		}
		return crawl.Classify(merged, nil)
	})
}

const renderWorkers = 2 // headless 渲染开销大，并发压低

// renderMissing 对静态抓取后仍缺摘要的条目走渲染兜底，失败只跳过
func (m *multiChannel) renderMissing(ctx context.Context, items []news.Item) []news.Item {
	out := make([]news.Item, len(items))
	copy(out, items)

	opts := render.Options{Selectors: m.renderSelectors, MaxChars: summaryLimit * 2}
	if len(opts.Selectors) == 0 {
		opts.Selectors = contentSelectors
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, renderWorkers)
	for i := range out {
		if out[i].Summary != "" {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			text, err := m.renderer.Render(ctx, out[i].URL, opts)
			if err != nil {
				log.Printf("%s: render %s: %v", m.id, out[i].URL, err)
				return
			}
			out[i].Summary = news.Summarize(text, summaryLimit)
		}(i)
	}
	wg.Wait()
	return out
}
