package sources

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fengzhi/newshub/internal/crawl"
	"github.com/fengzhi/newshub/internal/fetch"
	"github.com/fengzhi/newshub/internal/news"
	"github.com/fengzhi/newshub/internal/rank"
	"github.com/fengzhi/newshub/internal/sections"
)

const chinaisaOrigin = "中国钢铁工业协会"

// 门户导出的内网文件路径，正文里偶尔残留，按前端 content.js 的方式改写
const (
	chinaisaLegacyPath = `http://www.chinaisa.org.cn:80/gxportal/EC/DM/ECDM0104.jsp?filePath=\192.168.10.202file/AppFiles/gxportalUploadFiles/File/`
	chinaisaFileBase   = "http://www.chinaisa.org.cn/gxportalFile/"
)

// columnSource 把中钢协门户的一个栏目适配成通用 Source：
// 列表是 AJAX 返回的 HTML 片段，详情走 viewArticleById
type columnSource struct {
	portal   *sections.Portal
	columnID string
	pageSize int
}

func (c *columnSource) BuildListRequest(page int) fetch.Request {
	return c.portal.ColumnListRequest(c.columnID, page, c.pageSize)
}

// 门户列表不保证严格日期倒序（置顶/要闻混排），时间窗只过滤不截停
func (c *columnSource) DateDescending() bool { return false }

func (c *columnSource) ExtractPage(res *fetch.Result) ([]news.Item, bool, error) {
	var page sections.ColumnPage
	if err := json.Unmarshal([]byte(res.Text), &page); err != nil {
		return nil, false, &crawl.ExtractError{Reason: "column list is not json"}
	}
	if page.ArticleListHTML == "" {
		return nil, false, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.ArticleListHTML))
	if err != nil {
		return nil, false, &crawl.ExtractError{Reason: err.Error()}
	}

	var items []news.Item
	doc.Find("ul.list li").Each(func(_ int, li *goquery.Selection) {
		a := li.Find("a[href]").First()
		if a.Length() == 0 {
			return
		}
		dateText := li.Find("span.times").Text()
		if dateText == "" {
			dateText = li.Text()
		}
		items = append(items, news.Item{
			Title:       strings.TrimSpace(a.Text()),
			URL:         absURL(c.portal.IndexBase, strings.TrimSpace(a.AttrOr("href", ""))),
			Origin:      chinaisaOrigin,
			PublishDate: news.ParseDate(dateText),
		})
	})
	// 模板兜底：片段里任何非脚本链接
	if len(items) == 0 {
		doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href := strings.TrimSpace(a.AttrOr("href", ""))
			title := strings.TrimSpace(a.Text())
			if href == "" || title == "" || strings.Contains(href, "javascript:") {
				return
			}
			items = append(items, news.Item{
				Title:       title,
				URL:         absURL(c.portal.IndexBase, href),
				Origin:      chinaisaOrigin,
				PublishDate: news.ParseDate(title),
			})
		})
	}
	return items, len(items) >= c.pageSize, nil
}

// BuildDetailRequest 优先走 viewArticleById 接口，URL 上没有
// articleId/columnId 时退回直接 GET 详情页
func (c *columnSource) BuildDetailRequest(it news.Item) fetch.Request {
	if aid, cid, ok := articleParams(it.URL); ok {
		req := c.portal.ColumnListRequest(cid, 0, 0) // 复用门户请求头
		payload, _ := json.Marshal(map[string]string{"articleId": aid, "columnId": cid, "type": ""})
		req.URL = c.portal.PortalBase + "viewArticleById"
		req.Form = url.Values{"params": {string(payload)}}
		req.Headers["Referer"] = c.portal.IndexBase + "content.html?articleId=" + aid + "&columnId=" + cid
		return req
	}
	return fetch.Request{URL: it.URL, Timeout: 15 * time.Second, NoProxy: true}
}

func (c *columnSource) ExtractDetail(res *fetch.Result) (string, *time.Time) {
	text := strings.TrimSpace(res.Text)
	var contentHTML string
	if strings.HasPrefix(text, "{") {
		var view struct {
			ArticleContent string `json:"article_content"`
		}
		if err := json.Unmarshal([]byte(text), &view); err == nil {
			contentHTML = view.ArticleContent
		}
	} else {
		contentHTML = text
	}
	contentHTML = strings.ReplaceAll(contentHTML, chinaisaLegacyPath, chinaisaFileBase)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(contentHTML))
	if err != nil {
		return "", nil
	}
	node := doc.Selection
	if found := doc.Find("div#article_content").First(); found.Length() > 0 {
		node = found
	}
	body := node.Text()
	return news.Summarize(body, summaryLimit), news.ParseDate(doc.Text())
}

func articleParams(raw string) (articleID, columnID string, ok bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", false
	}
	q := u.Query()
	aid, cid := q.Get("articleId"), q.Get("columnId")
	return aid, cid, aid != "" && cid != ""
}

// ChinaISA 是带两级栏目发现的中钢协来源：先解析拓扑决定要翻哪些
// 栏目/子栏目，再逐个交给翻页器。
type ChinaISA struct {
	client     *fetch.Client
	discoverer *sections.Discoverer
	// Columns 非空时只抓这些栏目（外部可传 columnId 列表）
	Columns  []string
	PageSize int
}

func NewChinaISA(client *fetch.Client, d *sections.Discoverer) *ChinaISA {
	return &ChinaISA{client: client, discoverer: d, PageSize: 20}
}

func (s *ChinaISA) ID() string { return "chinaisa" }

func (s *ChinaISA) Run(ctx context.Context, policy crawl.Policy) crawl.Outcome {
	return crawl.Safely(func() crawl.Outcome {
		if err := policy.Validate(); err != nil {
			return crawl.Classify(nil, err)
		}

		columnIDs := s.workColumns(ctx, policy.IncludeSubtabs)

		var batches []rank.Batch
		progress := false
		for _, cid := range columnIDs {
			src := &columnSource{portal: s.discoverer.Portal, columnID: cid, pageSize: s.PageSize}
			items, err := crawl.Paginate(ctx, s.client, src, policy)
			if err != nil {
				if !progress {
					return crawl.Classify(nil, err)
				}
				log.Printf("chinaisa: column %s failed after progress: %v", cid, err)
				continue
			}
			progress = true
			items = crawl.EnrichDetails(ctx, s.client, src, items)
			// 门户栏目自身就是权威排序，保持原序合并
			batches = append(batches, rank.Batch{Channel: cid, Kind: rank.KindPolicy, Items: items})
		}
		merged := rank.Merge(batches, nil)
		if len(merged) > policy.MaxItems {
			merged = merged[:policy.MaxItems]
		}
		return crawl.Classify(merged, nil)
	})
}

// workColumns 决定本次要翻页的栏目集合：指定栏目 > 默认八大栏目，
// includeSubtabs 时把发现到的子栏目排在父栏目之后。
// 拓扑发现失败只降级为基线栏目，不让一次探测失败毁掉整个抓取。
func (s *ChinaISA) workColumns(ctx context.Context, includeSubtabs bool) []string {
	base := s.Columns
	if len(base) == 0 {
		base = sections.DefaultColumnIDs()
	}
	if !includeSubtabs {
		return base
	}

	topo, err := s.discoverer.Discover(ctx, true)
	if err != nil {
		log.Printf("chinaisa: discovery failed, fall back to baseline columns: %v", err)
		return base
	}

	var out []string
	seen := make(map[string]bool)
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, cid := range base {
		add(cid)
		for _, sub := range topo.Subtabs[cid] {
			if sub.Discovered {
				add(sub.ID)
			}
		}
	}
	return out
}
