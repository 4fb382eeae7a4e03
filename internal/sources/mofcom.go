package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fengzhi/newshub/internal/crawl"
	"github.com/fengzhi/newshub/internal/fetch"
	"github.com/fengzhi/newshub/internal/news"
	"github.com/fengzhi/newshub/internal/rank"
	"github.com/fengzhi/newshub/internal/render"
)

// 商务部新闻发布各频道。列表页由前端脚本填充，静态抓取拿到的是空壳，
// 必须经渲染 sidecar 取 ul.txtList_01 容器的 HTML 再解析；详情页是静态的。
var mofcomChannels = []struct {
	name string
	path string
}{
	{"ldrhd", "xwfb/ldrhd/index.html"},
	{"bldhd", "xwfb/bldhd/index.html"},
}

const mofcomListContainer = "ul.txtList_01"

type MOFCOM struct {
	client   *fetch.Client
	renderer Renderer
	Base     string
}

func NewMOFCOM(client *fetch.Client, renderer Renderer) *MOFCOM {
	return &MOFCOM{client: client, renderer: renderer, Base: "https://www.mofcom.gov.cn/"}
}

func (s *MOFCOM) ID() string { return "mofcom" }

func (s *MOFCOM) Run(ctx context.Context, policy crawl.Policy) crawl.Outcome {
	return crawl.Safely(func() crawl.Outcome {
		if err := policy.Validate(); err != nil {
			return crawl.Classify(nil, err)
		}
		if s.renderer == nil {
			return crawl.Classify(nil, fmt.Errorf("mofcom: 列表页需要动态渲染，未配置 RENDER_URL"))
		}

		var threshold time.Time
		if policy.SinceDays > 0 {
			threshold = dayEast8(time.Now()).AddDate(0, 0, -policy.SinceDays)
		}

		var batches []rank.Batch
		total := 0
		progress := false
		for _, ch := range mofcomChannels {
			items, err := s.listChannel(ctx, ch.path, policy.MaxItems-total, threshold)
			if err != nil {
				if !progress {
					return crawl.Classify(nil, err)
				}
				continue
			}
			progress = true
			// 详情页是静态 HTML，正文容器 div.art-con，走通用补全
			items = crawl.EnrichDetails(ctx, s.client, &htmlSource{origin: "商务部", base: s.Base}, items)
			batches = append(batches, rank.Batch{Channel: ch.name, Kind: rank.KindPolicy, Items: items})
			total += len(items)
		}
		merged := rank.Merge(batches, nil)
		if len(merged) > policy.MaxItems {
			merged = merged[:policy.MaxItems]
		}
		return crawl.Classify(merged, nil)
	})
}

// listChannel 渲染一个频道的列表页并提取条目。
// 列表 li 结构：a 带 href/title 属性，直属 span 是形如 [2025-08-20] 的日期。
func (s *MOFCOM) listChannel(ctx context.Context, path string, limit int, threshold time.Time) ([]news.Item, error) {
	if limit <= 0 {
		return nil, nil
	}
	html, err := s.renderer.Render(ctx, s.Base+path, render.Options{
		Selectors: []string{mofcomListContainer},
		HTML:      true,
	})
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &crawl.ExtractError{Reason: err.Error()}
	}

	var items []news.Item
	doc.Find("li").Each(func(_ int, li *goquery.Selection) {
		if len(items) >= limit {
			return
		}
		a := li.Find("a[href]").First()
		if a.Length() == 0 {
			return
		}
		title := strings.TrimSpace(a.AttrOr("title", ""))
		if title == "" {
			title = strings.TrimSpace(a.Text())
		}
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if title == "" || href == "" {
			return
		}
		dateText := strings.Trim(strings.TrimSpace(li.ChildrenFiltered("span").First().Text()), "[]")
		date := news.ParseDate(dateText)
		if !threshold.IsZero() && date != nil && date.Before(threshold) {
			return
		}
		items = append(items, news.Item{
			Title:       title,
			URL:         absURL(s.Base, href),
			Origin:      "商务部",
			PublishDate: date,
		})
	})
	return items, nil
}
