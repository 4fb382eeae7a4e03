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
	"golang.org/x/net/html"
)

// AibaseDaily 抓取 Aibase AI 日报。入口页只挂最新一期的链接，
// 一期是一篇长文：正文里 strong 开头的段落是条目标题，
// 其后的普通段落累积为该条目的摘要。
type AibaseDaily struct {
	client *fetch.Client
	Base   string
}

func NewAibaseDaily(client *fetch.Client) *AibaseDaily {
	return &AibaseDaily{client: client, Base: "https://news.aibase.com"}
}

func (s *AibaseDaily) ID() string { return "aibase" }

func (s *AibaseDaily) Run(ctx context.Context, policy crawl.Policy) crawl.Outcome {
	return crawl.Safely(func() crawl.Outcome {
		if err := policy.Validate(); err != nil {
			return crawl.Classify(nil, err)
		}

		dailyURL, err := s.latestDailyURL(ctx)
		if err != nil {
			return crawl.Classify(nil, err)
		}
		res, err := s.client.Fetch(ctx, fetch.Request{URL: dailyURL, Timeout: 15 * time.Second})
		if err != nil {
			return crawl.Classify(nil, err)
		}
		items, err := parseAibaseDaily(res.Text, dailyURL)
		if err != nil {
			return crawl.Classify(nil, err)
		}
		if len(items) > policy.MaxItems {
			items = items[:policy.MaxItems]
		}
		return crawl.Classify(items, nil)
	})
}

// latestDailyURL 从日报入口页取最新一期的地址
func (s *AibaseDaily) latestDailyURL(ctx context.Context) (string, error) {
	res, err := s.client.Fetch(ctx, fetch.Request{URL: s.Base + "/zh/daily", Timeout: 15 * time.Second})
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.Text))
	if err != nil {
		return "", &crawl.ExtractError{Reason: err.Error()}
	}
	href := ""
	doc.Find("a[href*='/daily/']").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href = strings.TrimSpace(a.AttrOr("href", ""))
		return href == ""
	})
	if href == "" {
		return "", &crawl.ExtractError{Reason: "日报入口页没有找到任何一期链接"}
	}
	return absURL(s.Base, href), nil
}

// parseAibaseDaily 把一期日报拆成条目。发布日期取北京时间的今天
// （日报当天发布）；同一期共用落地页，URL 加锚点区分条目，
// 不然 URL 去重会把整期吞成一条。
func parseAibaseDaily(pageHTML, dailyURL string) ([]news.Item, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, &crawl.ExtractError{Reason: err.Error()}
	}
	content := doc.Find("div.post-content").First()
	if content.Length() == 0 {
		content = doc.Find("div[class*='post-content']").First()
	}
	if content.Length() == 0 {
		return nil, &crawl.ExtractError{Reason: "日报正文容器缺失"}
	}

	today := dayEast8(time.Now())
	var items []news.Item
	var cur *news.Item
	flush := func() {
		if cur != nil && cur.Title != "" {
			items = append(items, *cur)
		}
		cur = nil
	}

	content.Find("p").Each(func(_ int, p *goquery.Selection) {
		if title, ok := aibaseItemTitle(p); ok {
			flush()
			cur = &news.Item{
				Title:       title,
				URL:         fmt.Sprintf("%s#item-%d", dailyURL, len(items)+1),
				Origin:      "Aibase",
				PublishDate: &today,
			}
			return
		}
		if cur == nil {
			return
		}
		text := strings.TrimSpace(p.Text())
		if text == "" {
			return
		}
		if cur.Summary != "" {
			cur.Summary += " "
		}
		cur.Summary = news.Summarize(cur.Summary+text, summaryLimit)
	})
	flush()
	return items, nil
}

// aibaseItemTitle 判断段落是否为条目标题：首个元素子节点是 strong
// 且其中不含图片（含图的 strong 是插图说明，不是标题）
func aibaseItemTitle(p *goquery.Selection) (string, bool) {
	var firstElem *html.Node
	for n := p.Nodes[0].FirstChild; n != nil; n = n.NextSibling {
		if n.Type == html.ElementNode {
			firstElem = n
			break
		}
		if n.Type == html.TextNode && strings.TrimSpace(n.Data) != "" {
			return "", false
		}
	}
	if firstElem == nil || firstElem.Data != "strong" {
		return "", false
	}
	strong := p.Find("strong").First()
	if strong.Find("img").Length() > 0 {
		return "", false
	}
	title := strings.TrimSpace(strong.Text())
	return title, title != ""
}
