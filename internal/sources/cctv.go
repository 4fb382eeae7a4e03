package sources

import (
	"context"
	"strings"
	"time"

	"github.com/fengzhi/newshub/internal/crawl"
	"github.com/fengzhi/newshub/internal/news"
	"github.com/gocolly/colly/v2"
)

const xwlbIndexURL = "https://tv.cctv.com/lm/xwlb/index.shtml"

// CCTVXwlb 抓取新闻联播当日条目列表。单页来源，不涉及翻页，
// 用 colly 直接取列表再套统一的结果分类。
type CCTVXwlb struct{}

func NewCCTVXwlb() *CCTVXwlb { return &CCTVXwlb{} }

func (s *CCTVXwlb) ID() string { return "cctv_xwlb" }

func (s *CCTVXwlb) Run(ctx context.Context, policy crawl.Policy) crawl.Outcome {
	return crawl.Safely(func() crawl.Outcome {
		if err := policy.Validate(); err != nil {
			return crawl.Classify(nil, err)
		}

		c := colly.NewCollector(
			colly.AllowedDomains("tv.cctv.com"),
			colly.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"),
		)
		c.SetRequestTimeout(10 * time.Second)

		// 联播列表是当天节目单，发布日期取北京时间的今天
		today := dayEast8(time.Now())
		items := make([]news.Item, 0, 32)

		c.OnHTML("ul#content li", func(e *colly.HTMLElement) {
			if len(items) >= policy.MaxItems {
				return
			}
			a := e.DOM.Find("a[href]").First()
			href, _ := a.Attr("href")
			title := strings.TrimSpace(a.AttrOr("title", ""))
			if title == "" {
				title = strings.TrimSpace(a.Text())
			}
			if title == "" || href == "" {
				return
			}
			summary := strings.TrimSpace(e.DOM.Find("p").Text())
			items = append(items, news.Item{
				Title:       title,
				URL:         e.Request.AbsoluteURL(href),
				Origin:      "央视新闻联播",
				Summary:     news.Summarize(summary, summaryLimit),
				PublishDate: &today,
			})
		})

		if err := c.Visit(xwlbIndexURL); err != nil {
			return crawl.Classify(nil, err)
		}
		return crawl.Classify(items, nil)
	})
}
