package sources

import (
	"context"
	"time"

	"github.com/fengzhi/newshub/internal/crawl"
	"github.com/fengzhi/newshub/internal/news"
	"github.com/fengzhi/newshub/internal/rank"
	"github.com/mmcdole/gofeed"
)

const chinadailyFeedURL = "http://www.chinadaily.com.cn/rss/china_rss.xml"

// ChinaDailyRSS 通过 RSS 抓取中国日报要闻，属资讯类（按日期倒序输出）
type ChinaDailyRSS struct {
	FeedURL string
}

func NewChinaDailyRSS() *ChinaDailyRSS {
	return &ChinaDailyRSS{FeedURL: chinadailyFeedURL}
}

func (s *ChinaDailyRSS) ID() string { return "chinadaily" }

func (s *ChinaDailyRSS) Run(ctx context.Context, policy crawl.Policy) crawl.Outcome {
	return crawl.Safely(func() crawl.Outcome {
		if err := policy.Validate(); err != nil {
			return crawl.Classify(nil, err)
		}

		fctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		feed, err := gofeed.NewParser().ParseURLWithContext(s.FeedURL, fctx)
		if err != nil {
			return crawl.Classify(nil, err)
		}

		var threshold time.Time
		if policy.SinceDays > 0 {
			threshold = dayEast8(time.Now()).AddDate(0, 0, -policy.SinceDays)
		}

		var items []news.Item
		for _, entry := range feed.Items {
			if len(items) >= policy.MaxItems {
				break
			}
			var date *time.Time
			if entry.PublishedParsed != nil {
				// RSS 时间戳多带 GMT 时区，按北京时间归到发布日
				d := dayEast8(*entry.PublishedParsed)
				date = &d
			}
			if policy.SinceDays > 0 && date != nil && date.Before(threshold) {
				continue
			}
			items = append(items, news.Item{
				Title:       entry.Title,
				URL:         entry.Link,
				Origin:      "中国日报",
				Summary:     news.Summarize(entry.Description, summaryLimit),
				PublishDate: date,
			})
		}

		merged := rank.Merge([]rank.Batch{{Channel: "china", Kind: rank.KindDigest, Items: items}}, nil)
		return crawl.Classify(merged, nil)
	})
}
