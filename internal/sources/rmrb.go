package sources

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fengzhi/newshub/internal/crawl"
	"github.com/fengzhi/newshub/internal/fetch"
	"github.com/fengzhi/newshub/internal/news"
)

// PeopleDaily 抓取人民日报电子版。报纸按“版面”组织而不是翻页列表：
// 先定位最近一期的头版版面，枚举当期所有版面，再从各版面的标题栏
// 收文章链接。当天一期可能尚未上线，最多向前回退 7 天找可用的一期。
type PeopleDaily struct {
	client *fetch.Client
	Base   string
}

const rmrbBackDays = 7

func NewPeopleDaily(client *fetch.Client) *PeopleDaily {
	return &PeopleDaily{client: client, Base: "http://paper.people.com.cn/rmrb/pc"}
}

func (s *PeopleDaily) ID() string { return "rmrb" }

func (s *PeopleDaily) Run(ctx context.Context, policy crawl.Policy) crawl.Outcome {
	return crawl.Safely(func() crawl.Outcome {
		if err := policy.Validate(); err != nil {
			return crawl.Classify(nil, err)
		}

		edition, layouts, err := s.findEdition(ctx)
		if err != nil {
			return crawl.Classify(nil, err)
		}
		if policy.SinceDays > 0 {
			threshold := dayEast8(time.Now()).AddDate(0, 0, -policy.SinceDays)
			if edition.Before(threshold) {
				// 能找到的最近一期已在时间窗之外
				return crawl.Classify(nil, nil)
			}
		}

		if len(layouts) > policy.MaxPages {
			layouts = layouts[:policy.MaxPages]
		}
		items := s.collectArticles(ctx, edition, layouts, policy.MaxItems)
		s.fillSummaries(ctx, items)
		return crawl.Classify(items, nil)
	})
}

// findEdition 从今天起向前找最近一期，返回该期日期和全部版面地址
func (s *PeopleDaily) findEdition(ctx context.Context) (time.Time, []string, error) {
	var lastErr error
	for back := 0; back < rmrbBackDays; back++ {
		day := dayEast8(time.Now()).AddDate(0, 0, -back)
		front := fmt.Sprintf("%s/layout/%s/node_01.html", s.Base, day.Format("200601/02"))
		res, err := s.client.Fetch(ctx, fetch.Request{URL: front, Timeout: 10 * time.Second, NoProxy: true})
		if err != nil {
			lastErr = err
			continue
		}
		layouts, err := parseRmrbLayouts(res.Text, front)
		if err != nil {
			lastErr = err
			continue
		}
		return day, layouts, nil
	}
	return time.Time{}, nil, lastErr
}

// parseRmrbLayouts 从头版页面提取当期全部版面地址（含头版自身）
func parseRmrbLayouts(pageHTML, frontURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, &crawl.ExtractError{Reason: err.Error()}
	}
	links := doc.Find("div#pageList ul div.right_title-name a[href]")
	if links.Length() == 0 {
		links = doc.Find("div.swiper-container div.swiper-slide a[href]")
	}
	var layouts []string
	seen := map[string]bool{}
	links.Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" {
			return
		}
		u := absURL(frontURL, href)
		if !seen[u] {
			seen[u] = true
			layouts = append(layouts, u)
		}
	})
	if len(layouts) == 0 {
		return nil, &crawl.ExtractError{Reason: "头版页面没有版面导航"}
	}
	return layouts, nil
}

// collectArticles 逐版面收文章链接。版面是当期快照，顺序就是版序，
// 单个版面失败只跳过该版。
func (s *PeopleDaily) collectArticles(ctx context.Context, edition time.Time, layouts []string, maxItems int) []news.Item {
	contentBase := fmt.Sprintf("%s/content/%s/", s.Base, edition.Format("200601/02"))
	day := edition
	var items []news.Item
	seen := map[string]bool{}
	for _, layout := range layouts {
		if len(items) >= maxItems {
			break
		}
		res, err := s.client.Fetch(ctx, fetch.Request{URL: layout, Timeout: 10 * time.Second, NoProxy: true})
		if err != nil {
			log.Printf("rmrb: layout %s: %v", layout, err)
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.Text))
		if err != nil {
			log.Printf("rmrb: layout %s: %v", layout, err)
			continue
		}
		links := doc.Find("div#titleList ul li a[href]")
		if links.Length() == 0 {
			links = doc.Find("ul.news-list li a[href]")
		}
		links.Each(func(_ int, a *goquery.Selection) {
			if len(items) >= maxItems {
				return
			}
			href := strings.TrimSpace(a.AttrOr("href", ""))
			title := strings.TrimSpace(a.Text())
			// 标题栏里混着版面跳转链接，只有 content_*.html 是文章
			if title == "" || !strings.Contains(href, "content") {
				return
			}
			u := absURL(contentBase, href)
			if seen[u] {
				return
			}
			seen[u] = true
			items = append(items, news.Item{
				Title:       title,
				URL:         u,
				Origin:      "人民日报",
				PublishDate: &day,
			})
		})
	}
	return items
}

// fillSummaries 并发抓文章页补摘要，正文在 div#ozoom 的段落里
func (s *PeopleDaily) fillSummaries(ctx context.Context, items []news.Item) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, detailFetchWorkers)
	for i := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			res, err := s.client.Fetch(ctx, fetch.Request{URL: items[i].URL, Timeout: 10 * time.Second, NoProxy: true})
			if err != nil {
				log.Printf("rmrb: article %s: %v", items[i].URL, err)
				return
			}
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.Text))
			if err != nil {
				return
			}
			body := doc.Find("div#ozoom p")
			if body.Length() == 0 {
				body = doc.Find("p")
			}
			var parts []string
			body.Each(func(_ int, p *goquery.Selection) {
				if t := strings.TrimSpace(p.Text()); t != "" {
					parts = append(parts, t)
				}
			})
			items[i].Summary = news.Summarize(strings.Join(parts, " "), summaryLimit)
		}(i)
	}
	wg.Wait()
}

const detailFetchWorkers = 4
