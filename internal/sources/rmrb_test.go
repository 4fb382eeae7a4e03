package sources

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fengzhi/newshub/internal/crawl"
	"github.com/fengzhi/newshub/internal/fetch"
)

const rmrbFrontHTML = `<html><body>
<div id="pageList"><ul>
	<div class="right_title-name"><a href="node_01.html">第01版：要闻</a></div>
	<div class="right_title-name"><a href="node_02.html">第02版：要闻</a></div>
</ul></div>
<div id="titleList"><ul>
	<li><a href="content_1.html">头版头条</a></li>
	<li><a href="node_02.html">转第02版</a></li>
</ul></div>
</body></html>`

const rmrbPage2HTML = `<html><body>
<div id="titleList"><ul>
	<li><a href="content_2.html">二版要闻</a></li>
</ul></div>
</body></html>`

const rmrbArticleHTML = `<html><body>
<h1>头版头条</h1>
<div id="ozoom"><p>今日要闻正文第一段。</p><p>第二段。</p></div>
</body></html>`

func rmrbTestServer(t *testing.T, day time.Time) *PeopleDaily {
	t.Helper()
	ym, d := day.Format("200601"), day.Format("02")
	srv := listServer(t, map[string]string{
		fmt.Sprintf("/rmrb/pc/layout/%s/%s/node_01.html", ym, d):  rmrbFrontHTML,
		fmt.Sprintf("/rmrb/pc/layout/%s/%s/node_02.html", ym, d):  rmrbPage2HTML,
		fmt.Sprintf("/rmrb/pc/content/%s/%s/content_1.html", ym, d): rmrbArticleHTML,
		fmt.Sprintf("/rmrb/pc/content/%s/%s/content_2.html", ym, d): rmrbArticleHTML,
	})
	s := NewPeopleDaily(fetch.NewClient(fetch.RetryPolicy{MaxAttempts: 1, Delay: time.Millisecond}))
	s.Base = srv.URL + "/rmrb/pc"
	return s
}

func TestPeopleDailyRun(t *testing.T) {
	day := dayEast8(time.Now())
	s := rmrbTestServer(t, day)

	o := s.Run(context.Background(), crawl.Policy{MaxPages: 5, MaxItems: 10})
	if o.Status != crawl.StatusOK {
		t.Fatalf("Outcome = %+v, want OK", o)
	}
	// 版面导航链接不算文章，两版各一篇
	if len(o.Items) != 2 {
		t.Fatalf("len(items) = %d, want 2: %+v", len(o.Items), o.Items)
	}
	it := o.Items[0]
	if it.Title != "头版头条" || it.Origin != "人民日报" {
		t.Fatalf("item = %+v", it)
	}
	if !it.Dated() || !it.PublishDate.Equal(day) {
		t.Fatalf("publish date = %v, want %v", it.PublishDate, day)
	}
	if !strings.Contains(it.Summary, "正文第一段") {
		t.Fatalf("摘要未补全: %+v", it)
	}
	if !strings.Contains(it.URL, "/content/") {
		t.Fatalf("文章地址 = %q", it.URL)
	}
}

func TestPeopleDailyBacksUpToPreviousEdition(t *testing.T) {
	// 当天一期还没上线，回退到昨天那期
	yesterday := dayEast8(time.Now()).AddDate(0, 0, -1)
	s := rmrbTestServer(t, yesterday)

	o := s.Run(context.Background(), crawl.Policy{MaxPages: 5, MaxItems: 10})
	if o.Status != crawl.StatusOK {
		t.Fatalf("Outcome = %+v, want OK", o)
	}
	if !o.Items[0].PublishDate.Equal(yesterday) {
		t.Fatalf("publish date = %v, want %v", o.Items[0].PublishDate, yesterday)
	}
}

func TestPeopleDailyMaxPagesLimitsLayouts(t *testing.T) {
	day := dayEast8(time.Now())
	s := rmrbTestServer(t, day)

	o := s.Run(context.Background(), crawl.Policy{MaxPages: 1, MaxItems: 10})
	if o.Status != crawl.StatusOK {
		t.Fatalf("Outcome = %+v, want OK", o)
	}
	// 只允许一个版面时收不到第二版的文章
	if len(o.Items) != 1 {
		t.Fatalf("len(items) = %d, want 1: %+v", len(o.Items), o.Items)
	}
}

func TestPeopleDailyOldEditionOutsideWindow(t *testing.T) {
	old := dayEast8(time.Now()).AddDate(0, 0, -5)
	s := rmrbTestServer(t, old)

	o := s.Run(context.Background(), crawl.Policy{MaxPages: 5, MaxItems: 10, SinceDays: 2})
	if o.Status != crawl.StatusEmpty {
		t.Fatalf("Outcome = %+v, want EMPTY", o)
	}
}
