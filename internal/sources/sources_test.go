package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fengzhi/newshub/internal/crawl"
	"github.com/fengzhi/newshub/internal/fetch"
	"github.com/fengzhi/newshub/internal/rank"
	"github.com/fengzhi/newshub/internal/render"
)

func TestDayEast8(t *testing.T) {
	// UTC 晚 20 点已是北京时间次日凌晨
	d := dayEast8(time.Date(2025, 3, 19, 20, 0, 0, 0, time.UTC))
	if d.Format("2006-01-02") != "2025-03-20" {
		t.Fatalf("dayEast8 = %s, want 2025-03-20", d.Format("2006-01-02"))
	}
	// UTC 下午 15:59 仍是北京时间当日
	d = dayEast8(time.Date(2025, 3, 19, 15, 59, 0, 0, time.UTC))
	if d.Format("2006-01-02") != "2025-03-19" {
		t.Fatalf("dayEast8 = %s, want 2025-03-19", d.Format("2006-01-02"))
	}
	if h, m, s := d.Clock(); h != 0 || m != 0 || s != 0 {
		t.Fatalf("dayEast8 应取零点, got %02d:%02d:%02d", h, m, s)
	}
}

func TestIndexPaged(t *testing.T) {
	pages := indexPaged("http://x/zcfg/index.html", "http://x/zcfg/index_%d.html")
	if got := pages(1); got != "http://x/zcfg/index.html" {
		t.Fatalf("page 1 = %q", got)
	}
	// 第 n 页对应 index_{n-1}.html
	if got := pages(2); got != "http://x/zcfg/index_1.html" {
		t.Fatalf("page 2 = %q", got)
	}
	if got := pages(5); got != "http://x/zcfg/index_4.html" {
		t.Fatalf("page 5 = %q", got)
	}
}

func TestAbsURL(t *testing.T) {
	cases := []struct{ base, href, want string }{
		{"http://x.cn/zcfg/", "detail.html", "http://x.cn/zcfg/detail.html"},
		{"http://x.cn/zcfg/", "./202503/t20250320_1.html", "http://x.cn/zcfg/202503/t20250320_1.html"},
		{"http://x.cn/zcfg/", "/other/a.html", "http://x.cn/other/a.html"},
		{"http://x.cn/zcfg/", "http://y.cn/a.html", "http://y.cn/a.html"},
	}
	for _, c := range cases {
		if got := absURL(c.base, c.href); got != c.want {
			t.Fatalf("absURL(%q, %q) = %q, want %q", c.base, c.href, got, c.want)
		}
	}
}

func TestLiRowsSkipsNavLinks(t *testing.T) {
	html := `<div class="box"><ul>
		<li><a href="detail1.html" title="第一条">第一条</a><span>2025-03-20</span></li>
		<li><a href="javascript:void(0)">翻页</a><span>2025-03-20</span></li>
		<li><a href="nav.html">无日期导航</a></li>
		<li><a href="detail2.html">第二条</a><span>2025-03-19</span></li>
	</ul></div>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("goquery error: %v", err)
	}
	rows := liRows("div.box")(doc)
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2: %+v", len(rows), rows)
	}
	if rows[0].title != "第一条" || rows[0].dateText != "2025-03-20" {
		t.Fatalf("row[0] = %+v", rows[0])
	}
	if rows[1].href != "detail2.html" {
		t.Fatalf("row[1] = %+v", rows[1])
	}
}

func TestLiRowsScopeFallback(t *testing.T) {
	// 容器选择器没命中时退回全文档扫 li
	html := `<ul><li><a href="a.html">条目</a><span>2025-01-02</span></li></ul>`
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(html))
	rows := liRows("div.renamed-container")(doc)
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
}

func TestCFLPRowsOldTemplate(t *testing.T) {
	html := `<div class="ul-list"><ul class="new-ul">
		<li>
			<p class="new-title"><a href="/zixun/202503/20/1.html">要闻一</a></p>
			<p class="new-time"><span>来源</span><span>2025-03-20</span></p>
		</li>
	</ul></div>`
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(html))
	rows := cflpRows(doc)
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	if rows[0].title != "要闻一" || rows[0].dateText != "2025-03-20" {
		t.Fatalf("row = %+v", rows[0])
	}
}

func TestHTMLSourceSinglePage(t *testing.T) {
	// 只抓首页的站点不报告后续页，翻页器在第一页就停
	src := &htmlSource{base: "http://x.cn/list/", extract: liRows(""), single: true}
	res := &fetch.Result{Text: `<ul><li><a href="a.html">条目</a><span>2025-01-02</span></li></ul>`}
	items, hasMore, err := src.ExtractPage(res)
	if err != nil || len(items) != 1 {
		t.Fatalf("items = %v, err = %v", items, err)
	}
	if hasMore {
		t.Fatalf("单页来源不应继续翻页")
	}
}

// listServer 模拟“列表页 + 详情页”静态站
func listServer(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testMulti(srv *httptest.Server, kind rank.Kind) *multiChannel {
	base := srv.URL + "/zcfg/"
	return &multiChannel{
		id:     "testsrc",
		client: fetch.NewClient(fetch.RetryPolicy{MaxAttempts: 1, Delay: time.Millisecond}),
		channels: []channelDef{{
			name: "zcfg",
			kind: kind,
			src: &htmlSource{
				origin:  "测试来源",
				base:    base,
				pages:   indexPaged(base+"index.html", base+"index_%d.html"),
				extract: liRows(""),
			},
		}},
	}
}

func TestMultiChannelRunOK(t *testing.T) {
	today := time.Now().Format("2006-01-02")
	list := fmt.Sprintf(`<ul>
		<li><a href="d1.html">条目一</a><span>%s</span></li>
		<li><a href="d2.html">条目二</a><span>%s</span></li>
	</ul>`, today, today)
	detail := `<html><body><div class="TRS_Editor">这里是正文内容，用于生成摘要。发布日期：` + today + `</div></body></html>`
	srv := listServer(t, map[string]string{
		"/zcfg/index.html": list,
		"/zcfg/d1.html":    detail,
		"/zcfg/d2.html":    detail,
	})

	m := testMulti(srv, rank.KindPolicy)
	o := m.Run(context.Background(), crawl.Policy{MaxPages: 2, MaxItems: 10})
	if o.Status != crawl.StatusOK {
		t.Fatalf("Outcome = %+v, want OK", o)
	}
	if len(o.Items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(o.Items))
	}
	// 详情补全：摘要来自 TRS_Editor 正文
	if !strings.Contains(o.Items[0].Summary, "正文内容") {
		t.Fatalf("摘要未补全: %+v", o.Items[0])
	}
	if o.Items[0].Origin != "测试来源" {
		t.Fatalf("Origin = %q", o.Items[0].Origin)
	}
}

func TestMultiChannelRunEmpty(t *testing.T) {
	srv := listServer(t, map[string]string{
		"/zcfg/index.html": `<html><body><p>本栏目暂无内容</p></body></html>`,
	})
	m := testMulti(srv, rank.KindPolicy)
	o := m.Run(context.Background(), crawl.Policy{MaxPages: 2, MaxItems: 10})
	// 抓到了页面但没有条目是 EMPTY，不是 ERROR
	if o.Status != crawl.StatusEmpty || o.Code != crawl.CodeNoData {
		t.Fatalf("Outcome = %+v, want EMPTY/NO_DATA", o)
	}
}

func TestMultiChannelRunFirstPageError(t *testing.T) {
	srv := listServer(t, map[string]string{}) // 所有路径 404
	m := testMulti(srv, rank.KindPolicy)
	o := m.Run(context.Background(), crawl.Policy{MaxPages: 2, MaxItems: 10})
	if o.Status != crawl.StatusError || o.Code != crawl.CodeFetchStatus {
		t.Fatalf("Outcome = %+v, want ERROR/FETCH_HTTP_STATUS", o)
	}
}

func TestMultiChannelRejectsBadPolicy(t *testing.T) {
	srv := listServer(t, map[string]string{})
	m := testMulti(srv, rank.KindPolicy)
	o := m.Run(context.Background(), crawl.Policy{MaxPages: 0, MaxItems: 10})
	if o.Status != crawl.StatusError || o.Code != crawl.CodeBadPolicy {
		t.Fatalf("Outcome = %+v, want ERROR/BAD_POLICY", o)
	}
}

// fakeRenderer 记录收到的渲染参数并原样返回预置内容
type fakeRenderer struct {
	content  string
	lastURL  string
	lastOpts render.Options
}

func (f *fakeRenderer) Render(ctx context.Context, pageURL string, opts render.Options) (string, error) {
	f.lastURL = pageURL
	f.lastOpts = opts
	return f.content, nil
}

func TestMultiChannelRenderFallback(t *testing.T) {
	today := time.Now().Format("2006-01-02")
	srv := listServer(t, map[string]string{
		"/zcfg/index.html": fmt.Sprintf(`<ul><li><a href="d1.html">动态条目</a><span>%s</span></li></ul>`, today),
		// 详情页正文由脚本填充，静态抓取拿不到摘要
		"/zcfg/d1.html": `<html><body><div id="app"></div></body></html>`,
	})
	fr := &fakeRenderer{content: "渲染后的正文"}
	m := testMulti(srv, rank.KindPolicy).WithRenderer(fr, "div.TRS_Editor")
	o := m.Run(context.Background(), crawl.Policy{MaxPages: 1, MaxItems: 10})
	if o.Status != crawl.StatusOK {
		t.Fatalf("Outcome = %+v, want OK", o)
	}
	if o.Items[0].Summary != "渲染后的正文" {
		t.Fatalf("渲染兜底未生效: %+v", o.Items[0])
	}
	// 本站的正文容器提示要随请求带给 sidecar，且详情兜底走文本模式
	if len(fr.lastOpts.Selectors) != 1 || fr.lastOpts.Selectors[0] != "div.TRS_Editor" {
		t.Fatalf("Selectors = %v", fr.lastOpts.Selectors)
	}
	if fr.lastOpts.HTML {
		t.Fatalf("详情兜底不应要求 HTML 模式")
	}
}

func TestRenderFallbackDefaultSelectors(t *testing.T) {
	today := time.Now().Format("2006-01-02")
	srv := listServer(t, map[string]string{
		"/zcfg/index.html": fmt.Sprintf(`<ul><li><a href="d1.html">动态条目</a><span>%s</span></li></ul>`, today),
		"/zcfg/d1.html":    `<html><body><div id="app"></div></body></html>`,
	})
	fr := &fakeRenderer{content: "正文"}
	m := testMulti(srv, rank.KindPolicy).WithRenderer(fr)
	o := m.Run(context.Background(), crawl.Policy{MaxPages: 1, MaxItems: 10})
	if o.Status != crawl.StatusOK {
		t.Fatalf("Outcome = %+v, want OK", o)
	}
	// 没给站点提示时退回通用正文容器表
	if len(fr.lastOpts.Selectors) != len(contentSelectors) {
		t.Fatalf("Selectors = %v", fr.lastOpts.Selectors)
	}
}

func TestMultiChannelGlobalMaxItems(t *testing.T) {
	today := time.Now().Format("2006-01-02")
	var lis strings.Builder
	for i := 0; i < 5; i++ {
		fmt.Fprintf(&lis, `<li><a href="d%d.html">条目%d</a><span>%s</span></li>`, i, i, today)
	}
	list := "<ul>" + lis.String() + "</ul>"
	detail := `<div class="TRS_Editor">正文</div>`
	pages := map[string]string{"/zcfg/index.html": list, "/zixun/index.html": list}
	for i := 0; i < 5; i++ {
		pages[fmt.Sprintf("/zcfg/d%d.html", i)] = detail
		pages[fmt.Sprintf("/zixun/d%d.html", i)] = detail
	}
	srv := listServer(t, pages)

	newCh := func(path string, kind rank.Kind) channelDef {
		base := srv.URL + "/" + path + "/"
		return channelDef{name: path, kind: kind, src: &htmlSource{
			origin: "测试来源", base: base,
			pages:   indexPaged(base+"index.html", base+"index_%d.html"),
			extract: liRows(""),
		}}
	}
	m := &multiChannel{
		id:     "testsrc",
		client: fetch.NewClient(fetch.RetryPolicy{MaxAttempts: 1, Delay: time.Millisecond}),
		channels: []channelDef{
			newCh("zcfg", rank.KindPolicy),
			newCh("zixun", rank.KindDigest),
		},
	}
	o := m.Run(context.Background(), crawl.Policy{MaxPages: 1, MaxItems: 7})
	if o.Status != crawl.StatusOK {
		t.Fatalf("Outcome = %+v, want OK", o)
	}
	// 全局上限跨频道生效
	if len(o.Items) != 7 {
		t.Fatalf("len(items) = %d, want 7", len(o.Items))
	}
	// 频道顺序即优先级：政策频道条目在前
	if o.Items[0].URL == "" || !strings.Contains(o.Items[0].URL, "/zcfg/") {
		t.Fatalf("政策频道应排在前: %+v", o.Items[0])
	}
}
