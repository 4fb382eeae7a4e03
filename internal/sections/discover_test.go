package sections

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fengzhi/newshub/internal/fetch"
)

var (
	colYaowen   = "c42511ce3f868a515b49668dd250290c80d4dc8930c7e455d0e6e14b8033eae2" // 要闻
	colDongtai  = "58af05dfb6b4300151760176d2aad0a04c275aaadbb1315039263f021f920dcd" // 钢协动态
	colTongji   = "2e3c87064bdfc0e43d542d87fce8bcbc8fe0463d5a3da04d7e11b4c7d692194b" // 统计发布
	colFenxi    = "1b4316d9238e09c735365896c8e4f677a3234e8363e5622ae6e79a5900a76f56" // 行业分析
	subShengchn = "3238889ba0fa3aabcf28f40e537d440916a361c9170a4054f9fc43517cb58c1e" // 生产经营

	newColumn = strings.Repeat("ab", 32)
	newSubtab = strings.Repeat("cd", 32)
)

// fakePortal 模拟门户：index.js 枚举顶层栏目，getColumnList 返回
// columnListHtml 子栏目片段。dead 集合里的栏目探测永远失败。
type fakePortal struct {
	liveColumns []string          // index.js 输出顺序
	subtabHTML  map[string]string // columnId -> columnListHtml
	dead        map[string]bool
	indexCalls  int32
}

func (f *fakePortal) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/xfgl/portal/index.js", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.indexCalls, 1)
		var b strings.Builder
		for _, id := range f.liveColumns {
			fmt.Fprintf(&b, "articleList(\"%s\");//%s\n", id, "栏目")
		}
		_, _ = w.Write([]byte(b.String()))
	})
	mux.HandleFunc("/xfpt/portal/getColumnList", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		params := r.FormValue("params")
		var payload struct {
			ColumnID string `json:"columnId"`
		}
		if err := json.Unmarshal([]byte(params), &payload); err != nil {
			if un, uerr := url.QueryUnescape(params); uerr == nil {
				_ = json.Unmarshal([]byte(un), &payload)
			}
		}
		if f.dead[payload.ColumnID] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		page := ColumnPage{
			ArticleListHTML: `<ul class="list"><li><a href="#">占位</a></li></ul>`,
			ColumnListHTML:  f.subtabHTML[payload.ColumnID],
		}
		_ = json.NewEncoder(w).Encode(page)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestDiscoverer(t *testing.T, f *fakePortal) *Discoverer {
	t.Helper()
	srv := f.server(t)
	client := fetch.NewClient(fetch.RetryPolicy{MaxAttempts: 1, Delay: time.Millisecond})
	d := NewDiscoverer(client)
	d.Portal.PortalBase = srv.URL + "/xfpt/portal/"
	d.Portal.IndexBase = srv.URL + "/xfgl/portal/"
	return d
}

func liveExcept(skip ...string) []string {
	skipSet := make(map[string]bool, len(skip))
	for _, id := range skip {
		skipSet[id] = true
	}
	var out []string
	for _, e := range baselineColumns {
		if !skipSet[e.ID] {
			out = append(out, e.ID)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func TestDiscoverReconcilesBaseline(t *testing.T) {
	// 线上比基线少了“钢协动态”，多了一个新栏目
	f := &fakePortal{liveColumns: append(liveExcept(colDongtai), newColumn)}
	d := newTestDiscoverer(t, f)

	topo, err := d.Discover(context.Background(), false)
	if err != nil {
		t.Fatalf("Discover error: %v", err)
	}

	if !contains(topo.Missing, colDongtai) {
		t.Fatalf("missing 应含钢协动态: %v", topo.Missing)
	}
	if !contains(topo.Added, newColumn) {
		t.Fatalf("added 应含新栏目: %v", topo.Added)
	}
	// 基线条目不因缺席被丢弃，仍在拓扑里但标记未确认
	n, ok := topo.Columns[colDongtai]
	if !ok || n.Discovered || !n.Baseline {
		t.Fatalf("基线缺席栏目状态错误: %+v", n)
	}
	if n := topo.Columns[colYaowen]; !n.Discovered {
		t.Fatalf("在线基线栏目应被确认: %+v", n)
	}
	// 分组型栏目的层级标记来自基线
	if topo.Columns[colTongji].Kind != KindGroup {
		t.Fatalf("统计发布应为 group: %+v", topo.Columns[colTongji])
	}
	// 顶层顺序：基线在前、顺序不变，新增追加在后
	last := topo.Groups[len(topo.Groups)-1]
	if last.ID != newColumn || last.Kind != KindColumn {
		t.Fatalf("新增栏目应追加在末尾: %+v", last)
	}
}

func TestDiscoverExpandSubtabs(t *testing.T) {
	subHTML := func(ids ...string) string {
		var b strings.Builder
		for _, id := range ids {
			fmt.Fprintf(&b, `<a href="list.html?columnId=%s">子栏目</a>`, id)
		}
		return b.String()
	}
	f := &fakePortal{
		liveColumns: liveExcept(),
		subtabHTML: map[string]string{
			// 统计发布：确认 1 个基线子栏目 + 1 个新增
			colTongji: subHTML(subShengchn, newSubtab),
		},
		// 行业分析探测失败，不应影响兄弟栏目
		dead: map[string]bool{colFenxi: true},
	}
	d := newTestDiscoverer(t, f)

	topo, err := d.Discover(context.Background(), true)
	if err != nil {
		t.Fatalf("Discover error: %v", err)
	}

	subs := topo.Subtabs[colTongji]
	if len(subs) != len(baselineSubtabs[colTongji])+1 {
		t.Fatalf("统计发布子栏目数 = %d, want 基线+1", len(subs))
	}
	if !contains(topo.Added, newSubtab) {
		t.Fatalf("added 应含新增子栏目: %v", topo.Added)
	}
	if n := topo.Columns[subShengchn]; !n.Discovered || n.ParentID != colTongji {
		t.Fatalf("已确认子栏目状态错误: %+v", n)
	}

	// 失败栏目的基线子栏目全部保留且进入 missing
	for _, e := range baselineSubtabs[colFenxi] {
		if !contains(topo.Missing, e.ID) {
			t.Fatalf("行业分析子栏目 %s 应进入 missing", e.Name)
		}
	}
	if len(topo.Subtabs[colFenxi]) != len(baselineSubtabs[colFenxi]) {
		t.Fatalf("失败栏目仍应保留基线子栏目")
	}
}

func TestDiscoverAddedMissingSorted(t *testing.T) {
	f := &fakePortal{liveColumns: append(liveExcept(colDongtai, colYaowen), newColumn)}
	d := newTestDiscoverer(t, f)

	topo, err := d.Discover(context.Background(), false)
	if err != nil {
		t.Fatalf("Discover error: %v", err)
	}
	for i := 1; i < len(topo.Missing); i++ {
		if topo.Missing[i-1] > topo.Missing[i] {
			t.Fatalf("missing 未排序: %v", topo.Missing)
		}
	}
	for i := 1; i < len(topo.Added); i++ {
		if topo.Added[i-1] > topo.Added[i] {
			t.Fatalf("added 未排序: %v", topo.Added)
		}
	}
}

func TestDiscoverIndexFailurePropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := fetch.NewClient(fetch.RetryPolicy{MaxAttempts: 1, Delay: time.Millisecond})
	d := NewDiscoverer(client)
	d.Portal.PortalBase = srv.URL + "/xfpt/portal/"
	d.Portal.IndexBase = srv.URL + "/xfgl/portal/"

	_, err := d.Discover(context.Background(), false)
	var de *DiscoveryError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want *DiscoveryError", err)
	}
	if de.CrawlCode() != "DISCOVERY_FAILED" {
		t.Fatalf("CrawlCode = %q", de.CrawlCode())
	}
}

func TestDiscoverCachesByFlag(t *testing.T) {
	f := &fakePortal{liveColumns: liveExcept()}
	d := newTestDiscoverer(t, f)

	if _, err := d.Discover(context.Background(), false); err != nil {
		t.Fatalf("Discover error: %v", err)
	}
	if _, err := d.Discover(context.Background(), false); err != nil {
		t.Fatalf("Discover error: %v", err)
	}
	// 第二次同参调用应命中缓存，index.js 只被抓一次
	if n := atomic.LoadInt32(&f.indexCalls); n != 1 {
		t.Fatalf("index.js 请求次数 = %d, want 1", n)
	}

	// 不同 includeSubtabs 是独立缓存键
	if _, err := d.Discover(context.Background(), true); err != nil {
		t.Fatalf("Discover error: %v", err)
	}
	if n := atomic.LoadInt32(&f.indexCalls); n != 2 {
		t.Fatalf("index.js 请求次数 = %d, want 2", n)
	}
}
