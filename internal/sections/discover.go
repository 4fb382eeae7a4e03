package sections

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fengzhi/newshub/internal/fetch"
)

// Kind 标记节点层级：分组型栏目（可展开子栏目）、普通栏目、子栏目
type Kind string

const (
	KindGroup  Kind = "group"
	KindColumn Kind = "column"
	KindSubtab Kind = "subtab"
)

// Node 是发现结果里的一个栏目节点，仅代表本次探测的即时视图
type Node struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Kind     Kind   `json:"kind"`
	ParentID string `json:"parent_id,omitempty"`
	// Baseline 表示该节点在静态种子表里；Discovered 表示本次探测确认了它
	Baseline   bool `json:"baseline"`
	Discovered bool `json:"discovered"`
}

// Topology 是一次发现的完整产物。Added/Missing 用于观测站点结构漂移：
// 基线条目探测未确认只会进 Missing，绝不会被静默丢弃。
type Topology struct {
	Groups  []Node            `json:"groups"`
	Columns map[string]Node   `json:"columns"`
	Subtabs map[string][]Node `json:"subtabs"`
	Added   []string          `json:"added"`
	Missing []string          `json:"missing"`
}

// DiscoveryError 表示必需的顶层探测整体失败
type DiscoveryError struct {
	Stage string
	Err   error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery %s: %v", e.Stage, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// CrawlCode 提供稳定错误码给结果分类器
func (e *DiscoveryError) CrawlCode() string { return "DISCOVERY_FAILED" }

const probeWorkers = 4 // 子栏目探测并发上限，对第三方站点保持克制

// Discoverer 执行拓扑发现，并带一个短 TTL 的整体替换缓存：
// 读多写少，写入时整个 Topology 原子换掉，读者不会看到半新半旧的结构。
type Discoverer struct {
	Portal *Portal
	TTL    time.Duration

	mu    sync.RWMutex
	cache map[bool]*cachedTopology
}

type cachedTopology struct {
	topo    *Topology
	expires time.Time
}

func NewDiscoverer(client *fetch.Client) *Discoverer {
	return &Discoverer{
		Portal: NewPortal(client),
		TTL:    2 * time.Minute,
		cache:  make(map[bool]*cachedTopology),
	}
}

// index.js 里形如 articleList("<64位hex>"); //要闻 的调用即栏目枚举
var articleListRE = regexp.MustCompile(`articleList\("([0-9a-f]{64})"[^)]*\)\s*;?\s*(?://\s*(\S*))?`)

var columnHrefRE = regexp.MustCompile(`columnId=([0-9a-f]{64})`)

// Discover 发现两级栏目拓扑并与基线对账。
// includeSubtabs 为 true 时对三个分组型栏目各多发一次探测展开子栏目。
func (d *Discoverer) Discover(ctx context.Context, includeSubtabs bool) (*Topology, error) {
	d.mu.RLock()
	if c := d.cache[includeSubtabs]; c != nil && time.Now().Before(c.expires) {
		topo := c.topo
		d.mu.RUnlock()
		return topo, nil
	}
	d.mu.RUnlock()

	topo, err := d.discover(ctx, includeSubtabs)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.cache[includeSubtabs] = &cachedTopology{topo: topo, expires: time.Now().Add(d.TTL)}
	d.mu.Unlock()
	return topo, nil
}

func (d *Discoverer) discover(ctx context.Context, includeSubtabs bool) (*Topology, error) {
	live, liveNames, err := d.probeIndex(ctx)
	if err != nil {
		// 顶层探测是必需的，失败直接向上传播
		return nil, &DiscoveryError{Stage: "index", Err: err}
	}

	topo := &Topology{
		Columns: make(map[string]Node),
		Subtabs: make(map[string][]Node),
	}
	liveSet := make(map[string]bool, len(live))
	for _, id := range live {
		liveSet[id] = true
	}

	// 基线优先：顺序与种子表一致，未确认的只标记 missing
	baseSet := make(map[string]bool, len(baselineColumns))
	for _, e := range baselineColumns {
		baseSet[e.ID] = true
		kind := KindColumn
		if e.Expand {
			kind = KindGroup
		}
		n := Node{ID: e.ID, Name: e.Name, Kind: kind, Baseline: true, Discovered: liveSet[e.ID]}
		topo.Groups = append(topo.Groups, n)
		topo.Columns[e.ID] = n
		if !n.Discovered {
			topo.Missing = append(topo.Missing, e.ID)
		}
	}
	// 线上新增的栏目追加在基线之后
	for _, id := range live {
		if baseSet[id] {
			continue
		}
		n := Node{ID: id, Name: liveNames[id], Kind: KindColumn, Discovered: true}
		topo.Groups = append(topo.Groups, n)
		topo.Columns[id] = n
		topo.Added = append(topo.Added, id)
	}

	if includeSubtabs {
		d.expandSubtabs(ctx, topo)
	}

	sort.Strings(topo.Added)
	sort.Strings(topo.Missing)
	return topo, nil
}

// probeIndex 抓取 index.js 并枚举当前在线的顶层栏目（保持出现顺序）
func (d *Discoverer) probeIndex(ctx context.Context) ([]string, map[string]string, error) {
	res, err := d.Portal.Client.Fetch(ctx, fetch.Request{
		URL:     d.Portal.IndexScriptURL(),
		Timeout: 15 * time.Second,
		NoProxy: true,
	})
	if err != nil {
		return nil, nil, err
	}
	var ids []string
	names := make(map[string]string)
	seen := make(map[string]bool)
	for _, m := range articleListRE.FindAllStringSubmatch(res.Text, -1) {
		id := m[1]
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
		if name := strings.TrimSpace(m[2]); name != "" {
			names[id] = name
		} else {
			names[id] = ColumnName(id)
		}
	}
	if len(ids) == 0 {
		return nil, nil, fmt.Errorf("no columns found in %s", d.Portal.IndexScriptURL())
	}
	return ids, names, nil
}

// expandSubtabs 对分组型栏目并发探测子栏目。单个栏目探测失败不影响
// 其余栏目，该栏目的基线子栏目保持未确认并进入 missing。
func (d *Discoverer) expandSubtabs(ctx context.Context, topo *Topology) {
	var targets []Node
	for _, g := range topo.Groups {
		if g.Kind == KindGroup {
			targets = append(targets, g)
		}
	}

	type probeResult struct {
		parent string
		live   []Node
		ok     bool
	}
	results := make([]probeResult, len(targets))

	var wg sync.WaitGroup
	sem := make(chan struct{}, probeWorkers)
	for i, g := range targets {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, g Node) {
			defer wg.Done()
			defer func() { <-sem }()
			subs, err := d.probeColumnSubtabs(ctx, g.ID)
			results[i] = probeResult{parent: g.ID, live: subs, ok: err == nil}
		}(i, g)
	}
	wg.Wait()

	for _, r := range results {
		liveSet := make(map[string]bool, len(r.live))
		for _, s := range r.live {
			liveSet[s.ID] = true
		}
		base := baselineSubtabs[r.parent]
		baseSet := make(map[string]bool, len(base))
		var nodes []Node
		for _, e := range base {
			baseSet[e.ID] = true
			n := Node{ID: e.ID, Name: e.Name, Kind: KindSubtab, ParentID: r.parent,
				Baseline: true, Discovered: r.ok && liveSet[e.ID]}
			nodes = append(nodes, n)
			topo.Columns[e.ID] = n
			if !n.Discovered {
				topo.Missing = append(topo.Missing, e.ID)
			}
		}
		if r.ok {
			for _, s := range r.live {
				if baseSet[s.ID] {
					continue
				}
				s.ParentID = r.parent
				nodes = append(nodes, s)
				topo.Columns[s.ID] = s
				topo.Added = append(topo.Added, s.ID)
			}
		}
		topo.Subtabs[r.parent] = nodes
	}
}

// probeColumnSubtabs 拉取栏目首屏并从 columnListHtml 里解析子栏目链接
func (d *Discoverer) probeColumnSubtabs(ctx context.Context, columnID string) ([]Node, error) {
	page, err := d.Portal.GetColumnList(ctx, columnID, 1, 10)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.ColumnListHTML))
	if err != nil {
		return nil, err
	}
	var subs []Node
	seen := map[string]bool{columnID: true}
	doc.Find(`a[href*="list.html?columnId="]`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		m := columnHrefRE.FindStringSubmatch(href)
		if m == nil || seen[m[1]] {
			return
		}
		seen[m[1]] = true
		subs = append(subs, Node{
			ID:         m[1],
			Name:       strings.TrimSpace(a.Text()),
			Kind:       KindSubtab,
			Discovered: true,
		})
	})
	return subs, nil
}
