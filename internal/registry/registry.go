// Package registry 维护“来源 id -> 可运行来源”的只读注册表，
// 进程启动时构造一次，之后按引用传递，不存在可变全局。
package registry

import (
	"sort"

	"github.com/fengzhi/newshub/internal/crawl"
	"github.com/fengzhi/newshub/internal/fetch"
	"github.com/fengzhi/newshub/internal/sections"
	"github.com/fengzhi/newshub/internal/sources"
)

type Registry struct {
	runners map[string]crawl.Runner
	// Discoverer 单独暴露给栏目拓扑接口
	Discoverer *sections.Discoverer
}

// New 注册全部内置来源。renderer 可为 nil，表示不启用动态渲染兜底。
func New(client *fetch.Client, renderer sources.Renderer) *Registry {
	d := sections.NewDiscoverer(client)
	runners := []crawl.Runner{
		sources.NewChinaISA(client, d),
		sources.NewCFLP(client, nil).WithRenderer(renderer),
		sources.NewNDRC(client, nil).WithRenderer(renderer),
		sources.NewACFIC(client, nil).WithRenderer(renderer),
		sources.NewCNIA(client, nil).WithRenderer(renderer),
		sources.NewMOT(client).WithRenderer(renderer),
		sources.NewMOFCOM(client, renderer),
		sources.NewCCTVXwlb(),
		sources.NewChinaDailyRSS(),
		sources.NewAibaseDaily(client),
		sources.NewPeopleDaily(client),
	}
	m := make(map[string]crawl.Runner, len(runners))
	for _, r := range runners {
		m[r.ID()] = r
	}
	return &Registry{runners: m, Discoverer: d}
}

// Get 按 id 查来源，不存在返回 nil
func (r *Registry) Get(id string) crawl.Runner {
	return r.runners[id]
}

// IDs 返回全部来源 id（字典序，保证稳定输出）
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.runners))
	for id := range r.runners {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
