// Package rank 负责多频道结果的去重与排序归一。
package rank

import (
	"sort"
	"strings"

	"github.com/fengzhi/newshub/internal/news"
)

// Kind 区分频道性质：政策/文件类列表本身就是权威排序，保持原序；
// 资讯类按日期倒序，且命中降权规则的条目整体后置。
type Kind int

const (
	KindPolicy Kind = iota
	KindDigest
)

// Batch 是一个频道抓取到的有序条目集
type Batch struct {
	Channel string
	Kind    Kind
	Items   []news.Item
}

// DemotePolicy 判断资讯条目是否降权。具体权重规则按来源配置，
// 这里只保证“常规有日期条目在前、降权子集在后”的定性顺序。
type DemotePolicy func(it news.Item) bool

// KeywordDemote 返回基于 URL/标题关键词的降权规则
func KeywordDemote(keywords []string) DemotePolicy {
	return func(it news.Item) bool {
		s := strings.ToLower(it.URL + " " + it.Title)
		for _, kw := range keywords {
			if kw != "" && strings.Contains(s, kw) {
				return true
			}
		}
		return false
	}
}

// Merge 把多个频道批次合并为一条扁平有序序列，批次顺序即调用方的频道优先级。
//
// 去重键为 URL；重复时保留摘要非空且日期已解析的那条（位置取首次出现处）。
// 无日期条目稳定排在本频道有日期条目之后，彼此保持插入顺序。
func Merge(batches []Batch, demote DemotePolicy) []news.Item {
	var out []news.Item
	pos := make(map[string]int)

	for _, b := range batches {
		items := make([]news.Item, len(b.Items))
		copy(items, b.Items)
		if b.Kind == KindDigest {
			sortDigest(items, demote)
		}
		for _, it := range items {
			if i, ok := pos[it.URL]; ok {
				if better(it, out[i]) {
					out[i] = it
				}
				continue
			}
			pos[it.URL] = len(out)
			out = append(out, it)
		}
	}
	return out
}

// better 判断 a 是否比 b 更完整（摘要与日期维度）
func better(a, b news.Item) bool {
	score := func(it news.Item) int {
		s := 0
		if it.Summary != "" {
			s++
		}
		if it.Dated() {
			s++
		}
		return s
	}
	return score(a) > score(b)
}

// sortDigest 资讯频道排序：先按降权分组（常规在前），组内日期倒序，
// 无日期条目排在组尾并保持插入顺序。必须稳定，绝不允许任意序。
func sortDigest(items []news.Item, demote DemotePolicy) {
	rankOf := func(it news.Item) int {
		if demote != nil && demote(it) {
			return 1
		}
		return 0
	}
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := rankOf(items[i]), rankOf(items[j])
		if ri != rj {
			return ri < rj
		}
		di, dj := items[i].PublishDate, items[j].PublishDate
		if (di == nil) != (dj == nil) {
			return di != nil
		}
		if di == nil {
			return false
		}
		return di.After(*dj)
	})
}
