// Package crawl 是通用的“抓取-翻页-归一”流水线核心：
// 各站点只实现 Source 适配器，翻页、时间窗截停、上限控制、
// 结果三态分类都在这里统一处理。
package crawl

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/fengzhi/newshub/internal/fetch"
	"github.com/fengzhi/newshub/internal/news"
)

// Source 是单个列表源的适配器：怎么构造第 page 页的请求、
// 怎么从抓到的页面提取条目。提取逻辑与核心流水线解耦。
type Source interface {
	// BuildListRequest 构造第 page 页（从 1 开始）的列表请求
	BuildListRequest(page int) fetch.Request
	// ExtractPage 从一页结果中提取条目，hasMore 为 false 表示没有后续页
	ExtractPage(res *fetch.Result) (items []news.Item, hasMore bool, err error)
	// DateDescending 表示列表是否按日期倒序。倒序源越过时间窗即可截停翻页；
	// 非倒序源只能丢弃窗口外条目并继续翻到 MaxPages。
	DateDescending() bool
}

// DetailSource 由两段式来源（列表页 + 详情页补摘要）实现
type DetailSource interface {
	Source
	BuildDetailRequest(it news.Item) fetch.Request
	// ExtractDetail 从详情页提取摘要和兜底日期
	ExtractDetail(res *fetch.Result) (summary string, date *time.Time)
}

// Policy 是一次抓取调用的不可变配置
type Policy struct {
	MaxPages int
	MaxItems int
	// SinceDays 为 0 表示不启用时间窗
	SinceDays      int
	IncludeSubtabs bool
}

// PolicyError 在任何网络活动之前拒绝非法配置
type PolicyError struct {
	Field string
	Msg   string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("invalid policy: %s %s", e.Field, e.Msg)
}

func (p Policy) Validate() error {
	if p.MaxPages < 1 || p.MaxPages > 50 {
		return &PolicyError{Field: "max_pages", Msg: "must be in [1,50]"}
	}
	if p.MaxItems < 1 || p.MaxItems > 1000 {
		return &PolicyError{Field: "max_items", Msg: "must be in [1,1000]"}
	}
	if p.SinceDays < 0 || p.SinceDays > 365 {
		return &PolicyError{Field: "since_days", Msg: "must be in [0,365]"}
	}
	return nil
}

// DefaultPolicy 与线上接口的默认参数保持一致
var DefaultPolicy = Policy{MaxPages: 3, MaxItems: 60, SinceDays: 0, IncludeSubtabs: true}

// cursor 记录一次翻页过程中的游标状态，仅在 Paginate 内部原地更新
type cursor struct {
	page    int
	emitted int
	oldest  *time.Time
}

func (c *cursor) see(t *time.Time) {
	if t == nil {
		return
	}
	if c.oldest == nil || t.Before(*c.oldest) {
		c.oldest = t
	}
}

// Paginate 驱动一个 Source 的多页抓取。
//
// 终止条件：条目达到 MaxItems、翻过 MaxPages、来源报告无后续页、
// 或倒序源的条目越过时间窗（处理完当页后截停）。
// 第 1 页失败向上传播；之后的页失败只记日志并返回已收集的部分结果，
// 有进展时部分结果优于整体失败。
func Paginate(ctx context.Context, client *fetch.Client, src Source, p Policy) ([]news.Item, error) {
	cur := cursor{page: 1}
	var out []news.Item

	var threshold time.Time
	if p.SinceDays > 0 {
		now := time.Now()
		threshold = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).
			AddDate(0, 0, -p.SinceDays)
	}

	for {
		res, err := client.Fetch(ctx, src.BuildListRequest(cur.page))
		if err != nil {
			if cur.page == 1 {
				return nil, err
			}
			log.Printf("paginate: page %d failed, keep partial result: %v", cur.page, err)
			return out, nil
		}
		items, hasMore, err := src.ExtractPage(res)
		if err != nil {
			if cur.page == 1 {
				return nil, err
			}
			log.Printf("paginate: page %d failed, keep partial result: %v", cur.page, err)
			return out, nil
		}
		if len(items) == 0 {
			return out, nil
		}

		crossed := false
		for _, it := range items {
			if cur.emitted >= p.MaxItems {
				return out, nil
			}
			cur.see(it.PublishDate)
			if p.SinceDays > 0 && it.Dated() && it.PublishDate.Before(threshold) {
				if src.DateDescending() {
					// 当页剩余条目只会更旧，标记截停但继续过滤完本页
					crossed = true
				}
				continue
			}
			out = append(out, it)
			cur.emitted++
		}

		if crossed || !hasMore {
			return out, nil
		}
		cur.page++
		if cur.page > p.MaxPages {
			return out, nil
		}
	}
}
