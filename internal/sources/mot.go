package sources

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fengzhi/newshub/internal/fetch"
	"github.com/fengzhi/newshub/internal/rank"
)

// NewMOT 抓取交通运输部交通要闻。列表是 a.list-group-item 行内嵌
// span.badge 日期，不是常见的 li 结构；详情正文在 div#Zoom（大写 Z）。
func NewMOT(client *fetch.Client) *multiChannel {
	base := "https://www.mot.gov.cn/jiaotongyaowen/"
	return &multiChannel{
		id:     "mot",
		client: client,
		channels: []channelDef{{
			name: "yaowen",
			kind: rank.KindPolicy,
			src: &htmlSource{
				origin:     "交通运输部",
				base:       base,
				pages:      indexPaged(base+"index.html", base+"index_%d.html"),
				extract:    motRows,
				descending: true,
			},
		}},
	}
}

// motRows 提取 list-group 式列表：每行一个 a.list-group-item，
// 日期在行内的 span.badge 里，标题是去掉 badge 后的链接文本
func motRows(doc *goquery.Document) []listRow {
	scope := doc.Find("div.list-group.tab-content")
	sel := scope.Find("a.list-group-item")
	if scope.Length() == 0 {
		sel = doc.Find("a.list-group-item")
	}
	var rows []listRow
	sel.Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		dateText := strings.TrimSpace(a.Find("span.badge").First().Text())
		title := strings.TrimSpace(a.AttrOr("title", ""))
		if title == "" {
			t := a.Clone()
			t.Find("span").Remove()
			title = strings.TrimSpace(t.Text())
		}
		if title == "" || href == "" || strings.Contains(href, "javascript:") {
			return
		}
		rows = append(rows, listRow{title: title, href: href, dateText: dateText})
	})
	return rows
}
