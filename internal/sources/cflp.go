package sources

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fengzhi/newshub/internal/fetch"
	"github.com/fengzhi/newshub/internal/rank"
)

// 中物联资讯频道里企业宣传/装备类条目整体后置的关键词规则。
// 精确权重无从考证，这里只保证“常规时效内容在前”的定性顺序。
var cflpDemoteKeywords = []string{
	"qiyexinxi", "qiye", "gongsi", "企业信息", "企业", "公司", "品牌",
	"zidonghua", "automation", "自动化", "智能制造", "工业互联网",
	"zhuangbei", "shebei", "物流装备", "装备", "设备", "叉车", "agv", "机器人", "仓储",
	"/zixun/dzsp/", "dzsp",
}

// NewCFLP 构造中国物流与采购联合会来源。
// zcfg（政策法规）保持站方排序；zixun（资讯）按日期倒序并应用降权规则。
func NewCFLP(client *fetch.Client, keys []string) *multiChannel {
	// 历史遗留：dzsp 子频道已并入 zixun
	mapped := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "dzsp" {
			k = "zixun"
		}
		mapped = append(mapped, k)
	}
	want := toSet(mapped)

	var channels []channelDef
	if len(want) == 0 || want["zcfg"] {
		base := "http://www.chinawuliu.com.cn/zcfg/"
		channels = append(channels, channelDef{
			name: "zcfg",
			kind: rank.KindPolicy,
			src: &htmlSource{
				origin:     "中国物流与采购联合会-政策法规",
				base:       base,
				pages:      indexPaged(base, base+"index_%d.html"),
				extract:    cflpRows,
				descending: true,
			},
		})
	}
	if len(want) == 0 || want["zixun"] {
		base := "http://www.chinawuliu.com.cn/zixun/"
		channels = append(channels, channelDef{
			name: "zixun",
			kind: rank.KindDigest,
			src: &htmlSource{
				origin:     "中国物流与采购联合会-资讯",
				base:       base,
				pages:      indexPaged(base, base+"index_%d.html"),
				extract:    cflpRows,
				descending: true,
			},
		})
	}
	return &multiChannel{
		id:       "cflp",
		client:   client,
		channels: channels,
		demote:   rank.KeywordDemote(cflpDemoteKeywords),
	}
}

// cflpRows 解析中物联的两代列表模板：旧版 ul.new-ul，新版 ul.list-box
func cflpRows(doc *goquery.Document) []listRow {
	var rows []listRow
	doc.Find("div.ul-list ul.new-ul > li").Each(func(_ int, li *goquery.Selection) {
		a := li.Find("p.new-title a[href]").First()
		if a.Length() == 0 {
			return
		}
		dateText := li.Find("p.new-time span").Last().Text()
		rows = append(rows, listRow{
			title:    strings.TrimSpace(a.Text()),
			href:     strings.TrimSpace(a.AttrOr("href", "")),
			dateText: strings.TrimSpace(dateText),
		})
	})
	if len(rows) > 0 {
		return rows
	}
	return liRows("ul.list-box")(doc)
}
