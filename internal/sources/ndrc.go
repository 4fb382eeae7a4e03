package sources

import (
	"github.com/fengzhi/newshub/internal/fetch"
	"github.com/fengzhi/newshub/internal/rank"
)

// 国家发改委政策发布栏目。政策类列表由站方权威排序，保持原序。
var ndrcChannels = []struct {
	key  string
	name string
	path string
}{
	{"fzggwl", "发展改革委", "fzggwl"},
	{"ghxwj", "规范性文件", "ghxwj"},
	{"ghwb", "规划文本", "ghwb"},
	{"gg", "公告", "gg"},
	{"tz", "通知", "tz"},
}

// NewNDRC 构造发改委来源；keys 为空时抓全部分类
func NewNDRC(client *fetch.Client, keys []string) *multiChannel {
	want := toSet(keys)
	var channels []channelDef
	for _, ch := range ndrcChannels {
		if len(want) > 0 && !want[ch.key] {
			continue
		}
		base := "https://www.ndrc.gov.cn/xxgk/zcfb/" + ch.path + "/"
		channels = append(channels, channelDef{
			name: ch.key,
			kind: rank.KindPolicy,
			src: &htmlSource{
				origin:  "国家发改委",
				base:    base,
				pages:   indexPaged(base+"index.html", base+"index_%d.html"),
				extract: liRows(""),
			},
		})
	}
	return &multiChannel{id: "ndrc", client: client, channels: channels}
}

func toSet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k != "" {
			set[k] = true
		}
	}
	return set
}
