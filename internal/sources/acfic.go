package sources

import (
	"github.com/fengzhi/newshub/internal/fetch"
	"github.com/fengzhi/newshub/internal/rank"
)

// 全国工商联政策速递各频道，均为政策类（保持站方排序）
var acficChannels = []struct {
	key    string
	path   string
	origin string
}{
	{"zy", "zy", "全联政策-中央"},
	{"bw", "bw", "全联政策-部委"},
	{"df", "df", "全联政策-地方"},
	{"qggsl", "qggsl", "全联政策"},
	{"jd", "jd", "全联政策-解读"},
}

func NewACFIC(client *fetch.Client, keys []string) *multiChannel {
	want := toSet(keys)
	var channels []channelDef
	for _, ch := range acficChannels {
		if len(want) > 0 && !want[ch.key] {
			continue
		}
		base := "https://www.acfic.org.cn/zcsd/" + ch.path + "/"
		channels = append(channels, channelDef{
			name: ch.key,
			kind: rank.KindPolicy,
			src: &htmlSource{
				origin:  ch.origin,
				base:    base,
				pages:   indexPaged(base+"index.html", base+"index_%d.html"),
				extract: liRows("div.right_qlgz"),
			},
		})
	}
	return &multiChannel{id: "acfic", client: client, channels: channels}
}
