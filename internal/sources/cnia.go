package sources

import (
	"github.com/fengzhi/newshub/internal/fetch"
	"github.com/fengzhi/newshub/internal/rank"
)

// 中国有色金属工业协会各频道。站点翻页地址不稳定，只抓各频道首页。
var cniaChannels = []struct {
	key    string
	path   string
	origin string
}{
	{"guoneixinwen", "hangyexinwen/guoneixinwen", "中国有色金属工业协会-行业新闻"},
	{"jqzs", "hangyetongji/jqzs", "中国有色金属工业协会-景气指数"},
	{"tongji", "hangyetongji/tongji", "中国有色金属工业协会-统计"},
	{"chanyeshuju", "hangyetongji/chanyeshuju", "中国有色金属工业协会-产业数据"},
}

func NewCNIA(client *fetch.Client, keys []string) *multiChannel {
	want := toSet(keys)
	var channels []channelDef
	for _, ch := range cniaChannels {
		if len(want) > 0 && !want[ch.key] {
			continue
		}
		base := "https://www.chinania.org.cn/html/" + ch.path + "/"
		channels = append(channels, channelDef{
			name: ch.key,
			kind: rank.KindPolicy,
			src: &htmlSource{
				origin:  ch.origin,
				base:    base,
				pages:   indexPaged(base, base+"index_%d.html"),
				extract: liRows(""),
				single:  true,
			},
		})
	}
	return &multiChannel{id: "cnia", client: client, channels: channels}
}
