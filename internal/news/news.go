package news

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// Item 是所有来源统一后的新闻条目。构造完成后不再修改。
type Item struct {
	Title   string
	URL     string
	Origin  string
	Summary string
	// PublishDate 为 nil 表示日期未知（列表页和详情页都没解析出来）
	PublishDate *time.Time
}

// Dated 返回该条目是否解析出了发布日期
func (it Item) Dated() bool {
	return it.PublishDate != nil
}

// wireItem 是 Item 的序列化形态，publish_date 输出 YYYY-MM-DD 或 null
type wireItem struct {
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Origin      string  `json:"origin"`
	Summary     string  `json:"summary"`
	PublishDate *string `json:"publish_date"`
}

func (it Item) MarshalJSON() ([]byte, error) {
	w := wireItem{
		Title:   it.Title,
		URL:     it.URL,
		Origin:  it.Origin,
		Summary: it.Summary,
	}
	if it.PublishDate != nil {
		s := it.PublishDate.Format("2006-01-02")
		w.PublishDate = &s
	}
	return json.Marshal(w)
}

func (it *Item) UnmarshalJSON(data []byte) error {
	var w wireItem
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	it.Title = w.Title
	it.URL = w.URL
	it.Origin = w.Origin
	it.Summary = w.Summary
	it.PublishDate = nil
	if w.PublishDate != nil {
		if t, err := time.Parse("2006-01-02", *w.PublishDate); err == nil {
			it.PublishDate = &t
		}
	}
	return nil
}

// Response 是对外统一的响应结构：status 三态 OK / EMPTY / ERROR
type Response struct {
	NewsList []Item  `json:"news_list"`
	Status   string  `json:"status"`
	ErrCode  *string `json:"err_code"`
	ErrInfo  *string `json:"err_info"`
}

// 日期形如 2025-03-20 / 2025/3/20 / 2025.03.20 / 2025年3月20日，后面可能跟时间
var dateRE = regexp.MustCompile(`(20\d{2})\s*[-/.]\s*(\d{1,2})\s*[-/.]\s*(\d{1,2})`)

// ParseDate 从任意文本中提取第一个日期。中文的 年/月/日 先归一成 '-' 再匹配。
// 解析失败返回 nil，调用方把无日期条目排在有日期条目之后。
func ParseDate(text string) *time.Time {
	s := strings.NewReplacer("年", "-", "月", "-", "日", "").Replace(text)
	m := dateRE.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	t, err := time.Parse("2006-1-2", m[1]+"-"+m[2]+"-"+m[3])
	if err != nil {
		return nil
	}
	return &t
}

// Summarize 把正文压缩成一段摘要：合并空白并按 rune 截断，超长补省略号
func Summarize(text string, limit int) string {
	t := strings.Join(strings.Fields(text), " ")
	rs := []rune(t)
	if len(rs) <= limit {
		return t
	}
	return strings.TrimRight(string(rs[:limit]), " ") + "..."
}
