package news

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestParseDateFormats(t *testing.T) {
	cases := []struct {
		in   string
		want string // 空串表示期望解析失败
	}{
		{"2025-03-20", "2025-03-20"},
		{"2025/3/20", "2025-03-20"},
		{"2025.03.20", "2025-03-20"},
		{"2025年3月20日", "2025-03-20"},
		{"发布时间：2025-03-20 10:30:00 来源：官网", "2025-03-20"},
		{"[2024-12-01]", "2024-12-01"},
		{"没有日期的文本", ""},
		{"1999-01-01", ""}, // 仅识别 20xx
		{"", ""},
	}
	for _, c := range cases {
		got := ParseDate(c.in)
		if c.want == "" {
			if got != nil {
				t.Fatalf("ParseDate(%q) = %v, want nil", c.in, got)
			}
			continue
		}
		if got == nil {
			t.Fatalf("ParseDate(%q) = nil, want %s", c.in, c.want)
		}
		if got.Format("2006-01-02") != c.want {
			t.Fatalf("ParseDate(%q) = %s, want %s", c.in, got.Format("2006-01-02"), c.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	// 多余空白应合并成单个空格
	got := Summarize("  第一段\n\n  第二段\t结束  ", 100)
	if got != "第一段 第二段 结束" {
		t.Fatalf("Summarize 空白合并结果 = %q", got)
	}

	// 超长按 rune 截断并补省略号，不能截出半个汉字
	long := strings.Repeat("钢", 50)
	got = Summarize(long, 10)
	if got != strings.Repeat("钢", 10)+"..." {
		t.Fatalf("Summarize 截断结果 = %q", got)
	}

	// 恰好等长时不加省略号
	got = Summarize("abcde", 5)
	if got != "abcde" {
		t.Fatalf("Summarize 等长结果 = %q", got)
	}
}

func TestItemJSONRoundTrip(t *testing.T) {
	d := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)
	it := Item{Title: "标题", URL: "http://example.com/a", Origin: "来源", PublishDate: &d}

	bs, err := json.Marshal(it)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if !strings.Contains(string(bs), `"publish_date":"2025-03-20"`) {
		t.Fatalf("publish_date 序列化错误: %s", bs)
	}

	var back Item
	if err := json.Unmarshal(bs, &back); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if back.PublishDate == nil || !back.PublishDate.Equal(d) {
		t.Fatalf("publish_date 反序列化错误: %+v", back.PublishDate)
	}
}

func TestItemJSONNullDate(t *testing.T) {
	it := Item{Title: "无日期", URL: "http://example.com/b"}
	bs, err := json.Marshal(it)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	// 未知日期必须显式输出 null，而不是空串
	if !strings.Contains(string(bs), `"publish_date":null`) {
		t.Fatalf("未知日期应输出 null: %s", bs)
	}
}
