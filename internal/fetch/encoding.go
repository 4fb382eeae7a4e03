package fetch

import (
	"mime"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// 大陆站点编码混乱：header 声明 gb2312 实际是 gbk/gb18030 的很常见，
// 统一归一到超集 gb18030 解码
func normalizeCharset(name string) string {
	n := strings.ToLower(strings.Trim(strings.TrimSpace(name), `"'`))
	switch n {
	case "gb2312", "gb-2312", "gbk", "gb_2312-80":
		return "gb18030"
	case "utf8", "utf-8":
		return "utf-8"
	}
	return n
}

var metaCharsetRE = regexp.MustCompile(`(?i)charset\s*=\s*["']?([a-zA-Z0-9_\-]+)`)

// charsetFromMeta 在文档前 4KB 里找 <meta charset=...> 声明
func charsetFromMeta(raw []byte) string {
	head := raw
	if len(head) > 4096 {
		head = head[:4096]
	}
	if m := metaCharsetRE.FindSubmatch(head); m != nil {
		return normalizeCharset(string(m[1]))
	}
	return ""
}

func charsetFromHeader(contentType string) string {
	if contentType == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if cs := params["charset"]; cs != "" {
			return normalizeCharset(cs)
		}
	}
	return ""
}

// charsetFromSniff 用字节模式探测编码，失败返回空
func charsetFromSniff(raw []byte) string {
	r, err := chardet.NewTextDetector().DetectBest(raw)
	if err != nil || r == nil {
		return ""
	}
	return normalizeCharset(strings.ReplaceAll(r.Charset, "GB-18030", "gb18030"))
}

// decodeBody 按候选编码依次尝试解码，取替换字符最少的结果。
// 候选优先级：meta 声明 -> 字节探测 -> header 声明 -> utf-8 -> gb18030。
// header 声明里 ISO-8859-1 基本都是服务器默认值而非真实编码，不参与候选。
// 全部失败时退化为 utf-8 + 替换字符，绝不让解码问题失败整次抓取。
func decodeBody(raw []byte, contentType string) (string, string) {
	var cands []string
	add := func(name string) {
		if name == "" || name == "iso-8859-1" || name == "latin1" {
			return
		}
		for _, c := range cands {
			if c == name {
				return
			}
		}
		cands = append(cands, name)
	}
	add(charsetFromMeta(raw))
	add(charsetFromSniff(raw))
	add(charsetFromHeader(contentType))
	add("utf-8")
	add("gb18030")

	bestText := ""
	bestName := ""
	bestBad := -1
	for _, name := range cands {
		text, bad, ok := decodeWith(raw, name)
		if !ok {
			continue
		}
		if bestBad < 0 || bad < bestBad {
			bestText, bestName, bestBad = text, name, bad
		}
		if bad == 0 {
			break
		}
	}
	if bestBad < 0 {
		return strings.ToValidUTF8(string(raw), "�"), "utf-8"
	}
	return bestText, bestName
}

// decodeWith 用指定编码解码并统计替换字符个数
func decodeWith(raw []byte, name string) (string, int, bool) {
	if name == "utf-8" {
		bad := 0
		for i := 0; i < len(raw); {
			r, size := utf8.DecodeRune(raw[i:])
			if r == utf8.RuneError && size == 1 {
				bad++
			}
			i += size
		}
		return strings.ToValidUTF8(string(raw), "�"), bad, true
	}

	var enc encoding.Encoding
	if name == "gb18030" {
		enc = simplifiedchinese.GB18030
	} else if e, _ := charset.Lookup(name); e != nil {
		enc = e
	} else {
		return "", 0, false
	}

	out, _, err := transform.Bytes(enc.NewDecoder(), raw)
	if err != nil {
		return "", 0, false
	}
	text := string(out)
	return text, countReplacement(text), true
}

func countReplacement(s string) int {
	return strings.Count(s, "�")
}
