package crawl

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/fengzhi/newshub/internal/fetch"
	"github.com/fengzhi/newshub/internal/news"
)

// 三态结果
const (
	StatusOK    = "OK"
	StatusEmpty = "EMPTY"
	StatusError = "ERROR"
)

// 稳定的机器可读错误码
const (
	CodeNoData        = "NO_DATA"
	CodeBadPolicy     = "BAD_POLICY"
	CodeFetchTimeout  = "FETCH_TIMEOUT"
	CodeFetchConn     = "FETCH_CONN_FAILED"
	CodeFetchStatus   = "FETCH_HTTP_STATUS"
	CodeFetchDecode   = "FETCH_DECODE_FAILED"
	CodeExtractFailed = "EXTRACT_FAILED"
	CodeDiscovery     = "DISCOVERY_FAILED"
	CodeInternal      = "CRAWL_UNEXPECTED_ERROR"
)

// ExtractError 表示页面结构不符合预期。单条/单栏目范围内就地吸收，
// 只有整页无法解析时才会出现在 Paginate 的返回值里。
type ExtractError struct {
	Reason string
}

func (e *ExtractError) Error() string { return "extract: " + e.Reason }

// Outcome 是一次抓取调用的终态，三个变体恰好成立一个。
// OK 蕴含 Items 非空；空的成功抓取必须是 EMPTY。
type Outcome struct {
	Status  string
	Items   []news.Item
	Code    string
	Message string
}

// Classify 把流水线终态映射为 Outcome。err 非 nil 时 items 被忽略。
func Classify(items []news.Item, err error) Outcome {
	if err != nil {
		return Outcome{Status: StatusError, Code: errCode(err), Message: err.Error()}
	}
	if len(items) == 0 {
		return Outcome{Status: StatusEmpty, Code: CodeNoData, Message: "no news parsed"}
	}
	return Outcome{Status: StatusOK, Items: items}
}

func errCode(err error) string {
	var pe *PolicyError
	if errors.As(err, &pe) {
		return CodeBadPolicy
	}
	// 允许其它包（如 sections）自带错误码
	var cc interface{ CrawlCode() string }
	if errors.As(err, &cc) {
		return cc.CrawlCode()
	}
	var xe *ExtractError
	if errors.As(err, &xe) {
		return CodeExtractFailed
	}
	var fe *fetch.Error
	if errors.As(err, &fe) {
		switch fe.Kind {
		case fetch.KindTimeout:
			return CodeFetchTimeout
		case fetch.KindConnectionFailed:
			return CodeFetchConn
		case fetch.KindHTTPStatus:
			return CodeFetchStatus
		case fetch.KindDecodeFailed:
			return CodeFetchDecode
		}
	}
	return CodeInternal
}

// Response 把 Outcome 转成对外的统一响应结构
func (o Outcome) Response() news.Response {
	resp := news.Response{Status: o.Status}
	switch o.Status {
	case StatusOK:
		resp.NewsList = o.Items
	default:
		if o.Code != "" {
			code := o.Code
			resp.ErrCode = &code
		}
		if o.Message != "" {
			msg := o.Message
			resp.ErrInfo = &msg
		}
	}
	return resp
}

// Runner 是注册表里一个可整体运行的来源（可能内部含多个频道/栏目）。
// Run 永远返回结构化 Outcome，panic 也会被兜成 ERROR。
type Runner interface {
	ID() string
	Run(ctx context.Context, policy Policy) Outcome
}

// Safely 包住来源入口，把 panic 变成数据而非控制流
func Safely(run func() Outcome) (o Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("crawl: recovered panic: %v", r)
			o = Outcome{Status: StatusError, Code: CodeInternal, Message: "unexpected internal failure"}
		}
	}()
	return run()
}

const detailWorkers = 4 // 详情页补摘要的并发上限，第三方站点不宜更高

// EnrichDetails 对缺摘要/缺日期的条目并发抓详情页补全。
// 详情失败只跳过该条目的补全，不影响整体结果。
func EnrichDetails(ctx context.Context, client *fetch.Client, src DetailSource, items []news.Item) []news.Item {
	out := make([]news.Item, len(items))
	copy(out, items)

	var wg sync.WaitGroup
	sem := make(chan struct{}, detailWorkers)
	for i := range out {
		if out[i].Summary != "" && out[i].Dated() {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			res, err := client.Fetch(ctx, src.BuildDetailRequest(out[i]))
			if err != nil {
				log.Printf("detail %s: %v", out[i].URL, err)
				return
			}
			summary, date := src.ExtractDetail(res)
			it := out[i]
			if it.Summary == "" {
				it.Summary = summary
			}
			if it.PublishDate == nil {
				it.PublishDate = date
			}
			out[i] = it
		}(i)
	}
	wg.Wait()
	return out
}
