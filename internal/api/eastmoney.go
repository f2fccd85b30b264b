// Package api 封装东方财富行情、K 线、资金流与个股资讯接口，含请求节流、并发上限、重试与 trace 日志。
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"stockRadar/internal/cache"
	"stockRadar/internal/trace"
)

// 东方财富接口地址
const (
	EastMoneyListURL  = "https://82.push2.eastmoney.com/api/qt/clist/get"
	EastMoneyKLineURL = "https://push2his.eastmoney.com/api/qt/stock/kline/get"
	EastMoneyStockURL = "https://push2.eastmoney.com/api/qt/stock/get"
	EastMoneyNewsURL  = "https://np-listapi.eastmoney.com/comm/web/getListInfo"
)

// 请求超时与重试
const (
	defaultHTTPTimeout = 5 * time.Second
	maxRetries         = 3
	retryDelay         = 500 * time.Millisecond
	retryDelay429      = 5 * time.Second
	httpStatusTooMany  = 429
)

// 防封：请求间隔、并发上限
const (
	maxRespLogLen        = 1200
	defaultRequestGap    = 200 * time.Millisecond
	defaultMaxConcurrent = 4
)

// 请求头（模拟浏览器）
const (
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	referer        = "https://quote.eastmoney.com/"
	acceptLanguage = "zh-CN,zh;q=0.9,en;q=0.8"
)

// Options 控制节流；零值使用默认。
type Options struct {
	RequestGap    time.Duration
	MaxConcurrent int
	HTTPClient    *http.Client
	Clock         cache.Clock // 计算资讯时间窗，nil 为系统时钟
}

// Client 东方财富客户端，实现快照、K 线、板块成分、资金流与资讯五类数据源。
// 各 URL 字段可在测试中替换为本地服务。
type Client struct {
	HTTPClient *http.Client
	ListURL    string
	KLineURL   string
	StockURL   string
	NewsURL    string

	limiter *rate.Limiter
	sem     chan struct{}
	clock   cache.Clock
}

func NewClient(opts Options) *Client {
	gap := opts.RequestGap
	if gap <= 0 {
		gap = defaultRequestGap
	}
	n := opts.MaxConcurrent
	if n <= 0 {
		n = defaultMaxConcurrent
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultHTTPTimeout}
	}
	clock := opts.Clock
	if clock == nil {
		clock = cache.SystemClock
	}
	return &Client{
		HTTPClient: hc,
		ListURL:    EastMoneyListURL,
		KLineURL:   EastMoneyKLineURL,
		StockURL:   EastMoneyStockURL,
		NewsURL:    EastMoneyNewsURL,
		limiter:    rate.NewLimiter(rate.Every(gap), 1),
		sem:        make(chan struct{}, n),
		clock:      clock,
	}
}

func (c *Client) doWithRetry(ctx context.Context, method, url string) (*http.Response, error) {
	if c == nil {
		return nil, fmt.Errorf("api client is nil")
	}
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	var lastErr error
	var lastStatus int
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := retryDelay
			if lastStatus == httpStatusTooMany {
				backoff = retryDelay429
				trace.Warn(ctx, "api: 429 限流，等待 %s 后重试", backoff)
			} else {
				trace.Debug(ctx, "api: retry %d/%d %s", attempt, maxRetries, url)
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		if c.sem != nil {
			select {
			case c.sem <- struct{}{}:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		body, status, err := c.roundTrip(ctx, client, method, url)
		if c.sem != nil {
			<-c.sem
		}
		if err != nil {
			lastErr = err
			lastStatus = status
			continue
		}
		trace.Debug(ctx, "api: resp status=%d len=%d body=%s", status, len(body), truncateForLog(body))
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(bytes.NewReader(body)),
		}, nil
	}
	trace.Warn(ctx, "api: doWithRetry fail url=%s err=%v", url, lastErr)
	return nil, lastErr
}

// roundTrip 发起一次请求并读完 body，非 200 视为错误。
func (c *Client) roundTrip(ctx context.Context, client *http.Client, method, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", referer)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", acceptLanguage)
	trace.Debug(ctx, "api: req %s %s", method, url)
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		trace.Debug(ctx, "api: resp status=%d len=%d body=%s", resp.StatusCode, len(body), truncateForLog(body))
		return nil, resp.StatusCode, fmt.Errorf("http %d", resp.StatusCode)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) getBody(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.doWithRetry(ctx, http.MethodGet, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func truncateForLog(b []byte) string {
	s := string(b)
	if len(b) > maxRespLogLen {
		s = s[:maxRespLogLen] + "..."
	}
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r", " "), "\n", " ")
}

// FormatCode 转为东方财富 secid：上海 1.600519，深圳 0.000001
func FormatCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return "0.000000"
	}
	if code[0] == '6' || code[0] == '5' || code[0] == '9' {
		return "1." + code
	}
	return "0." + code
}
