package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"stockRadar/internal/model"
	"stockRadar/internal/trace"
)

// 列表接口请求字段：f2 现价 f3 涨跌幅(%) f5 成交量(手) f6 成交额 f8 换手 f10 量比 f12 代码 f14 名称
// f20 总市值 f9 市盈率 f62 主力净流入 f72 大单净流入
const listFieldsQuote = "f2,f3,f5,f6,f8,f9,f10,f12,f14,f20,f62,f72"

// 沪深 A 股全市场：深主板、创业板、沪主板、科创板
const fsAllA = "m:0+t:6,m:0+t:80,m:1+t:2,m:1+t:23"

const listPageSize = 500

// FetchSnapshot 分页拉取全 A 股实时快照。
func (c *Client) FetchSnapshot(ctx context.Context) ([]model.StockQuote, error) {
	trace.Log(ctx, "api: FetchSnapshot start")
	list, err := c.fetchQuoteList(ctx, fsAllA)
	if err != nil {
		return nil, err
	}
	trace.Log(ctx, "api: FetchSnapshot done len=%d", len(list))
	return list, nil
}

// BoardQuotes 拉取板块成分股行情，board 为东方财富板块代码，如 BK0477。
func (c *Client) BoardQuotes(ctx context.Context, board string) ([]model.StockQuote, error) {
	board = strings.TrimSpace(board)
	if board == "" {
		return nil, fmt.Errorf("api: empty board code")
	}
	list, err := c.fetchQuoteList(ctx, "b:"+board)
	if err != nil {
		return nil, err
	}
	trace.Log(ctx, "api: BoardQuotes board=%s len=%d", board, len(list))
	return list, nil
}

func (c *Client) fetchQuoteList(ctx context.Context, fs string) ([]model.StockQuote, error) {
	var list []model.StockQuote
	page := 1
	for {
		url := fmt.Sprintf("%s?pn=%d&pz=%d&po=1&fid=f3&fs=%s&fields=%s",
			c.ListURL, page, listPageSize, fs, listFieldsQuote)
		resp, err := c.doWithRetry(ctx, "GET", url)
		if err != nil {
			return nil, err
		}
		total, count, err := decodeQuoteListStream(ctx, resp.Body, &list)
		_ = resp.Body.Close()
		if err != nil && err != io.EOF {
			return nil, err
		}
		if count == 0 {
			break
		}
		if total <= len(list) || count < listPageSize {
			break
		}
		page++
	}
	if len(list) == 0 {
		trace.Warn(ctx, "api: 列表结果为空 fs=%s，检查 data.diff 是否被跳过", fs)
	}
	return list, nil
}

// emNumber 东方财富数值字段：停牌等情况下返回字符串 "-"，视为缺失。
type emNumber struct {
	v  float64
	ok bool
}

func (n *emNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "-" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	n.v, n.ok = v, true
	return nil
}

// decodeQuoteListStream 解析列表接口 JSON：根对象下 data.total、data.diff（数组或对象 "0","1",...）
func decodeQuoteListStream(ctx context.Context, r io.Reader, list *[]model.StockQuote) (total int, count int, err error) {
	dec := json.NewDecoder(r)
	if t, err := dec.Token(); err != nil {
		return 0, 0, err
	} else if d, ok := t.(json.Delim); !ok || d != '{' {
		return 0, 0, fmt.Errorf("expected {")
	}
	for dec.More() {
		key, err := dec.Token()
		if err != nil {
			return total, count, err
		}
		s, ok := key.(string)
		if !ok || s != "data" {
			if err := skipValue(dec); err != nil {
				return total, count, err
			}
			continue
		}
		t, err := dec.Token()
		if err != nil {
			return total, count, err
		}
		if t == nil {
			// data: null，无数据
			continue
		}
		if d, ok := t.(json.Delim); !ok || d != '{' {
			return total, count, fmt.Errorf("expected data {")
		}
		for dec.More() {
			k, err := dec.Token()
			if err != nil {
				return total, count, err
			}
			ks, ok := k.(string)
			if !ok {
				return total, count, fmt.Errorf("expected key")
			}
			if ks == "total" {
				var n json.Number
				if err := dec.Decode(&n); err != nil {
					return total, count, err
				}
				v, _ := n.Int64()
				total = int(v)
				continue
			}
			if ks != "diff" {
				if err := skipValue(dec); err != nil {
					return total, count, err
				}
				continue
			}
			t, err := dec.Token()
			if err != nil {
				return total, count, err
			}
			d, ok := t.(json.Delim)
			if !ok || (d != '[' && d != '{') {
				trace.Warn(ctx, "api: data.diff 非数组/对象已跳过 total=%d", total)
				count = 0
				continue
			}
			start := len(*list)
			for dec.More() {
				if d == '{' {
					if _, err := dec.Token(); err != nil {
						return total, len(*list) - start, err
					}
				}
				if err := decodeQuoteItem(dec, list); err != nil {
					return total, len(*list) - start, err
				}
			}
			if _, err := dec.Token(); err != nil {
				return total, len(*list) - start, err
			}
			count = len(*list) - start
		}
		if _, err := dec.Token(); err != nil {
			return total, count, err
		}
		break
	}
	return total, count, nil
}

func decodeQuoteItem(dec *json.Decoder, list *[]model.StockQuote) error {
	var item struct {
		F2  emNumber `json:"f2"`
		F3  emNumber `json:"f3"`
		F5  emNumber `json:"f5"`
		F6  emNumber `json:"f6"`
		F8  emNumber `json:"f8"`
		F9  emNumber `json:"f9"`
		F10 emNumber `json:"f10"`
		F12 string   `json:"f12"`
		F14 string   `json:"f14"`
		F20 emNumber `json:"f20"`
		F62 emNumber `json:"f62"`
		F72 emNumber `json:"f72"`
	}
	if err := dec.Decode(&item); err != nil {
		return err
	}
	if item.F12 == "" {
		return nil
	}
	vol := int64(item.F5.v)
	amount := item.F6.v
	if amount <= 0 && vol > 0 && item.F2.v > 0 {
		amount = float64(vol) * 100 * item.F2.v
	}
	pe := item.F9.v
	if pe < 0 {
		pe = 0
	}
	*list = append(*list, model.StockQuote{
		Code:                item.F12,
		Name:                item.F14,
		Price:               item.F2.v,
		ChangePct:           item.F3.v,
		TurnoverRate:        item.F8.v,
		Volume:              vol,
		Amount:              amount,
		VolumeRatio:         item.F10.v,
		MarketCap:           item.F20.v,
		PE:                  pe,
		NetInflow:           item.F62.v,
		LargeOrderNetInflow: item.F72.v,
		Incomplete:          !item.F2.ok || !item.F3.ok || !item.F8.ok,
	})
	return nil
}

func skipValue(dec *json.Decoder) error {
	t, err := dec.Token()
	if err != nil {
		return err
	}
	switch d := t.(type) {
	case json.Delim:
		if d == '{' || d == '[' {
			n := 1
			for n > 0 {
				tt, err := dec.Token()
				if err != nil {
					return err
				}
				if dd, ok := tt.(json.Delim); ok {
					if dd == '{' || dd == '[' {
						n++
					} else {
						n--
					}
				}
			}
		}
	}
	return nil
}
