package api

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"stockRadar/internal/model"
)

// K 线字段：f51 日期 f52 开 f53 收 f54 高 f55 低 f56 成交量 f57 成交额
const klineFields2 = "f51,f52,f53,f54,f55,f56,f57"

const klineDateLayout = "20060102"

// PriceHistory 拉取 [start, end] 区间前复权日 K（fqt=1），按日期升序；代码不存在或区间无交易日时返回空切片。
func (c *Client) PriceHistory(ctx context.Context, code string, start, end time.Time) ([]model.KLine, error) {
	if code == "" {
		return nil, fmt.Errorf("api: empty code")
	}
	if end.Before(start) {
		return nil, fmt.Errorf("api: end %s before start %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	url := fmt.Sprintf("%s?secid=%s&fields1=f1,f2,f3,f4,f5,f6&fields2=%s&klt=101&fqt=1&beg=%s&end=%s",
		c.KLineURL, FormatCode(code), klineFields2, start.Format(klineDateLayout), end.Format(klineDateLayout))
	body, err := c.getBody(ctx, url)
	if err != nil {
		return nil, err
	}
	return parseKlinesGJSON(body, code)
}

func parseKlinesGJSON(body []byte, code string) ([]model.KLine, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("api: invalid kline json for %s", code)
	}
	klines := gjson.GetBytes(body, "data.klines")
	if !klines.Exists() {
		return nil, nil
	}
	if !klines.IsArray() {
		return nil, fmt.Errorf("api: data.klines not array for %s", code)
	}
	arr := klines.Array()
	out := make([]model.KLine, 0, len(arr))
	for _, v := range arr {
		s := strings.TrimSpace(v.String())
		if s == "" {
			continue
		}
		parts := strings.Split(s, ",")
		if len(parts) < 5 {
			continue
		}
		k := model.KLine{Date: parts[0]}
		k.Open, _ = strconv.ParseFloat(parts[1], 64)
		k.Close, _ = strconv.ParseFloat(parts[2], 64)
		k.High, _ = strconv.ParseFloat(parts[3], 64)
		k.Low, _ = strconv.ParseFloat(parts[4], 64)
		if len(parts) >= 6 {
			k.Volume, _ = strconv.ParseInt(parts[5], 10, 64)
		}
		if len(parts) >= 7 {
			k.Amount, _ = strconv.ParseFloat(parts[6], 64)
		}
		out = append(out, k)
	}
	return out, nil
}
