package api

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"stockRadar/internal/model"
)

const (
	newsPageSize   = 50
	newsTimeLayout = "2006-01-02 15:04:05"
)

// 资讯时间按北京时间解析
var newsLocation = time.FixedZone("CST", 8*3600)

// RecentNews 拉取个股最近 days 天资讯，按时间倒序（最新在前）。
func (c *Client) RecentNews(ctx context.Context, code string, days int) ([]model.NewsItem, error) {
	if code == "" {
		return nil, fmt.Errorf("api: empty code")
	}
	if days <= 0 {
		days = 7
	}
	url := fmt.Sprintf("%s?client=web&biz=web_voice&type=1&mTypeAndCode=%s&pageSize=%d",
		c.NewsURL, FormatCode(code), newsPageSize)
	body, err := c.getBody(ctx, url)
	if err != nil {
		return nil, err
	}
	since := c.clock.Now().In(newsLocation).AddDate(0, 0, -days)
	return parseNewsGJSON(body, since), nil
}

func parseNewsGJSON(body []byte, since time.Time) []model.NewsItem {
	var out []model.NewsItem
	gjson.GetBytes(body, "data.list").ForEach(func(_, v gjson.Result) bool {
		title := strings.TrimSpace(v.Get("Art_Title").String())
		if title == "" {
			return true
		}
		ts, err := time.ParseInLocation(newsTimeLayout, v.Get("Art_ShowTime").String(), newsLocation)
		if err != nil || ts.Before(since) {
			return true
		}
		body := v.Get("Art_Summary").String()
		if body == "" {
			body = v.Get("Art_Content").String()
		}
		out = append(out, model.NewsItem{
			Date:   ts,
			Title:  title,
			Body:   strings.TrimSpace(body),
			Weight: v.Get("Art_ClickCount").Float(),
		})
		return true
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}
