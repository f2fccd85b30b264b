package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(Options{RequestGap: time.Millisecond, MaxConcurrent: 2})
	c.ListURL = srv.URL + "/list"
	c.KLineURL = srv.URL + "/kline"
	c.StockURL = srv.URL + "/stock"
	c.NewsURL = srv.URL + "/news"
	return c
}

func TestFormatCode(t *testing.T) {
	assert.Equal(t, "1.600519", FormatCode("600519"))
	assert.Equal(t, "1.510300", FormatCode(" 510300 "))
	assert.Equal(t, "0.000001", FormatCode("000001"))
	assert.Equal(t, "0.300750", FormatCode("300750"))
}

func TestFetchSnapshotDecodesRowsAndMissingFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/list", r.URL.Path)
		fmt.Fprint(w, `{"rc":0,"data":{"total":3,"diff":[
			{"f2":1800.5,"f3":3.0,"f5":12000,"f6":2.1e9,"f8":5.0,"f9":30.2,"f10":1.3,"f12":"600519","f14":"贵州茅台","f20":2.2e12,"f62":1.5e8,"f72":8e7},
			{"f2":"-","f3":"-","f5":"-","f6":"-","f8":"-","f9":"-","f10":"-","f12":"600000","f14":"浦发银行","f20":"-","f62":"-","f72":"-"},
			{"f2":10,"f3":-1,"f5":100,"f6":0,"f8":1,"f9":-5,"f10":1,"f12":"000001","f14":"平安银行","f20":1,"f62":0,"f72":0}
		]}}`)
	})
	rows, err := c.FetchSnapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "600519", rows[0].Code)
	assert.Equal(t, 1800.5, rows[0].Price)
	assert.Equal(t, 3.0, rows[0].ChangePct)
	assert.Equal(t, 5.0, rows[0].TurnoverRate)
	assert.Equal(t, int64(12000), rows[0].Volume)
	assert.Equal(t, 8e7, rows[0].LargeOrderNetInflow)
	assert.False(t, rows[0].Incomplete)

	assert.True(t, rows[1].Incomplete)

	assert.Equal(t, 0.0, rows[2].PE)
	assert.Equal(t, 100*100*10.0, rows[2].Amount)
}

func TestFetchSnapshotPaginates(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("pn")
		atomic.AddInt32(&calls, 1)
		var items []string
		n := listPageSize
		if page == "2" {
			n = 3
		}
		for i := 0; i < n; i++ {
			items = append(items, fmt.Sprintf(`{"f2":1,"f3":1,"f8":1,"f12":"%s%04d","f14":"x"}`, page, i))
		}
		fmt.Fprintf(w, `{"data":{"total":%d,"diff":[%s]}}`, listPageSize+3, strings.Join(items, ","))
	})
	rows, err := c.FetchSnapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, listPageSize+3)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchSnapshotNullData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"rc":0,"data":null}`)
	})
	rows, err := c.FetchSnapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDoWithRetryGivesUpOnServerError(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := c.FetchSnapshot(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(maxRetries), atomic.LoadInt32(&calls))
}

func TestBoardQuotes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "b:BK0477", r.URL.Query().Get("fs"))
		fmt.Fprint(w, `{"data":{"total":1,"diff":{"0":{"f2":20,"f3":2.5,"f8":4,"f12":"000858","f14":"五粮液"}}}}`)
	})
	rows, err := c.BoardQuotes(context.Background(), "BK0477")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "000858", rows[0].Code)

	_, err = c.BoardQuotes(context.Background(), " ")
	assert.Error(t, err)
}

func TestPriceHistory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "1.600519", q.Get("secid"))
		assert.Equal(t, "20240501", q.Get("beg"))
		assert.Equal(t, "20240531", q.Get("end"))
		fmt.Fprint(w, `{"data":{"code":"600519","klines":[
			"2024-05-29,1790.0,1800.0,1810.0,1785.0,20000,3.6e9",
			"2024-05-30,1800.0,1805.5,1812.0,1795.0,21000,3.7e9"]}}`)
	})
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.Local)
	end := time.Date(2024, 5, 31, 0, 0, 0, 0, time.Local)
	ks, err := c.PriceHistory(context.Background(), "600519", start, end)
	require.NoError(t, err)
	require.Len(t, ks, 2)
	assert.Equal(t, "2024-05-30", ks[1].Date)
	assert.Equal(t, 1805.5, ks[1].Close)
	assert.Equal(t, 1812.0, ks[1].High)
	assert.Equal(t, int64(21000), ks[1].Volume)

	_, err = c.PriceHistory(context.Background(), "600519", end, start)
	assert.Error(t, err)
}

func TestPriceHistoryUnknownCodeIsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"rc":0,"data":null}`)
	})
	ks, err := c.PriceHistory(context.Background(), "999999", time.Now().AddDate(0, 0, -30), time.Now())
	require.NoError(t, err)
	assert.Empty(t, ks)
}

func TestNetInflow(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("secid") {
		case "1.600519":
			fmt.Fprint(w, `{"data":{"f62":5e7,"f72":3e7}}`)
		case "0.000001":
			fmt.Fprint(w, `{"data":{"f62":-2e7,"f72":"-"}}`)
		default:
			fmt.Fprint(w, `{"data":null}`)
		}
	})
	v, err := c.NetInflow(context.Background(), "600519")
	require.NoError(t, err)
	assert.Equal(t, 3e7, v)

	v, err = c.NetInflow(context.Background(), "000001")
	require.NoError(t, err)
	assert.Equal(t, -2e7, v)

	v, err = c.NetInflow(context.Background(), "300000")
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestParseNewsFiltersAndOrders(t *testing.T) {
	loc := newsLocation
	since := time.Date(2024, 5, 1, 0, 0, 0, 0, loc)
	body := []byte(`{"data":{"list":[
		{"Art_ShowTime":"2024-05-02 09:00:00","Art_Title":"公司发布回购公告","Art_Summary":"拟回购"},
		{"Art_ShowTime":"2024-04-20 09:00:00","Art_Title":"过期新闻"},
		{"Art_ShowTime":"2024-05-03 15:30:00","Art_Title":"业绩增长超预期","Art_Content":"正文"},
		{"Art_ShowTime":"2024-05-03 16:00:00","Art_Title":""}
	]}}`)
	items := parseNewsGJSON(body, since)
	require.Len(t, items, 2)
	assert.Equal(t, "业绩增长超预期", items[0].Title)
	assert.Equal(t, "正文", items[0].Body)
	assert.Equal(t, "拟回购", items[1].Body)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestRecentNewsWindowFollowsClock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1.600519", r.URL.Query().Get("mTypeAndCode"))
		fmt.Fprint(w, `{"data":{"list":[
			{"Art_ShowTime":"2024-05-03 15:30:00","Art_Title":"业绩增长超预期"},
			{"Art_ShowTime":"2024-05-02 09:00:00","Art_Title":"公司发布回购公告"},
			{"Art_ShowTime":"2024-04-28 09:00:00","Art_Title":"窗口外新闻"}
		]}}`)
	}))
	defer srv.Close()

	now := time.Date(2024, 5, 4, 10, 0, 0, 0, newsLocation)
	c := NewClient(Options{RequestGap: time.Millisecond, Clock: fixedClock{now}})
	c.NewsURL = srv.URL

	items, err := c.RecentNews(context.Background(), "600519", 3)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "业绩增长超预期", items[0].Title)
	assert.Equal(t, "公司发布回购公告", items[1].Title)
}
