package api

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"
)

// NetInflow 查询单只股票大单净流入(元)，无大单数据时退回主力净流入，均无则为 0。
func (c *Client) NetInflow(ctx context.Context, code string) (float64, error) {
	if code == "" {
		return 0, fmt.Errorf("api: empty code")
	}
	url := fmt.Sprintf("%s?secid=%s&fields=f57,f58,f62,f72", c.StockURL, FormatCode(code))
	body, err := c.getBody(ctx, url)
	if err != nil {
		return 0, err
	}
	return parseNetInflow(body), nil
}

func parseNetInflow(body []byte) float64 {
	data := gjson.GetBytes(body, "data")
	if !data.IsObject() {
		return 0
	}
	for _, field := range []string{"f72", "f62"} {
		v := data.Get(field)
		if v.Type == gjson.Number && v.Float() != 0 {
			return v.Float()
		}
	}
	return 0
}
