package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockRadar/internal/model"
	"stockRadar/internal/radar"
)

func TestPrintReportText(t *testing.T) {
	var buf bytes.Buffer
	rep := radar.Report{
		Mode:    radar.ModeStandard,
		Status:  "扫描完成！",
		Elapsed: 1500 * time.Millisecond,
		Records: []model.AnalysisRecord{{
			Code: "600519", Name: "贵州茅台", Price: 1800, MA20: 1800,
			Sentiment:      model.SentimentResult{Score: 1, Category: model.CategoryCapitalFlow, Rationale: "检测到涨停，强烈利好"},
			LatestHeadline: "今日涨停，主力封板",
		}},
	}
	require.NoError(t, printReport(&buf, rep, false))
	out := buf.String()
	assert.Contains(t, out, "全市场雷达：扫描完成！（1 只，耗时 1.5s）")
	assert.Contains(t, out, "600519 贵州茅台 现价=1800.00 MA20=1800.00 偏离=+0.00% 情绪=1.00 资金面：检测到涨停，强烈利好 | 今日涨停，主力封板")
}

func TestPrintReportJSON(t *testing.T) {
	var buf bytes.Buffer
	rep := radar.Report{Mode: radar.ModeTail, Status: "尾盘扫描完成", Tail: []model.TailRecord{{Code: "300750", NetInflow: 1e6}}}
	require.NoError(t, printReport(&buf, rep, true))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "tail", decoded["mode"])
	tail := decoded["tail"].([]interface{})
	require.Len(t, tail, 1)
	assert.Equal(t, "300750", tail[0].(map[string]interface{})["code"])
	_, hasRecords := decoded["records"]
	assert.False(t, hasRecords)
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"scan", "sector", "sentiment", "schedule"})
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}
