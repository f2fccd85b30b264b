package sentiment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockRadar/internal/model"
)

func chatResponse(t *testing.T, content string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]interface{}{
		"choices": []interface{}{
			map[string]interface{}{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	require.NoError(t, err)
	return b
}

func TestDeepSeekReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "deepseek-reasoner", req.Model)
		assert.Equal(t, 0.3, req.Temperature)
		assert.Equal(t, 500, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Contains(t, req.Messages[0].Content, "标题：公司中标大单")
		w.Write(chatResponse(t, "分析结果：\n{\"sentiment_score\": 0.6, \"logic_category\": \"基本面\", \"impact_summary\": \"订单增厚业绩\"}"))
	}))
	defer srv.Close()

	d := NewDeepSeek(DeepSeekConfig{APIKey: "sk-test", URL: srv.URL})
	r, err := d.Reason(context.Background(), "公司中标大单", "金额较大")
	require.NoError(t, err)
	assert.Equal(t, model.SentimentResult{Score: 0.6, Category: model.CategoryFundamental, Rationale: "订单增厚业绩"}, r)
}

func TestDeepSeekDisabled(t *testing.T) {
	_, err := NewDeepSeek(DeepSeekConfig{}).Reason(context.Background(), "t", "b")
	assert.ErrorIs(t, err, ErrReasonerDisabled)
}

func TestDeepSeekBreakerOpens(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewDeepSeek(DeepSeekConfig{APIKey: "sk-test", URL: srv.URL})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := d.Reason(ctx, "t", "b")
		require.Error(t, err)
	}
	_, err := d.Reason(ctx, "t", "b")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestDeepSeekCallerDeadlineDoesNotTripBreaker(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-r.Context().Done()
	}))
	defer srv.Close()

	d := NewDeepSeek(DeepSeekConfig{APIKey: "sk-test", URL: srv.URL})
	for i := 0; i < 4; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		_, err := d.Reason(ctx, "t", "b")
		cancel()
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}
	assert.Equal(t, gobreaker.StateClosed, d.breaker.State())
	before := atomic.LoadInt32(&hits)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Reason(canceled, "t", "b")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, before, atomic.LoadInt32(&hits), "no request once the caller is gone")
}

func TestParseReasoning(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    model.SentimentResult
		wantErr bool
	}{
		{
			name:    "english category",
			content: `{"sentiment_score": -0.4, "logic_category": "capital-flow", "impact_summary": "主力流出"}`,
			want:    model.SentimentResult{Score: -0.4, Category: model.CategoryCapitalFlow, Rationale: "主力流出"},
		},
		{
			name:    "score clamped",
			content: `{"sentiment_score": 1.8, "logic_category": "消息面", "impact_summary": "重大利好"}`,
			want:    model.SentimentResult{Score: 1, Category: model.CategoryNewsDriven, Rationale: "重大利好"},
		},
		{name: "no json", content: "无法判断", wantErr: true},
		{name: "malformed", content: `{"sentiment_score": 0.1,`, wantErr: true},
		{name: "missing summary", content: `{"sentiment_score": 0.1, "logic_category": "基本面"}`, wantErr: true},
		{name: "string score", content: `{"sentiment_score": "0.1", "logic_category": "基本面", "impact_summary": "x"}`, wantErr: true},
		{name: "unknown category", content: `{"sentiment_score": 0.1, "logic_category": "技术面", "impact_summary": "x"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseReasoning(tt.content)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScorerFallsBackOnMalformedReasoner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(chatResponse(t, "抱歉，我无法回答"))
	}))
	defer srv.Close()

	s := NewScorer(Options{Reasoner: NewDeepSeek(DeepSeekConfig{APIKey: "sk-test", URL: srv.URL})})
	r := s.ScoreText(context.Background(), "股价上涨")
	assert.InDelta(t, 0.3, r.Score, 1e-9)
	assert.Equal(t, "基本面驱动，利好", r.Rationale)
}
