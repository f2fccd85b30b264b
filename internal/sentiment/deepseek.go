package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"

	"stockRadar/internal/model"
	"stockRadar/internal/trace"
)

var (
	// ErrInvalidResponse 推理服务返回内容缺少 JSON 或必需字段。
	ErrInvalidResponse = errors.New("reasoner: invalid response")
	// ErrReasonerDisabled 未配置 API Key。
	ErrReasonerDisabled = errors.New("reasoner: api key not configured")
	// errCallerDone 调用方 ctx 已结束，不计入熔断失败。
	errCallerDone = errors.New("reasoner: caller context done")
)

const promptTemplate = `请分析以下金融新闻的情感和逻辑：

标题：%s
摘要：%s

请以JSON格式返回分析结果，包含以下字段：
- sentiment_score: 情感分（-1到1之间的浮点数，负值表示负面，正值表示正面，0表示中性）
- logic_category: 逻辑分类（只能是以下之一：基本面、资金面、消息面）
- impact_summary: 影响逻辑简评（50字以内的简短说明）

只返回JSON，不要有其他内容。`

type DeepSeekConfig struct {
	APIKey     string
	URL        string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// DeepSeek 调用 chat completions 接口做逻辑推理。连续失败 3 次后熔断 60 秒。
type DeepSeek struct {
	apiKey  string
	url     string
	model   string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

func NewDeepSeek(cfg DeepSeekConfig) *DeepSeek {
	if cfg.Model == "" {
		cfg.Model = "deepseek-reasoner"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultReasonTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	st := gobreaker.Settings{
		Name:     "deepseek",
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			trace.Warn(context.Background(), "熔断器 %s: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errCallerDone)
		},
	}
	return &DeepSeek{
		apiKey:  cfg.APIKey,
		url:     cfg.URL,
		model:   cfg.Model,
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(st),
	}
}

func (d *DeepSeek) Reason(ctx context.Context, title, body string) (model.SentimentResult, error) {
	if d.apiKey == "" {
		return model.SentimentResult{}, ErrReasonerDisabled
	}
	if err := ctx.Err(); err != nil {
		return model.SentimentResult{}, err
	}
	out, err := d.breaker.Execute(func() (interface{}, error) {
		r, err := d.call(ctx, title, body)
		if err != nil && ctx.Err() != nil {
			return r, fmt.Errorf("%w: %w", errCallerDone, ctx.Err())
		}
		return r, err
	})
	if err != nil {
		return model.SentimentResult{}, err
	}
	return out.(model.SentimentResult), nil
}

func (d *DeepSeek) call(ctx context.Context, title, body string) (model.SentimentResult, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       d.model,
		Messages:    []chatMessage{{Role: "user", Content: fmt.Sprintf(promptTemplate, title, body)}},
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if err != nil {
		return model.SentimentResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return model.SentimentResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return model.SentimentResult{}, fmt.Errorf("reasoner: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.SentimentResult{}, fmt.Errorf("reasoner: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return model.SentimentResult{}, fmt.Errorf("reasoner: status %d: %s", resp.StatusCode, clip(string(raw), 200))
	}
	content := gjson.GetBytes(raw, "choices.0.message.content").String()
	return parseReasoning(content)
}

// parseReasoning 取内容中第一个 '{' 到最后一个 '}' 之间的 JSON 对象并校验字段。
func parseReasoning(content string) (model.SentimentResult, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return model.SentimentResult{}, fmt.Errorf("%w: no json object", ErrInvalidResponse)
	}
	obj := content[start : end+1]
	if !gjson.Valid(obj) {
		return model.SentimentResult{}, fmt.Errorf("%w: malformed json", ErrInvalidResponse)
	}
	fields := gjson.GetMany(obj, "sentiment_score", "logic_category", "impact_summary")
	score, category, summary := fields[0], fields[1], fields[2]
	if score.Type != gjson.Number {
		return model.SentimentResult{}, fmt.Errorf("%w: sentiment_score missing or not numeric", ErrInvalidResponse)
	}
	if !category.Exists() || !summary.Exists() {
		return model.SentimentResult{}, fmt.Errorf("%w: missing fields", ErrInvalidResponse)
	}
	cat, ok := model.ParseCategory(strings.TrimSpace(category.String()))
	if !ok {
		return model.SentimentResult{}, fmt.Errorf("%w: unknown category %q", ErrInvalidResponse, category.String())
	}
	return model.SentimentResult{
		Score:     model.ClampScore(score.Float()),
		Category:  cat,
		Rationale: summary.String(),
	}, nil
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
