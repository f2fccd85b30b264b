// Package sentiment 对财经新闻做情绪打分：垃圾过滤、极端词短路、结果缓存、推理服务与关键词兜底。
package sentiment

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"stockRadar/internal/cache"
	"stockRadar/internal/metrics"
	"stockRadar/internal/model"
	"stockRadar/internal/trace"
)

const (
	defaultCacheSize     = 50000
	defaultReasonTimeout = 30 * time.Second
)

// Reasoner 外部推理服务，返回已校验的结果或错误。
type Reasoner interface {
	Reason(ctx context.Context, title, body string) (model.SentimentResult, error)
}

type Options struct {
	Reasoner      Reasoner // 可为 nil，此时直接走关键词打分
	Cache         *cache.ResultCache
	ReasonTimeout time.Duration
	Metrics       *metrics.Recorder
	Lexicon       *Lexicon // nil 时使用 DefaultLexicon
}

// Scorer 并发安全，可被多个 worker 共享。
type Scorer struct {
	reasoner      Reasoner
	cache         *cache.ResultCache
	reasonTimeout time.Duration
	metrics       *metrics.Recorder

	spam        []string
	extremeRe   *regexp.Regexp
	extreme     map[string]float64
	termRe      *regexp.Regexp
	terms       map[string]float64
	positive    []string
	negative    []string
	fundamental []string
	capital     []string
	news        []string
}

func NewScorer(opts Options) *Scorer {
	lex := DefaultLexicon()
	if opts.Lexicon != nil {
		lex = *opts.Lexicon
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewResultCache(defaultCacheSize, nil)
	}
	if opts.ReasonTimeout <= 0 {
		opts.ReasonTimeout = defaultReasonTimeout
	}
	return &Scorer{
		reasoner:      opts.Reasoner,
		cache:         opts.Cache,
		reasonTimeout: opts.ReasonTimeout,
		metrics:       opts.Metrics,
		spam:          lowerAll(lex.Spam),
		extremeRe:     longestFirst(keys(lex.Extreme)),
		extreme:       lex.Extreme,
		termRe:        longestFirst(keys(lex.Terms)),
		terms:         lex.Terms,
		positive:      lex.Positive,
		negative:      lex.Negative,
		fundamental:   lex.Fundamental,
		capital:       lex.Capital,
		news:          lex.News,
	}
}

// Score 对一条新闻打分，永不返回错误。
func (s *Scorer) Score(ctx context.Context, title, body string) model.SentimentResult {
	if s.isSpam(title) || s.isSpam(body) {
		return model.SentimentResult{Score: 0, Category: model.CategoryNewsDriven, Rationale: "垃圾信息，忽略"}
	}

	text := title
	if body != "" {
		text = title + " " + body
	}
	if r, ok := s.extremeResult(text); ok {
		return r
	}

	key := ContentKey(text)
	if r, ok := s.cache.Get(ctx, key); ok {
		s.metrics.CacheLookup("sentiment", true)
		return r
	}
	s.metrics.CacheLookup("sentiment", false)

	if s.reasoner != nil {
		rctx, cancel := context.WithTimeout(ctx, s.reasonTimeout)
		r, err := s.reasoner.Reason(rctx, title, body)
		cancel()
		if err == nil {
			s.metrics.ReasonerCall("ok")
			r.Score = model.ClampScore(r.Score)
			s.cache.Put(ctx, key, r)
			return r
		}
		if ctx.Err() != nil {
			// 调用方已放弃：兜底结果不写缓存，下次同一文本仍走推理服务
			s.metrics.ReasonerCall("canceled")
			trace.Debug(ctx, "调用方 ctx 已结束，本次使用关键词打分: %v", err)
			return s.keywordResult(text)
		}
		s.metrics.ReasonerCall("fallback")
		trace.Warn(ctx, "推理服务失败，使用关键词打分: %v", err)
	}

	r := s.keywordResult(text)
	s.cache.Put(ctx, key, r)
	return r
}

// ScoreText 只有标题、没有正文时使用。
func (s *Scorer) ScoreText(ctx context.Context, text string) model.SentimentResult {
	return s.Score(ctx, text, "")
}

func (s *Scorer) Stats() cache.Stats { return s.cache.Stats() }

func (s *Scorer) Clear() { s.cache.Clear() }

// ContentKey 内容哈希，用作结果缓存的键。
func ContentKey(text string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(text))
}

func (s *Scorer) isSpam(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range s.spam {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// extremeResult 取文本中最靠左的极端词；同一位置长词优先。
func (s *Scorer) extremeResult(text string) (model.SentimentResult, bool) {
	if s.extremeRe == nil {
		return model.SentimentResult{}, false
	}
	term := s.extremeRe.FindString(text)
	if term == "" {
		return model.SentimentResult{}, false
	}
	score := s.extreme[term]
	r := model.SentimentResult{Score: score, Category: model.CategoryNewsDriven}
	if score > 0 {
		r.Category = model.CategoryCapitalFlow
		r.Rationale = fmt.Sprintf("检测到%s，强烈利好", term)
	} else {
		r.Rationale = fmt.Sprintf("检测到%s，强烈利空", term)
	}
	return r, true
}

func (s *Scorer) keywordResult(text string) model.SentimentResult {
	score := 0.0
	for _, kw := range s.positive {
		if strings.Contains(text, kw) {
			score += keywordDelta
		}
	}
	for _, kw := range s.negative {
		if strings.Contains(text, kw) {
			score -= keywordDelta
		}
	}
	if s.termRe != nil {
		for _, m := range s.termRe.FindAllString(text, -1) {
			score += s.terms[m]
		}
	}
	score = model.ClampScore(score)
	category := s.inferCategory(text)
	return model.SentimentResult{
		Score:     score,
		Category:  category,
		Rationale: fmt.Sprintf("%s驱动，%s", category.Label(), impact(score)),
	}
}

// inferCategory 词汇命中数多者胜，平局按 基本面 > 资金面 > 消息面。
func (s *Scorer) inferCategory(text string) model.Category {
	f := countHits(text, s.fundamental)
	c := countHits(text, s.capital)
	n := countHits(text, s.news)
	switch {
	case f >= c && f >= n:
		return model.CategoryFundamental
	case c >= n:
		return model.CategoryCapitalFlow
	default:
		return model.CategoryNewsDriven
	}
}

func impact(score float64) string {
	switch {
	case score > 0.5:
		return "强烈利好"
	case score > 0.2:
		return "利好"
	case score > -0.2:
		return "中性"
	case score > -0.5:
		return "利空"
	default:
		return "强烈利空"
	}
}
