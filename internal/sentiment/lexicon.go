package sentiment

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// 关键词基础分：每命中一个正面/负面关键词 ±0.3
const keywordDelta = 0.3

// Lexicon 打分所用的全部词表，构造 Scorer 时一次性编译。
type Lexicon struct {
	Spam        []string           // 广告/垃圾信息关键词
	Extreme     map[string]float64 // 极端词汇，命中即定分
	Positive    []string
	Negative    []string
	Terms       map[string]float64 // 非极端金融术语增量
	Fundamental []string           // 基本面词汇
	Capital     []string           // 资金面词汇
	News        []string           // 消息面词汇
}

// DefaultLexicon A 股常用黑话与术语。
func DefaultLexicon() Lexicon {
	return Lexicon{
		Spam: []string{
			"推荐股票", "牛股推荐", "免费领取", "加群", "微信", "QQ群",
			"电话", "老师指导", "内幕消息", "必涨", "稳赚", "翻倍",
		},
		Extreme: map[string]float64{
			"涨停":   1.0,
			"封板":   1.0,
			"连板":   0.9,
			"一字涨停": 1.0,
			"地天板":  1.0,
			"大单封板": 0.95,
			"主力封板": 0.95,

			"跌停":   -1.0,
			"一字跌停": -1.0,
			"天地板":  -1.0,
			"闪崩":   -0.95,
			"崩盘":   -0.95,
			"跌穿":   -0.9,
			"破位":   -0.85,
		},
		Positive: []string{
			"利好", "增长", "上涨", "突破", "创新高", "业绩", "盈利",
			"增持", "回购", "政策支持", "超预期", "打板", "封板", "涨停",
		},
		Negative: []string{
			"利空", "下跌", "下滑", "创新低", "亏损", "减持",
			"政策收紧", "低于预期", "跌停", "崩盘", "闪崩", "破位",
		},
		Terms: map[string]float64{
			"打板":   0.7,
			"利好":   0.6,
			"超预期":  0.5,
			"增持":   0.4,
			"回购":   0.4,
			"创新高":  0.5,
			"业绩增长": 0.6,
			"政策支持": 0.5,
			"缩量上涨": 0.3,
			"底背离":  0.5,

			"割韭菜":  -0.7,
			"利空":   -0.6,
			"低于预期": -0.5,
			"减持":   -0.4,
			"创新低":  -0.5,
			"业绩下滑": -0.6,
			"政策收紧": -0.5,
			"高位放量": -0.6,
			"顶背离":  -0.5,
			"放量下跌": -0.7,
		},
		Fundamental: []string{"业绩", "营收", "利润", "财报", "盈利", "亏损", "增长", "下滑", "毛利率", "净利率"},
		Capital:     []string{"涨停", "跌停", "封板", "放量", "缩量", "资金", "主力", "机构", "外资", "北向", "流入", "流出", "成交", "换手"},
		News:        []string{"政策", "公告", "消息", "传闻", "报道", "新闻", "通知", "声明", "发布"},
	}
}

// longestFirst 把词表编译成按长度降序的交替正则：同一起点优先匹配长词，避免被子串遮蔽。
func longestFirst(terms []string) *regexp.Regexp {
	if len(terms) == 0 {
		return nil
	}
	sorted := append([]string(nil), terms...)
	sort.Slice(sorted, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(sorted[i]), utf8.RuneCountInString(sorted[j])
		if li != lj {
			return li > lj
		}
		return sorted[i] < sorted[j]
	})
	quoted := make([]string, len(sorted))
	for i, t := range sorted {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return regexp.MustCompile(strings.Join(quoted, "|"))
}

func keys(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

func countHits(text string, vocab []string) int {
	n := 0
	for _, kw := range vocab {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}
