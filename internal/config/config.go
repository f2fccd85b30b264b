// Package config 从 YAML 文件、.env 与环境变量加载扫描配置，环境变量优先。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 配置路径与环境变量名
const (
	defaultConfigPath    = "config.yaml"
	envConfigPath        = "CONFIG_PATH"
	envDeepSeekAPIKey    = "DEEPSEEK_API_KEY"
	envDeepSeekAPIBase   = "DEEPSEEK_API_BASE"
	envRedisAddr         = "REDIS_ADDR"
	envLogLevel          = "STOCKRADAR_LOG_LEVEL"
	envLogFile           = "STOCKRADAR_LOG_FILE"
	envMetricsAddr       = "STOCKRADAR_METRICS_ADDR"
	envAPIDelayMS        = "STOCKRADAR_API_DELAY_MS"
	envAPIMaxConcurrent  = "STOCKRADAR_API_MAX_CONCURRENT"
	envEnrichConcurrency = "STOCKRADAR_CONCURRENCY"
)

// 每次请求并发上限，防止被东方财富封禁
const maxConcurrentCap = 20

type Config struct {
	Snapshot  Snapshot  `yaml:"snapshot"`
	Screen    Screen    `yaml:"screen"`
	Enrich    Enrich    `yaml:"enrich"`
	Tail      Tail      `yaml:"tail"`
	Sector    Sector    `yaml:"sector"`
	Sentiment Sentiment `yaml:"sentiment"`
	API       API       `yaml:"api"`
	Log       Log       `yaml:"log"`
	Metrics   Metrics   `yaml:"metrics"`
	SMTP      SMTP      `yaml:"smtp"`
}

type Snapshot struct {
	TTL time.Duration `yaml:"ttl"`
}

// Screen 初筛阈值。
type Screen struct {
	ChangePctMin float64 `yaml:"change_pct_min"`
	ChangePctMax float64 `yaml:"change_pct_max"`
	TurnoverMin  float64 `yaml:"turnover_min"`
	PoolSize     int     `yaml:"pool_size"`
	MAWorkers    int     `yaml:"ma_workers"`
	MATolerance  float64 `yaml:"ma_tolerance"`
	TopN         int     `yaml:"top_n"`
	HistoryDays  int     `yaml:"history_days"`
}

// Enrich 精筛并发与超时。
type Enrich struct {
	Workers       int           `yaml:"workers"`
	TaskTimeout   time.Duration `yaml:"task_timeout"`
	BatchTimeout  time.Duration `yaml:"batch_timeout"`
	NewsDays      int           `yaml:"news_days"`
	BodyLimit     int           `yaml:"body_limit"`
	HeadlineLimit int           `yaml:"headline_limit"`
}

// Tail 尾盘扫描参数；SwitchAt 之后自动模式切换为尾盘扫描。
type Tail struct {
	PoolSize     int           `yaml:"pool_size"`
	TrendDays    int           `yaml:"trend_days"`
	TopN         int           `yaml:"top_n"`
	Workers      int           `yaml:"workers"`
	TaskTimeout  time.Duration `yaml:"task_timeout"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	SwitchAt     string        `yaml:"switch_at"`
	Timezone     string        `yaml:"timezone"`
}

type Sector struct {
	Threshold    float64       `yaml:"threshold"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

type Sentiment struct {
	CacheMaxSize int           `yaml:"cache_max_size"`
	RedisAddr    string        `yaml:"redis_addr"`
	RedisTTL     time.Duration `yaml:"redis_ttl"`
	Reasoner     Reasoner      `yaml:"reasoner"`
}

// Reasoner DeepSeek 推理服务；APIKey 为空时不启用。
type Reasoner struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

func (r Reasoner) Enabled() bool { return r.APIKey != "" }

// API 东方财富请求节流。
type API struct {
	DelayMS       int `yaml:"delay_ms"`
	MaxConcurrent int `yaml:"max_concurrent"`
}

type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Metrics struct {
	Addr string `yaml:"addr"`
}

// Default 返回全部默认值。
func Default() *Config {
	return &Config{
		Snapshot: Snapshot{TTL: 60 * time.Second},
		Screen: Screen{
			ChangePctMin: 2,
			ChangePctMax: 5,
			TurnoverMin:  3,
			PoolSize:     20,
			MAWorkers:    5,
			MATolerance:  0.02,
			TopN:         20,
			HistoryDays:  30,
		},
		Enrich: Enrich{
			Workers:       10,
			TaskTimeout:   3 * time.Second,
			BatchTimeout:  15 * time.Second,
			NewsDays:      7,
			BodyLimit:     200,
			HeadlineLimit: 50,
		},
		Tail: Tail{
			PoolSize:     50,
			TrendDays:    5,
			TopN:         10,
			Workers:      10,
			TaskTimeout:  10 * time.Second,
			BatchTimeout: 30 * time.Second,
			SwitchAt:     "14:30",
			Timezone:     "Asia/Shanghai",
		},
		Sector: Sector{Threshold: 0.3, BatchTimeout: 30 * time.Second},
		Sentiment: Sentiment{
			CacheMaxSize: 50000,
			RedisTTL:     24 * time.Hour,
			Reasoner: Reasoner{
				BaseURL: "https://api.deepseek.com/v1/chat/completions",
				Model:   "deepseek-reasoner",
				Timeout: 30 * time.Second,
			},
		},
		API: API{DelayMS: 200, MaxConcurrent: 4},
		Log: Log{Level: "info"},
	}
}

// Load 先加载 .env，再读 path（为空时取 CONFIG_PATH，默认 config.yaml），最后被环境变量覆盖。
// 配置文件不存在时使用默认值。
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if path == "" {
		path = os.Getenv(envConfigPath)
	}
	if path == "" {
		path = defaultConfigPath
	}
	cfg := Default()
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(envDeepSeekAPIKey); v != "" {
		c.Sentiment.Reasoner.APIKey = v
	}
	if v := os.Getenv(envDeepSeekAPIBase); v != "" {
		c.Sentiment.Reasoner.BaseURL = v
	}
	if v := os.Getenv(envRedisAddr); v != "" {
		c.Sentiment.RedisAddr = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(envLogFile); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv(envMetricsAddr); v != "" {
		c.Metrics.Addr = v
	}
	if n, ok := positiveEnv(envAPIDelayMS); ok {
		c.API.DelayMS = n
	}
	if n, ok := positiveEnv(envAPIMaxConcurrent); ok {
		if n > maxConcurrentCap {
			n = maxConcurrentCap
		}
		c.API.MaxConcurrent = n
	}
	if n, ok := positiveEnv(envEnrichConcurrency); ok {
		c.Enrich.Workers = n
	}
	c.SMTP.applyEnv()
}

func positiveEnv(name string) (int, bool) {
	s := os.Getenv(name)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Validate 检查配置是否可用。
func (c *Config) Validate() error {
	if c.Snapshot.TTL <= 0 {
		return fmt.Errorf("config: snapshot.ttl must be positive")
	}
	s := c.Screen
	if s.ChangePctMin > s.ChangePctMax {
		return fmt.Errorf("config: screen.change_pct_min %.2f > change_pct_max %.2f", s.ChangePctMin, s.ChangePctMax)
	}
	if s.PoolSize <= 0 || s.MAWorkers <= 0 || s.TopN <= 0 || s.HistoryDays <= 0 {
		return fmt.Errorf("config: screen pool_size/ma_workers/top_n/history_days must be positive")
	}
	if s.MATolerance < 0 {
		return fmt.Errorf("config: screen.ma_tolerance must not be negative")
	}
	e := c.Enrich
	if e.Workers <= 0 || e.TaskTimeout <= 0 || e.BatchTimeout <= 0 || e.NewsDays <= 0 {
		return fmt.Errorf("config: enrich workers/task_timeout/batch_timeout/news_days must be positive")
	}
	t := c.Tail
	if t.PoolSize <= 0 || t.TrendDays < 2 || t.TopN <= 0 || t.Workers <= 0 || t.TaskTimeout <= 0 || t.BatchTimeout <= 0 {
		return fmt.Errorf("config: tail pool_size/top_n/workers/timeouts must be positive and trend_days >= 2")
	}
	if _, _, err := ParseClock(t.SwitchAt); err != nil {
		return fmt.Errorf("config: tail.switch_at: %w", err)
	}
	if _, err := time.LoadLocation(t.Timezone); err != nil {
		return fmt.Errorf("config: tail.timezone: %w", err)
	}
	if c.Sector.BatchTimeout <= 0 {
		return fmt.Errorf("config: sector.batch_timeout must be positive")
	}
	if c.Sentiment.CacheMaxSize <= 0 {
		return fmt.Errorf("config: sentiment.cache_max_size must be positive")
	}
	if c.Sentiment.Reasoner.Timeout <= 0 {
		return fmt.Errorf("config: sentiment.reasoner.timeout must be positive")
	}
	return nil
}

// ParseClock 解析 "HH:MM"。
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}

// Location 返回尾盘切换使用的时区。
func (t Tail) Location() *time.Location {
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
