package config

import (
	"os"
	"strconv"
	"strings"
)

// SMTP 环境变量名
const (
	envSMTPServer   = "SMTP_SERVER"
	envSMTPPort     = "SMTP_PORT"
	envSMTPUser     = "SMTP_USER"
	envSMTPPassword = "SMTP_PASSWORD"
	envSMTPAuthCode = "SMTP_AUTH_CODE"
	envSMTPFrom     = "SMTP_FROM"
	envSMTPTo       = "SMTP_TO"
)

type SMTP struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// applyEnv 环境变量覆盖文件配置；授权码优先于密码。
func (s *SMTP) applyEnv() {
	if v := os.Getenv(envSMTPServer); v != "" {
		s.Server = v
	}
	if v := os.Getenv(envSMTPPort); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			s.Port = p
		}
	}
	if v := os.Getenv(envSMTPUser); v != "" {
		s.User = v
	}
	if v := os.Getenv(envSMTPPassword); v != "" {
		s.Password = v
	}
	if v := os.Getenv(envSMTPAuthCode); v != "" {
		s.Password = v
	}
	if v := os.Getenv(envSMTPFrom); v != "" {
		s.From = v
	}
	if v := os.Getenv(envSMTPTo); v != "" {
		s.To = v
	}
	if s.From == "" && s.User != "" {
		s.From = s.User
	}
}

func (s *SMTP) Enabled() bool {
	srv := strings.TrimSpace(s.Server)
	from := strings.TrimSpace(s.From)
	to := strings.TrimSpace(s.To)
	return srv != "" && from != "" && to != ""
}
