// Package mail 按 SMTP 配置发送扫描结果 HTML 邮件。
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"math/rand"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"stockRadar/internal/config"
	"stockRadar/internal/model"
	"stockRadar/internal/radar"
	"stockRadar/internal/trace"
)

const (
	smtpTimeout     = 15 * time.Second
	defaultSMTPPort = 587
	implicitTLSPort = 465
)

// SendReport 发送扫描结果；未配置 SMTP 或无入选时不发送。
func SendReport(ctx context.Context, cfg config.SMTP, rep radar.Report) error {
	if !cfg.Enabled() {
		trace.Log(ctx, "mail: 未配置 SMTP，跳过")
		return nil
	}
	if rep.Len() == 0 {
		trace.Log(ctx, "mail: 无入选股票，不发邮件")
		return nil
	}
	subject := fmt.Sprintf("%s结果 %d 只", rep.Mode.Label(), rep.Len())
	if err := send(cfg, subject, buildHTMLTable(rep), recipients(cfg.To)); err != nil {
		trace.Error(ctx, "mail: 发送失败 err=%v", err)
		return err
	}
	trace.Log(ctx, "mail: 已发送 to=%s count=%d", cfg.To, rep.Len())
	return nil
}

// 提醒邮件附带的炒股格言
var mottos = []string{
	"截断亏损，让利润奔跑。",
	"不要和趋势作对。",
	"会买的是徒弟，会卖的是师傅，会空仓的是祖师爷。",
	"行情总在绝望中诞生，在半信半疑中成长，在憧憬中成熟，在希望中毁灭。",
	"计划你的交易，交易你的计划。",
	"宁可错过，不可做错。",
}

// SendNoSelectionReminder 调度模式下连续多次无入选时发送提醒。
func SendNoSelectionReminder(ctx context.Context, cfg config.SMTP, emptyRuns int) error {
	if !cfg.Enabled() {
		return nil
	}
	motto := mottos[rand.Intn(len(mottos))]
	body := fmt.Sprintf(`<!DOCTYPE html><html><head><meta charset="UTF-8"></head><body><p>已连续 %d 次扫描无入选股票，请检查筛选条件或行情数据。</p><p><i>%s</i></p></body></html>`,
		emptyRuns, html.EscapeString(motto))
	if err := send(cfg, "连续无入选提醒", body, recipients(cfg.To)); err != nil {
		return err
	}
	trace.Log(ctx, "mail: 已发提醒邮件 emptyRuns=%d", emptyRuns)
	return nil
}

func recipients(to string) []string {
	var out []string
	for _, t := range strings.Split(to, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func buildHTMLTable(rep radar.Report) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="UTF-8"><title>扫描结果</title></head><body>`)
	fmt.Fprintf(&b, `<h2>%s结果</h2><p>%s，耗时 %s。</p>`,
		html.EscapeString(rep.Mode.Label()), html.EscapeString(rep.Status), rep.Elapsed.Round(time.Second))
	b.WriteString(`<table border="1" cellspacing="0" cellpadding="8" style="border-collapse: collapse; font-size: 14px;">`)
	if rep.Mode == radar.ModeTail {
		b.WriteString(`<thead><tr style="background: #eee;"><th>代码</th><th>名称</th><th>现价</th><th>涨幅%</th><th>情绪分</th><th>情绪趋势</th><th>大单净流入(万)</th><th>逻辑</th><th>最新新闻</th></tr></thead><tbody>`)
		for _, r := range rep.Tail {
			fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%.2f</td><td>%.2f</td><td>%.2f</td><td>%+.2f</td><td>%.0f</td><td>%s</td><td>%s</td></tr>",
				html.EscapeString(r.Code), html.EscapeString(r.Name), r.Price, r.ChangePct,
				r.Sentiment.Score, r.SentimentTrend, r.NetInflow/1e4,
				rationale(r.Sentiment), html.EscapeString(r.LatestHeadline))
		}
	} else {
		b.WriteString(`<thead><tr style="background: #eee;"><th>代码</th><th>名称</th><th>现价</th><th>MA20</th><th>偏离%</th><th>情绪分</th><th>逻辑</th><th>最新新闻</th></tr></thead><tbody>`)
		for _, r := range rep.Records {
			fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%.2f</td><td>%.2f</td><td>%+.2f</td><td>%.2f</td><td>%s</td><td>%s</td></tr>",
				html.EscapeString(r.Code), html.EscapeString(r.Name), r.Price, r.MA20, r.PriceDeviationPct,
				r.Sentiment.Score, rationale(r.Sentiment), html.EscapeString(r.LatestHeadline))
		}
	}
	b.WriteString("</tbody></table></body></html>")
	return b.String()
}

func rationale(s model.SentimentResult) string {
	return html.EscapeString(s.Category.Label() + "：" + s.Rationale)
}

func send(cfg config.SMTP, subject, htmlBody string, to []string) error {
	if len(to) == 0 {
		return fmt.Errorf("smtp: no recipients")
	}
	port := cfg.Port
	if port == 0 {
		port = defaultSMTPPort
	}
	addr := net.JoinHostPort(cfg.Server, strconv.Itoa(port))

	var conn net.Conn
	var err error
	if port == implicitTLSPort {
		conn, err = tls.DialWithDialer(&net.Dialer{Timeout: smtpTimeout}, "tcp", addr, &tls.Config{ServerName: cfg.Server})
	} else {
		conn, err = net.DialTimeout("tcp", addr, smtpTimeout)
	}
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, cfg.Server)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if port != implicitTLSPort {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: cfg.Server}); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if cfg.Password != "" {
		auth := smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Server)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(cfg.From); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	for _, t := range to {
		if err := client.Rcpt(t); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", t, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write([]byte(message(cfg.From, to, subject, htmlBody))); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return client.Quit()
}

// message 组装邮件头与正文，Subject 按 RFC 2047 编码以支持中文。
func message(from string, to []string, subject, htmlBody string) string {
	return fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		from, strings.Join(to, ","), mime.BEncoding.Encode("UTF-8", subject), htmlBody)
}
