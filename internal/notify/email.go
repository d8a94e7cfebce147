package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"marketpulse/internal/config"
)

// Email delivers digests over SMTP with implicit TLS, rendering the
// markdown content into a simple HTML body.
type Email struct {
	host     string
	port     int
	user     string
	password string
	from     string
	to       []string
}

func NewEmail(cfg config.EmailNotifyConfig) *Email {
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	var to []string
	for _, addr := range strings.Split(cfg.To, ",") {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			to = append(to, addr)
		}
	}
	return &Email{
		host:     cfg.Host,
		port:     cfg.Port,
		user:     cfg.User,
		password: cfg.Password,
		from:     from,
		to:       to,
	}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Send(ctx context.Context, content string) error {
	if e == nil || e.host == "" || len(e.to) == 0 {
		return fmt.Errorf("email not configured")
	}

	addr := net.JoinHostPort(e.host, strconv.Itoa(e.port))
	dialer := &tls.Dialer{Config: &tls.Config{ServerName: e.host}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}

	client, err := smtp.NewClient(conn, e.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if e.user != "" {
		auth := smtp.PlainAuth("", e.user, e.password, e.host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(e.from); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	for _, rcpt := range e.to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := writer.Write(e.buildMessage(content)); err != nil {
		writer.Close()
		return fmt.Errorf("write body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close body: %w", err)
	}
	return client.Quit()
}

func (e *Email) buildMessage(content string) []byte {
	subject := "Market Intelligence Digest"
	if idx := strings.Index(content, "\n"); idx > 0 {
		first := strings.TrimSpace(strings.TrimLeft(content[:idx], "# "))
		if first != "" {
			subject = first
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(renderHTML(content))
	return []byte(b.String())
}

// renderHTML converts the markdown digest to minimal HTML, coloring
// bullish and bearish lines.
func renderHTML(content string) string {
	var b strings.Builder
	b.WriteString(`<html><body style="font-family:sans-serif">`)
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		escaped := html.EscapeString(strings.TrimLeft(trimmed, "# "))
		switch {
		case trimmed == "":
			b.WriteString("<br>")
		case strings.HasPrefix(trimmed, "## "):
			fmt.Fprintf(&b, "<h3>%s</h3>", escaped)
		case strings.HasPrefix(trimmed, "# "):
			fmt.Fprintf(&b, "<h2>%s</h2>", escaped)
		case strings.Contains(trimmed, "bullish") || strings.Contains(trimmed, "📈"):
			fmt.Fprintf(&b, `<p style="color:#c0392b">%s</p>`, html.EscapeString(trimmed))
		case strings.Contains(trimmed, "bearish") || strings.Contains(trimmed, "📉"):
			fmt.Fprintf(&b, `<p style="color:#27ae60">%s</p>`, html.EscapeString(trimmed))
		default:
			fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(trimmed))
		}
	}
	b.WriteString("</body></html>")
	return b.String()
}
