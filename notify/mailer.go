package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mailer delivers one rendered digest to one recipient.
type Mailer interface {
	Send(ctx context.Context, recipient string, d *Digest) error
}

// SMTPMailer speaks plain SMTP with STARTTLS. One connection per send;
// digests are rare enough that pooling buys nothing.
type SMTPMailer struct {
	sender   string
	password string
	host     string
	port     int
}

func NewSMTPMailer(sender, password, host string, port int) *SMTPMailer {
	if host == "" {
		host, port = InferSMTP(sender)
	}
	return &SMTPMailer{sender: sender, password: password, host: host, port: port}
}

// InferSMTP maps a sender address to its provider's submission endpoint.
// Unknown providers fall back to smtp.<domain>:587; override in config
// when that guess is wrong.
func InferSMTP(sender string) (string, int) {
	at := strings.LastIndex(sender, "@")
	if at < 0 {
		return "", 587
	}
	domain := strings.ToLower(sender[at+1:])

	switch domain {
	case "gmail.com", "googlemail.com":
		return "smtp.gmail.com", 587
	case "proton.me", "protonmail.com", "pm.me":
		return "mail.proton.me", 587
	case "outlook.com", "hotmail.com", "live.com":
		return "smtp-mail.outlook.com", 587
	case "yahoo.com":
		return "smtp.mail.yahoo.com", 587
	default:
		return "smtp." + domain, 587
	}
}

func (m *SMTPMailer) Send(ctx context.Context, recipient string, d *Digest) error {
	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))

	dialer := &net.Dialer{Timeout: 15 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	auth := smtp.PlainAuth("", m.sender, m.password, m.host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	if err := client.Mail(m.sender); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(recipient); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(buildMessage(m.sender, recipient, d)); err != nil {
		w.Close()
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close message: %w", err)
	}

	return client.Quit()
}

// buildMessage assembles a multipart/alternative MIME message so clients
// without HTML rendering still get the text digest.
func buildMessage(sender, recipient string, d *Digest) []byte {
	boundary := "b-" + uuid.NewString()

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", sender)
	fmt.Fprintf(&b, "To: %s\r\n", recipient)
	fmt.Fprintf(&b, "Subject: %s\r\n", encodeSubject(d.Subject))
	fmt.Fprintf(&b, "Message-ID: <%s@rentwatch>\r\n", uuid.NewString())
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(d.Text)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(d.HTML)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}

// encodeSubject wraps non-ASCII subjects in RFC 2047 encoding.
func encodeSubject(s string) string {
	return mime.BEncoding.Encode("UTF-8", s)
}
