package notify

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrNoRecipients is returned when delivery is requested with an empty
// recipient set.
var ErrNoRecipients = errors.New("notify: no recipients configured")

// Message is one outbound notification: a plaintext body plus file
// attachments keyed by delivered filename.
type Message struct {
	Subject     string
	Body        string
	Attachments map[string]string
}

// Mailer delivers run notifications over SMTP with STARTTLS.
// Attachments are read from disk at send time; an attachment that can
// no longer be read fails the whole send rather than delivering a
// partial report set.
type Mailer struct {
	host       string
	port       int
	sender     string
	password   string
	recipients []string
	logger     *slog.Logger

	// sendMail is injectable for tests; defaults to smtp.SendMail,
	// which negotiates STARTTLS when the server offers it.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// MailerOption configures a Mailer.
type MailerOption func(*Mailer)

// WithMailLogger sets a custom logger.
func WithMailLogger(logger *slog.Logger) MailerOption {
	return func(m *Mailer) {
		m.logger = logger
	}
}

// NewMailer creates a Mailer for the given SMTP endpoint and identity.
func NewMailer(host string, port int, sender, password string, recipients []string, opts ...MailerOption) *Mailer {
	m := &Mailer{
		host:       host,
		port:       port,
		sender:     sender,
		password:   password,
		recipients: recipients,
		logger:     slog.Default(),
		sendMail:   smtp.SendMail,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Send builds and delivers msg to every configured recipient.
func (m *Mailer) Send(msg Message) error {
	if len(m.recipients) == 0 {
		return ErrNoRecipients
	}

	payload, err := m.buildMessage(msg)
	if err != nil {
		return fmt.Errorf("build mail message: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	auth := smtp.PlainAuth("", m.sender, m.password, m.host)

	m.logger.Info("sending notification",
		"server", addr,
		"recipients", len(m.recipients),
		"attachments", len(msg.Attachments),
	)
	if err := m.sendMail(addr, auth, m.sender, m.recipients, payload); err != nil {
		return fmt.Errorf("send mail via %s: %w", addr, err)
	}
	return nil
}

// buildMessage renders the RFC 5322 message: headers, a multipart/mixed
// body with the plaintext part first, then one base64 part per
// attachment in filename order.
func (m *Mailer) buildMessage(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", m.sender)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(m.recipients, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n", mw.Boundary())
	buf.WriteString("\r\n")

	bodyHeader := textproto.MIMEHeader{}
	bodyHeader.Set("Content-Type", "text/plain; charset=utf-8")
	part, err := mw.CreatePart(bodyHeader)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write([]byte(msg.Body)); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(msg.Attachments))
	for name := range msg.Attachments {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := attach(mw, name, msg.Attachments[name]); err != nil {
			return nil, fmt.Errorf("attach %s: %w", name, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// attach writes one base64-encoded attachment part.
func attach(mw *multipart.Writer, name, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // Paths come from the exporter
	if err != nil {
		return err
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Type", contentType(name))
	header.Set("Content-Transfer-Encoding", "base64")
	header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))

	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	// Wrap at 76 columns per RFC 2045.
	for len(encoded) > 76 {
		if _, err := fmt.Fprintf(part, "%s\r\n", encoded[:76]); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err = fmt.Fprintf(part, "%s\r\n", encoded)
	return err
}

// contentType maps an artifact filename to its MIME type.
func contentType(name string) string {
	switch filepath.Ext(name) {
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".md":
		return "text/markdown; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}
