package imap

import (
	"testing"

	goimap "github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const multipartMessage = "MIME-Version: 1.0\r\n" +
	"From: sender@example.com\r\n" +
	"To: recipient@example.com\r\n" +
	"Subject: Multipart test\r\n" +
	"Content-Type: multipart/mixed; boundary=\"outer\"\r\n" +
	"\r\n" +
	"--outer\r\n" +
	"Content-Type: multipart/alternative; boundary=\"inner\"\r\n" +
	"\r\n" +
	"--inner\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"plain text body\r\n" +
	"--inner\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>html body</p>\r\n" +
	"--inner--\r\n" +
	"--outer\r\n" +
	"Content-Type: application/pdf\r\n" +
	"Content-Disposition: attachment; filename=\"invoice.pdf\"\r\n" +
	"\r\n" +
	"%PDF-1.4 fake content\r\n" +
	"--outer--\r\n"

func TestParseMIMEBodyMultipart(t *testing.T) {
	text, html, attachments := parseMIMEBody([]byte(multipartMessage))

	assert.Contains(t, text, "plain text body")
	assert.Contains(t, html, "<p>html body</p>")
	require.Len(t, attachments, 1)
	assert.Equal(t, "invoice.pdf", attachments[0].Filename)
	assert.Equal(t, "application/pdf", attachments[0].ContentType)
	assert.Positive(t, attachments[0].Size)
}

func TestParseMIMEBodyPlainText(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"just a simple message\r\n"

	text, html, attachments := parseMIMEBody([]byte(raw))

	assert.Contains(t, text, "just a simple message")
	assert.Empty(t, html)
	assert.Empty(t, attachments)
}

func TestParseMIMEBodyUnparseableFallsBackToRaw(t *testing.T) {
	raw := "not an email at all"

	text, html, attachments := parseMIMEBody([]byte(raw))

	assert.Equal(t, raw, text)
	assert.Empty(t, html)
	assert.Empty(t, attachments)
}

func TestFormatAddresses(t *testing.T) {
	assert.Equal(t, "", formatAddresses(nil))

	addrs := []goimap.Address{
		{Name: "Alice", Mailbox: "alice", Host: "example.com"},
		{Mailbox: "bob", Host: "example.com"},
	}
	assert.Equal(t,
		"Alice <alice@example.com>, bob@example.com",
		formatAddresses(addrs),
	)
}
