package email

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crlf(s string) []byte { return []byte(strings.ReplaceAll(s, "\n", "\r\n")) }

func TestParse_PlainText(t *testing.T) {
	raw := crlf(`From: Jane <jane@example.com>
To: quotes@forwarder.example
Subject: =?UTF-8?Q?Quote_request_=E2=80=93_Hilux?=
Date: Mon, 4 Mar 2024 10:00:00 +0000
Message-ID: <abc123@example.com>

VIN: 1HGCM82633A123456, from Antwerp to Lagos
`)
	msg, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "abc123@example.com", msg.MessageID)
	assert.Equal(t, "Jane <jane@example.com>", msg.From)
	assert.Equal(t, "Quote request – Hilux", msg.Subject)
	assert.Contains(t, msg.Body(), "from Antwerp to Lagos")
	assert.Empty(t, msg.Attachments)
}

func TestParse_MultipartWithAttachment(t *testing.T) {
	raw := crlf(`From: a@example.com
Subject: docs
Content-Type: multipart/mixed; boundary="XYZ"

--XYZ
Content-Type: multipart/alternative; boundary="ALT"

--ALT
Content-Type: text/plain; charset=utf-8
Content-Transfer-Encoding: quoted-printable

Please ship from Antwerp to Lagos=2E
--ALT
Content-Type: text/html; charset=utf-8

<p>Please ship <b>from Antwerp to Lagos</b>.</p>
--ALT--
--XYZ
Content-Type: application/pdf; name="invoice.pdf"
Content-Disposition: attachment; filename="invoice.pdf"
Content-Transfer-Encoding: base64

JVBERi0xLjQK
JSVFT0YK
--XYZ--
`)
	msg, err := Parse(raw)
	require.NoError(t, err)
	assert.Empty(t, msg.MessageID)
	assert.Equal(t, "Please ship from Antwerp to Lagos.", strings.TrimSpace(msg.Text))
	assert.Contains(t, msg.HTML, "<b>")
	require.Len(t, msg.Attachments, 1)
	att := msg.Attachments[0]
	assert.Equal(t, "invoice.pdf", att.Filename)
	assert.Equal(t, "application/pdf", att.ContentType)
	assert.Equal(t, "%PDF-1.4\n%%EOF\n", string(att.Data))
}

func TestParse_HTMLOnlyBody(t *testing.T) {
	raw := crlf(`From: a@example.com
Content-Type: text/html; charset=utf-8

<html><head><style>p{}</style></head><body><p>VIN: 1HGCM82633A123456</p><p>from Antwerp&nbsp;to Lagos</p></body></html>
`)
	msg, err := Parse(raw)
	require.NoError(t, err)
	body := msg.Body()
	assert.Contains(t, body, "VIN: 1HGCM82633A123456")
	assert.Contains(t, body, "from Antwerp to Lagos")
	assert.NotContains(t, body, "<")
	assert.NotContains(t, body, "p{}")
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("not an email at all"))
	require.Error(t, err)
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "a & b\nc", StripHTML("<div>a &amp; b</div><script>x()</script>c"))
}

func TestParse_Windows1252Body(t *testing.T) {
	raw := append(crlf(`From: =?windows-1252?Q?Ren=E9_=93Logistics=94?= <rene@example.com>
Subject: price
Content-Type: text/plain; charset=windows-1252

`), []byte("Price \x80500 \x93quote\x94 \x96 K\xf6ln\r\n")...)

	msg, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "Price €500 “quote” – Köln", strings.TrimSpace(msg.Text))
	assert.Equal(t, "René “Logistics” <rene@example.com>", msg.From)
}

func TestParse_UnknownCharsetKeepsValidUTF8(t *testing.T) {
	raw := append(crlf(`From: a@example.com
Content-Type: text/plain; charset=x-made-up

`), []byte("VIN 1HGCM82633A123456 \xff\r\n")...)

	msg, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "VIN 1HGCM82633A123456 \uFFFD", strings.TrimSpace(msg.Text))
}
