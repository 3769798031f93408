// Package email parses RFC 822 messages into headers, a plain-text body and attachments.
package email

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// maxPartBytes bounds any single decoded MIME part.
const maxPartBytes = 25 << 20

type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Message struct {
	MessageID   string // angle brackets stripped; empty when absent
	From        string
	To          string
	Cc          string
	Subject     string
	Date        string
	Text        string
	HTML        string
	Attachments []Attachment
}

var wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}

// charsetReader transcodes input from any WHATWG-labelled charset to UTF-8.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	label := strings.ToLower(strings.TrimSpace(charset))
	if label == "" || label == "utf-8" || label == "us-ascii" {
		return input, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	return transform.NewReader(input, enc.NewDecoder()), nil
}

// Parse reads a raw message.
func Parse(raw []byte) (*Message, error) {
	m, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}
	msg := &Message{
		MessageID: strings.Trim(strings.TrimSpace(m.Header.Get("Message-Id")), "<>"),
		From:      decodeHeader(m.Header.Get("From")),
		To:        decodeHeader(m.Header.Get("To")),
		Cc:        decodeHeader(m.Header.Get("Cc")),
		Subject:   decodeHeader(m.Header.Get("Subject")),
		Date:      strings.TrimSpace(m.Header.Get("Date")),
	}
	if err := msg.walk(m.Header.Get("Content-Type"), m.Header.Get("Content-Transfer-Encoding"), "", m.Body, 0); err != nil {
		return nil, err
	}
	return msg, nil
}

// Body is the plain-text body, falling back to the HTML part with tags stripped.
func (m *Message) Body() string {
	if strings.TrimSpace(m.Text) != "" {
		return m.Text
	}
	return StripHTML(m.HTML)
}

func (m *Message) walk(contentType, encoding, disposition string, body io.Reader, depth int) error {
	if depth > 10 {
		return fmt.Errorf("mime nesting too deep")
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || contentType == "" {
		mediaType, params = "text/plain", map[string]string{}
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return fmt.Errorf("multipart without boundary")
		}
		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextRawPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read part: %w", err)
			}
			if err := m.walk(part.Header.Get("Content-Type"), part.Header.Get("Content-Transfer-Encoding"),
				part.Header.Get("Content-Disposition"), part, depth+1); err != nil {
				return err
			}
		}
	}

	data, err := io.ReadAll(io.LimitReader(decodeTransfer(encoding, body), maxPartBytes))
	if err != nil {
		return fmt.Errorf("decode %s part: %w", mediaType, err)
	}

	disp, dparams, _ := mime.ParseMediaType(disposition)
	filename := dparams["filename"]
	if filename == "" {
		filename = params["name"]
	}
	filename = decodeHeader(filename)

	if disp == "attachment" || filename != "" || !strings.HasPrefix(mediaType, "text/") {
		if filename == "" {
			filename = fmt.Sprintf("attachment-%d%s", len(m.Attachments)+1, extFor(mediaType))
		}
		m.Attachments = append(m.Attachments, Attachment{
			Filename:    filepath.Base(filename),
			ContentType: mediaType,
			Data:        data,
		})
		return nil
	}

	text, err := toUTF8(params["charset"], data)
	if err != nil {
		return err
	}
	switch mediaType {
	case "text/html":
		if m.HTML == "" {
			m.HTML = text
		}
	default:
		if m.Text == "" {
			m.Text = text
		}
	}
	return nil
}

func decodeTransfer(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, newlineStripper{r})
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}

// newlineStripper drops CR and LF so wrapped base64 decodes.
type newlineStripper struct{ r io.Reader }

func (n newlineStripper) Read(p []byte) (int, error) {
	for {
		c, err := n.r.Read(p)
		out := p[:0]
		for _, b := range p[:c] {
			if b != '\r' && b != '\n' {
				out = append(out, b)
			}
		}
		if len(out) > 0 || err != nil {
			return len(out), err
		}
	}
}

func decodeHeader(v string) string {
	v = strings.TrimSpace(v)
	if d, err := wordDecoder.DecodeHeader(v); err == nil {
		return d
	}
	return v
}

// toUTF8 decodes a text part. Unknown charsets keep the bytes with invalid sequences replaced.
func toUTF8(charset string, data []byte) (string, error) {
	r, err := charsetReader(charset, bytes.NewReader(data))
	if err != nil {
		return string(bytes.ToValidUTF8(data, []byte("\uFFFD"))), nil
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decode %s text: %w", charset, err)
	}
	return string(bytes.ToValidUTF8(b, []byte("\uFFFD"))), nil
}

func extFor(mediaType string) string {
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

var (
	reDropBlocks = regexp.MustCompile(`(?is)<(script|style|head)[^>]*>.*?</(script|style|head)>`)
	reBreaks     = regexp.MustCompile(`(?i)<\s*(br|/p|/div|/tr|/li|/h[1-6])\s*/?>`)
	reTags       = regexp.MustCompile(`<[^>]+>`)
	reSpaces     = regexp.MustCompile(`[ \t]+`)
	reBlank      = regexp.MustCompile(`\n\s*\n+`)
)

var entities = strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'", "&apos;", "'")

// StripHTML renders HTML as plain text with line breaks kept.
func StripHTML(s string) string {
	s = reDropBlocks.ReplaceAllString(s, "")
	s = reBreaks.ReplaceAllString(s, "\n")
	s = reTags.ReplaceAllString(s, "")
	s = entities.Replace(s)
	s = reSpaces.ReplaceAllString(s, " ")
	s = reBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
