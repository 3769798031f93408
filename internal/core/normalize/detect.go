package normalize

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/joseph-ayodele/freight-intake/constants"
)

// emailHeaders are header names that, seen before the first blank line, mark RFC-822 content.
var emailHeaders = []string{"from:", "to:", "subject:", "message-id:", "received:", "return-path:", "mime-version:", "date:"}

// DetectMime returns the real mime type of the file at path. Content sniffing wins
// over the extension, except where the sniffer is known to be vague (email, HEIC).
func DetectMime(path, filename string) string {
	if filename == "" {
		filename = filepath.Base(path)
	}
	detected := constants.MimeOctet
	if mt, err := mimetype.DetectFile(path); err == nil && mt != nil {
		detected = mt.String()
	}
	return resolve(detected, filename, func() bool {
		f, err := os.Open(path)
		if err != nil {
			return false
		}
		defer f.Close()
		return looksLikeEmail(f)
	})
}

// DetectBytes is DetectMime for an in-memory file.
func DetectBytes(data []byte, filename string) string {
	return resolve(mimetype.Detect(data).String(), filename, func() bool {
		return looksLikeEmail(bytes.NewReader(data))
	})
}

func resolve(detected, filename string, isEmail func() bool) string {
	if i := strings.IndexByte(detected, ';'); i >= 0 {
		detected = detected[:i]
	}
	ext := constants.NormalizeExt(filepath.Ext(filename))
	switch {
	case detected == constants.MimeEmail:
		return detected
	case detected == constants.MimePDF, strings.HasPrefix(detected, "image/"):
		return detected
	case ext == "eml" || isEmail():
		return constants.MimeEmail
	case constants.IsHEICExt(ext):
		return constants.MimeHEIC
	}
	return detected
}

// looksLikeEmail checks that the header block contains at least two known email headers.
func looksLikeEmail(r io.Reader) bool {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 64<<10)
	hits, lines := 0, 0
	for sc.Scan() && lines < 64 {
		line := bytes.TrimRight(sc.Bytes(), "\r")
		lines++
		if len(line) == 0 {
			break
		}
		if line[0] == ' ' || line[0] == '\t' {
			continue
		}
		lower := strings.ToLower(string(line))
		for _, h := range emailHeaders {
			if strings.HasPrefix(lower, h) {
				hits++
				break
			}
		}
	}
	return hits >= 2
}
