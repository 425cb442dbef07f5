package feed

import (
	"mime"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

var xmlEncodingDecl = regexp.MustCompile(`(?i)^\s*<\?xml[^>]*\bencoding=["'][^"']+["']`)

// decodeCharset transcodes the body to UTF-8 when the Content-Type header
// names a non-UTF-8 charset and the document does not declare one itself.
// A document with its own XML encoding declaration passes through untouched,
// since the XML parser decodes those. Unknown charsets pass through too;
// the parse error downstream is more useful than a transcode error here.
func decodeCharset(data []byte, contentTypeHint string) []byte {
	name := charsetFromHint(contentTypeHint)
	if name == "" || name == "utf-8" || name == "utf8" {
		return data
	}

	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if xmlEncodingDecl.Match(head) {
		return data
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return data
	}
	decoded, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return data
	}
	return decoded
}

func charsetFromHint(contentTypeHint string) string {
	if contentTypeHint == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentTypeHint)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(params["charset"]))
}
