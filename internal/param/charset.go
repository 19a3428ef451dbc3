package param

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// DefaultCharset is used when Options.Charset is empty.
const DefaultCharset = "utf-8"

// LookupCharset resolves a charset label such as "utf-8", "windows-1252" or
// "iso-8859-1".
func LookupCharset(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, DefaultCharset) || strings.EqualFold(name, "utf8") {
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", name, err)
	}
	return enc, nil
}

// DecodeText converts raw entry bytes to UTF-8 using the named charset.
// Invalid sequences are replaced, never rejected.
func DecodeText(charset string, raw []byte) (string, error) {
	enc, err := LookupCharset(charset)
	if err != nil {
		return "", err
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", charset, err)
	}
	return string(out), nil
}
