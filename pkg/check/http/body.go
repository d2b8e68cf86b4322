package http

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const defaultCharset = "utf-8"

// Body is a decoded response body.
type Body struct {
	// Text is the body decoded with the resolved charset. Undecodable
	// sequences are replaced with U+FFFD.
	Text string

	// Length is the number of bytes received, measured before decoding.
	// Content-Length is not trusted: chunked transfers, compression and
	// trailers make it unreliable.
	Length int

	// Charset is the canonical name of the encoding used for decoding.
	Charset string
}

// DecodeError reports that the response body could not be read.
// Decoding itself never fails.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("reading response body: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DecodeBody decodes raw with the charset declared in the Content-Type
// header, falling back to UTF-8 when none is declared or the label is
// unknown. A byte order mark overrides the declared charset.
func DecodeBody(raw []byte, header http.Header) Body {
	enc, name := resolveEncoding(header)

	text, _, err := transform.Bytes(unicode.BOMOverride(enc.NewDecoder()), raw)
	if err != nil {
		text = raw
		name = defaultCharset
	}

	return Body{
		Text:    strings.ToValidUTF8(string(text), "\uFFFD"),
		Length:  len(raw),
		Charset: name,
	}
}

// resolveEncoding picks the encoding for the charset parameter of the
// Content-Type header.
func resolveEncoding(header http.Header) (encoding.Encoding, string) {
	ct := header.Get("Content-Type")
	if ct == "" {
		return unicode.UTF8, defaultCharset
	}

	_, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return unicode.UTF8, defaultCharset
	}

	label := strings.TrimSpace(params["charset"])
	if label == "" {
		return unicode.UTF8, defaultCharset
	}

	enc, name := charset.Lookup(label)
	if enc == nil {
		return unicode.UTF8, defaultCharset
	}
	return enc, name
}

// readBody reads r to the end and decodes it. Only the read can fail.
func readBody(r io.Reader, header http.Header) (Body, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Body{}, &DecodeError{Err: err}
	}
	return DecodeBody(raw, header), nil
}
