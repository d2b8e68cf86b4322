package http

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contentType(ct string) http.Header {
	h := http.Header{}
	if ct != "" {
		h.Set("Content-Type", ct)
	}
	return h
}

func TestDecodeBody(t *testing.T) {
	tests := map[string]struct {
		raw         string
		contentType string
		wantText    string
		wantCharset string
	}{
		"utf-8 declared": {
			raw:         "caf\xc3\xa9",
			contentType: "text/plain; charset=utf-8",
			wantText:    "café",
			wantCharset: "utf-8",
		},
		"no content type": {
			raw:         "caf\xc3\xa9",
			wantText:    "café",
			wantCharset: "utf-8",
		},
		"no charset parameter": {
			raw:         "caf\xc3\xa9",
			contentType: "text/html",
			wantText:    "café",
			wantCharset: "utf-8",
		},
		"latin-1": {
			raw:         "caf\xe9",
			contentType: "text/html; charset=ISO-8859-1",
			wantText:    "café",
			wantCharset: "windows-1252",
		},
		"quoted charset": {
			raw:         "caf\xe9",
			contentType: `text/html; charset="latin1"`,
			wantText:    "café",
			wantCharset: "windows-1252",
		},
		"unknown charset": {
			raw:         "caf\xc3\xa9",
			contentType: "text/html; charset=klingon",
			wantText:    "café",
			wantCharset: "utf-8",
		},
		"malformed content type": {
			raw:         "caf\xc3\xa9",
			contentType: "text/html; charset",
			wantText:    "café",
			wantCharset: "utf-8",
		},
		"invalid utf-8 is replaced": {
			raw:         "a\xffb",
			contentType: "text/plain; charset=utf-8",
			wantText:    "a\uFFFDb",
			wantCharset: "utf-8",
		},
		"utf-8 BOM overrides declared charset": {
			raw:         "\xef\xbb\xbfcaf\xc3\xa9",
			contentType: "text/plain; charset=iso-8859-1",
			wantText:    "café",
			wantCharset: "windows-1252",
		},
		"utf-16 BOM": {
			raw:         "\xff\xfeh\x00i\x00",
			wantText:    "hi",
			wantCharset: "utf-8",
		},
		"empty": {
			raw:         "",
			contentType: "text/plain",
			wantText:    "",
			wantCharset: "utf-8",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			body := DecodeBody([]byte(test.raw), contentType(test.contentType))

			assert.Equal(t, test.wantText, body.Text)
			assert.Equal(t, len(test.raw), body.Length)
			assert.Equal(t, test.wantCharset, body.Charset)
		})
	}
}

func TestDecodeBody_LengthIsRawBytes(t *testing.T) {
	raw := []byte(strings.Repeat("\xe9", 1000))

	body := DecodeBody(raw, contentType("text/plain; charset=latin1"))

	assert.Equal(t, 1000, body.Length)
	assert.Equal(t, 2000, len(body.Text))
}

func TestReadBody(t *testing.T) {
	body, err := readBody(strings.NewReader("caf\xc3\xa9"), contentType("text/plain"))
	require.NoError(t, err)

	assert.Equal(t, "café", body.Text)
	assert.Equal(t, 5, body.Length)
}

func TestReadBody_ReadError(t *testing.T) {
	readErr := errors.New("connection reset")

	_, err := readBody(iotest.ErrReader(readErr), contentType("text/plain"))

	var decErr *DecodeError
	require.True(t, errors.As(err, &decErr), "got %v", err)
	assert.ErrorIs(t, err, readErr)
	assert.Contains(t, err.Error(), "connection reset")
}
