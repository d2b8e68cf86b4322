package http

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Version pins the HTTP protocol version used for a request.
type Version int

const (
	// VersionAuto negotiates the version (HTTP/2 over TLS when offered).
	VersionAuto Version = iota
	VersionHTTP11
	VersionHTTP2
)

func (v Version) String() string {
	switch v {
	case VersionHTTP11:
		return "HTTP/1.1"
	case VersionHTTP2:
		return "HTTP/2.0"
	}
	return "auto"
}

// ParseVersion accepts "auto", "1.1", "http/1.1", "2", "http/2" and the like.
func ParseVersion(s string) (Version, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return VersionAuto, nil
	case "1.1", "http/1.1", "http11":
		return VersionHTTP11, nil
	case "2", "2.0", "http/2", "http/2.0", "http2":
		return VersionHTTP2, nil
	}
	return VersionAuto, fmt.Errorf("unsupported HTTP version %q", s)
}

// Header is a single request header. Headers are sent in order; a name may
// repeat.
type Header struct {
	Name  string
	Value string
}

// BasicAuth holds credentials for HTTP basic authentication.
type BasicAuth struct {
	Username string
	Password string
}

// TokenAuth is a pre-built authorization header, e.g.
// {"Authorization", "Bearer abc"} or {"X-API-Key", "abc"}.
type TokenAuth struct {
	Header string
	Value  string
}

// RequestConfig describes the request to send.
type RequestConfig struct {
	URL     *url.URL
	Method  string // empty means GET
	Version Version
	Headers []Header

	// Body is sent as the request body when non-empty.
	Body string

	// ContentType overrides any user supplied Content-Type header.
	ContentType string

	// BasicAuth is applied when it has a username and TokenAuth is unset.
	BasicAuth *BasicAuth

	// TokenAuth overrides any user supplied header of the same name.
	TokenAuth *TokenAuth

	// WithoutBody skips reading the response body.
	WithoutBody bool
}

// BodyResult is the outcome of reading and decoding the response body.
// Err is a *DecodeError when the body could not be read.
type BodyResult struct {
	Body Body
	Err  error
}

// ProcessedResponse is an immutable snapshot of a completed response.
type ProcessedResponse struct {
	Proto      string // e.g. "HTTP/1.1"
	ProtoMajor int
	ProtoMinor int
	StatusCode int
	Status     string // e.g. "200 OK"
	Header     http.Header

	// Body is nil when the request was configured WithoutBody.
	Body *BodyResult

	// FinalURL is the URL of the last request after following redirects.
	FinalURL *url.URL

	// TLS is the connection state of the final response, nil for plain HTTP.
	TLS *tls.ConnectionState
}

// Doer sends a single HTTP request. *http.Client implements it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TransportError wraps a failure to connect, send or receive the response
// headers.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the transport gave up waiting.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}

// Send issues the request exactly once. Response metadata is captured
// before the body is consumed. A failure to read the body does not fail
// Send; it is reported in ProcessedResponse.Body.Err.
func Send(ctx context.Context, doer Doer, cfg RequestConfig) (*ProcessedResponse, error) {
	req, err := NewRequest(ctx, cfg)
	if err != nil {
		return nil, err
	}

	resp, err := doer.Do(req)
	if err != nil {
		return nil, &TransportError{URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	pr := snapshot(resp)
	if !cfg.WithoutBody {
		body, err := readBody(resp.Body, pr.Header)
		pr.Body = &BodyResult{Body: body, Err: err}
	}
	return pr, nil
}

// NewRequest builds the outbound request. User headers are added first,
// then the token auth header, then the content type; later ones replace
// earlier headers of the same name.
func NewRequest(ctx context.Context, cfg RequestConfig) (*http.Request, error) {
	if cfg.URL == nil {
		return nil, fmt.Errorf("http: request URL is not set")
	}

	method := cfg.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if cfg.Body != "" {
		body = strings.NewReader(cfg.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, cfg.URL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("http: building request: %w", err)
	}

	for _, h := range cfg.Headers {
		if strings.EqualFold(h.Name, "Host") {
			req.Host = h.Value
			continue
		}
		req.Header.Add(h.Name, h.Value)
	}
	if cfg.TokenAuth != nil {
		req.Header.Set(cfg.TokenAuth.Header, cfg.TokenAuth.Value)
	}
	if cfg.ContentType != "" {
		req.Header.Set("Content-Type", cfg.ContentType)
	}
	if cfg.BasicAuth != nil && cfg.BasicAuth.Username != "" && cfg.TokenAuth == nil {
		req.SetBasicAuth(cfg.BasicAuth.Username, cfg.BasicAuth.Password)
	}

	switch cfg.Version {
	case VersionHTTP11:
		req.Proto, req.ProtoMajor, req.ProtoMinor = "HTTP/1.1", 1, 1
	case VersionHTTP2:
		req.Proto, req.ProtoMajor, req.ProtoMinor = "HTTP/2.0", 2, 0
	}

	return req, nil
}

// snapshot copies everything needed from resp except the body.
func snapshot(resp *http.Response) *ProcessedResponse {
	pr := &ProcessedResponse{
		Proto:      resp.Proto,
		ProtoMajor: resp.ProtoMajor,
		ProtoMinor: resp.ProtoMinor,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header.Clone(),
		TLS:        resp.TLS,
	}
	if pr.Header == nil {
		pr.Header = http.Header{}
	}
	if resp.Request != nil && resp.Request.URL != nil {
		u := *resp.Request.URL
		pr.FinalURL = &u
	}
	return pr
}
