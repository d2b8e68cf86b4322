package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"github.com/kylerisse/checkhttp/pkg/check"
	"github.com/kylerisse/checkhttp/pkg/resolve"
)

// DefaultMaxRedirects is the redirect limit when following redirects.
const DefaultMaxRedirects = 10

// RedirectPolicy decides what happens when the server answers with a
// redirect. When Follow is false the redirect response itself is evaluated
// and reported with State.
type RedirectPolicy struct {
	Follow bool
	State  check.State
}

// FollowRedirects is the default policy.
var FollowRedirects = RedirectPolicy{Follow: true}

// ParseRedirectPolicy accepts "follow" or a state name ("ok", "warning",
// "critical", "unknown").
func ParseRedirectPolicy(s string) (RedirectPolicy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "follow" {
		return FollowRedirects, nil
	}
	state, err := check.ParseState(s)
	if err != nil {
		return RedirectPolicy{}, fmt.Errorf("unknown redirect policy %q", s)
	}
	return RedirectPolicy{State: state}, nil
}

func (p RedirectPolicy) String() string {
	if p.Follow {
		return "follow"
	}
	return strings.ToLower(p.State.String())
}

// ClientConfig is the transport configuration of an HTTP check.
type ClientConfig struct {
	// Timeout bounds the whole exchange including reading the body.
	// Zero means no timeout.
	Timeout time.Duration

	SkipVerify bool

	// Version selects the transport. VersionHTTP2 speaks HTTP/2 over TLS
	// and prior-knowledge h2c over plain HTTP; VersionHTTP11 never
	// negotiates HTTP/2.
	Version Version

	Redirect     RedirectPolicy
	MaxRedirects int

	// Resolver, when set, replaces the system resolver for dialing.
	Resolver *resolve.Resolver
}

// NewClient returns an *http.Client for cfg.
func NewClient(cfg ClientConfig) (*http.Client, error) {
	var transport http.RoundTripper
	switch cfg.Version {
	case VersionHTTP2:
		transport = newHTTP2Transport(cfg)
	case VersionAuto, VersionHTTP11:
		transport = newHTTPTransport(cfg)
	default:
		return nil, fmt.Errorf("unsupported HTTP version %v", cfg.Version)
	}

	return &http.Client{
		Timeout:       cfg.Timeout,
		Transport:     transport,
		CheckRedirect: redirectFunc(cfg.Redirect, cfg.MaxRedirects),
	}, nil
}

func newHTTPTransport(cfg ClientConfig) *http.Transport {
	t := &http.Transport{
		DialContext:         dialFunc(cfg),
		TLSClientConfig:     tlsConfig(cfg),
		TLSHandshakeTimeout: cfg.Timeout,
	}
	if cfg.Version == VersionHTTP11 {
		// A non-nil empty map disables HTTP/2 negotiation.
		t.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
	} else {
		t.ForceAttemptHTTP2 = true
	}
	return t
}

func newHTTP2Transport(cfg ClientConfig) *http2Transport {
	dial := dialFunc(cfg)
	return &http2Transport{
		t2: &http2.Transport{
			TLSClientConfig: tlsConfig(cfg),
			DialTLSContext: func(ctx context.Context, network, addr string, tlsCfg *tls.Config) (net.Conn, error) {
				conn, err := dial(ctx, network, addr)
				if err != nil {
					return nil, err
				}
				tlsConn := tls.Client(conn, tlsCfg)
				if err := tlsConn.HandshakeContext(ctx); err != nil {
					conn.Close()
					return nil, err
				}
				return tlsConn, nil
			},
		},
		t2c: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				return dial(ctx, network, addr)
			},
		},
	}
}

// http2Transport routes https to TLS HTTP/2 and http to h2c.
type http2Transport struct {
	t2  *http2.Transport
	t2c *http2.Transport
}

func (t *http2Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme == "https" {
		return t.t2.RoundTrip(req)
	}
	return t.t2c.RoundTrip(req)
}

func (t *http2Transport) CloseIdleConnections() {
	t.t2.CloseIdleConnections()
	t.t2c.CloseIdleConnections()
}

func tlsConfig(cfg ClientConfig) *tls.Config {
	return &tls.Config{InsecureSkipVerify: cfg.SkipVerify}
}

func dialFunc(cfg ClientConfig) func(ctx context.Context, network, addr string) (net.Conn, error) {
	d := &net.Dialer{Timeout: cfg.Timeout}
	if cfg.Resolver != nil {
		return cfg.Resolver.DialContext(d)
	}
	return d.DialContext
}

func redirectFunc(policy RedirectPolicy, limit int) func(req *http.Request, via []*http.Request) error {
	if !policy.Follow {
		return func(_ *http.Request, _ []*http.Request) error { return http.ErrUseLastResponse }
	}
	if limit <= 0 {
		limit = DefaultMaxRedirects
	}
	return func(_ *http.Request, via []*http.Request) error {
		if len(via) >= limit {
			return fmt.Errorf("stopped after %d redirects", limit)
		}
		return nil
	}
}
