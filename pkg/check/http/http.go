// Package http implements the HTTP(S) check: it sends one configured
// request, snapshots the response and classifies version, status, timing,
// size, content, headers and certificate lifetime.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kylerisse/checkhttp/pkg/check"
	"github.com/kylerisse/checkhttp/pkg/logging"
	"github.com/kylerisse/checkhttp/pkg/resolve"
)

const (
	// TypeName is the registered name for this check type.
	TypeName = "http"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 10 * time.Second
)

// Check implements check.Check for a single URL.
type Check struct {
	name   string
	req    RequestConfig
	client ClientConfig
	doer   Doer

	responseTime *check.Level[time.Duration]
	pageSize     *check.Level[int]
	statusCodes  []int
	bodyString   string
	bodyRegex    *regexp.Regexp
	bodyState    check.State
	headerMatch  *Header
	certDays     *check.Level[float64]

	logger *logrus.Logger
	now    func() time.Time
}

// Option is a functional option for configuring an HTTP Check.
type Option func(*Check) error

// WithName sets the name shown in logs and output. Defaults to the URL.
func WithName(name string) Option {
	return func(c *Check) error {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("name must not be empty")
		}
		c.name = name
		return nil
	}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Check) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", d)
		}
		c.client.Timeout = d
		return nil
	}
}

// WithSkipVerify sets whether to skip TLS certificate verification.
func WithSkipVerify(skip bool) Option {
	return func(c *Check) error {
		c.client.SkipVerify = skip
		return nil
	}
}

// WithVersion pins the HTTP protocol version.
func WithVersion(v Version) Option {
	return func(c *Check) error {
		if v < VersionAuto || v > VersionHTTP2 {
			return fmt.Errorf("unsupported HTTP version %d", v)
		}
		c.req.Version = v
		c.client.Version = v
		return nil
	}
}

// WithMethod sets the request method.
func WithMethod(method string) Option {
	return func(c *Check) error {
		method = strings.ToUpper(strings.TrimSpace(method))
		if method == "" {
			return fmt.Errorf("method must not be empty")
		}
		c.req.Method = method
		return nil
	}
}

// WithHeader adds a request header. It may be given more than once.
func WithHeader(name, value string) Option {
	return func(c *Check) error {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("header name must not be empty")
		}
		c.req.Headers = append(c.req.Headers, Header{Name: name, Value: value})
		return nil
	}
}

// WithBody sets the request body.
func WithBody(body string) Option {
	return func(c *Check) error {
		c.req.Body = body
		return nil
	}
}

// WithContentType sets the Content-Type request header.
func WithContentType(ct string) Option {
	return func(c *Check) error {
		c.req.ContentType = ct
		return nil
	}
}

// WithBasicAuth sets basic authentication credentials.
func WithBasicAuth(user, password string) Option {
	return func(c *Check) error {
		if user == "" {
			return fmt.Errorf("basic auth user must not be empty")
		}
		c.req.BasicAuth = &BasicAuth{Username: user, Password: password}
		return nil
	}
}

// WithTokenAuth sends value in the named header, e.g. "Authorization".
func WithTokenAuth(header, value string) Option {
	return func(c *Check) error {
		if strings.TrimSpace(header) == "" {
			return fmt.Errorf("token header must not be empty")
		}
		c.req.TokenAuth = &TokenAuth{Header: header, Value: value}
		return nil
	}
}

// WithoutBody skips downloading the response body.
func WithoutBody() Option {
	return func(c *Check) error {
		c.req.WithoutBody = true
		return nil
	}
}

// WithResponseTime sets upper levels on the response time.
func WithResponseTime(level *check.Level[time.Duration]) Option {
	return func(c *Check) error {
		if err := validateLevel("response_time", level); err != nil {
			return err
		}
		c.responseTime = level
		return nil
	}
}

// WithPageSize sets levels on the number of body bytes received.
func WithPageSize(level *check.Level[int]) Option {
	return func(c *Check) error {
		if err := validateLevel("page_size", level); err != nil {
			return err
		}
		c.pageSize = level
		return nil
	}
}

// WithStatusCodes sets the accepted status codes. Any other code is
// critical.
func WithStatusCodes(codes ...int) Option {
	return func(c *Check) error {
		for _, code := range codes {
			if code < 100 || code > 999 {
				return &check.ConfigError{Field: "status_codes", Err: fmt.Errorf("invalid status code %d", code)}
			}
		}
		c.statusCodes = append([]int(nil), codes...)
		return nil
	}
}

// WithBodyString requires s to appear in the decoded body.
func WithBodyString(s string) Option {
	return func(c *Check) error {
		if s == "" {
			return &check.ConfigError{Field: "body_string", Err: errors.New("must not be empty")}
		}
		c.bodyString = s
		return nil
	}
}

// WithBodyRegex requires expr to match the decoded body.
func WithBodyRegex(expr string) Option {
	return func(c *Check) error {
		re, err := regexp.Compile(expr)
		if err != nil {
			return &check.ConfigError{Field: "body_regex", Err: err}
		}
		c.bodyRegex = re
		return nil
	}
}

// WithBodyMismatchState sets the state reported when the body does not
// match. Defaults to CRITICAL.
func WithBodyMismatchState(s check.State) Option {
	return func(c *Check) error {
		c.bodyState = s
		return nil
	}
}

// WithHeaderMatch requires a response header name with value. An empty
// value only requires the header to be present.
func WithHeaderMatch(name, value string) Option {
	return func(c *Check) error {
		if strings.TrimSpace(name) == "" {
			return &check.ConfigError{Field: "header_match", Err: errors.New("header name must not be empty")}
		}
		c.headerMatch = &Header{Name: name, Value: value}
		return nil
	}
}

// WithCertificateLevels sets lower levels on the days left until the
// server certificate expires.
func WithCertificateLevels(level *check.Level[float64]) Option {
	return func(c *Check) error {
		if level != nil && level.Direction != check.Lower {
			return &check.ConfigError{Field: "certificate", Err: errors.New("levels must be lower levels")}
		}
		if err := validateLevel("certificate", level); err != nil {
			return err
		}
		c.certDays = level
		return nil
	}
}

// WithRedirect sets the redirect policy and the redirect limit used when
// following. A limit of zero keeps DefaultMaxRedirects.
func WithRedirect(policy RedirectPolicy, limit int) Option {
	return func(c *Check) error {
		if limit < 0 {
			return fmt.Errorf("max redirects must not be negative, got %d", limit)
		}
		c.client.Redirect = policy
		c.client.MaxRedirects = limit
		return nil
	}
}

// WithResolver resolves the host through r instead of the system resolver.
func WithResolver(r *resolve.Resolver) Option {
	return func(c *Check) error {
		c.client.Resolver = r
		return nil
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *logrus.Logger) Option {
	return func(c *Check) error {
		if l == nil {
			return fmt.Errorf("logger must not be nil")
		}
		c.logger = l
		return nil
	}
}

// WithDoer replaces the HTTP client built from the transport options.
func WithDoer(d Doer) Option {
	return func(c *Check) error {
		if d == nil {
			return fmt.Errorf("doer must not be nil")
		}
		c.doer = d
		return nil
	}
}

func validateLevel[T check.Measurable](field string, level *check.Level[T]) error {
	if level == nil {
		return nil
	}
	if err := level.Validate(); err != nil {
		return &check.ConfigError{Field: field, Err: err}
	}
	return nil
}

// New creates an HTTP Check for rawURL.
func New(rawURL string, opts ...Option) (*Check, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}

	c := &Check{
		name: u.String(),
		req:  RequestConfig{URL: u, Method: "GET"},
		client: ClientConfig{
			Timeout:  DefaultTimeout,
			Redirect: FollowRedirects,
		},
		bodyState: check.StateCrit,
		logger:    logging.Discard(),
		now:       time.Now,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("http: %w", err)
		}
	}

	if c.req.WithoutBody && (c.pageSize != nil || c.bodyString != "" || c.bodyRegex != nil) {
		return nil, fmt.Errorf("http: %w", &check.ConfigError{
			Field: "without_body",
			Err:   errors.New("page size and body checks need the response body"),
		})
	}

	if c.req.TokenAuth != nil && c.req.BasicAuth != nil {
		c.logger.WithField("check", c.name).Debugf("Token auth header %s set, ignoring basic auth", c.req.TokenAuth.Header)
	}

	if c.doer == nil {
		client, err := NewClient(c.client)
		if err != nil {
			return nil, fmt.Errorf("http: %w", err)
		}
		c.doer = client
	}

	return c, nil
}

func parseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, &check.ConfigError{Field: "url", Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &check.ConfigError{Field: "url", Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return nil, &check.ConfigError{Field: "url", Err: errors.New("missing host")}
	}
	return u, nil
}

// Type returns the check type name.
func (c *Check) Type() string {
	return TypeName
}

// Name returns the configured name or the URL.
func (c *Check) Name() string {
	return c.name
}

// Run sends the request once and evaluates the response. A request that
// does not produce a response yields a single CRITICAL result.
func (c *Check) Run(ctx context.Context) check.Collection {
	log := c.logger.WithFields(logrus.Fields{"check": c.name, "url": c.req.URL.String()})
	log.Debugf("Sending %s request (version %v)", c.req.Method, c.req.Version)

	start := time.Now()
	resp, err := Send(ctx, c.doer, c.req)
	elapsed := time.Since(start)

	if err != nil {
		log.Debugf("Request failed after %v: %v", elapsed, err)
		return check.NewCollection(c.requestFailure(err))
	}

	log.Debugf("Received %s %s in %v", resp.Proto, resp.Status, elapsed)
	if resp.Body != nil && resp.Body.Err == nil {
		log.Debugf("Decoded %d body bytes as %s", resp.Body.Body.Length, resp.Body.Body.Charset)
	}

	result := c.evaluate(resp, elapsed)
	log.Debugf("Evaluated %d results, state %v", result.Len(), result.State())
	return result
}

func (c *Check) requestFailure(err error) check.CheckResult[float64] {
	var te *TransportError
	if !errors.As(err, &te) {
		return check.Notice[float64](check.StateUnknown, fmt.Sprintf("Could not build request: %v", err))
	}
	if te.Timeout() {
		return check.Notice[float64](check.StateCrit, fmt.Sprintf("Request timed out after %v", c.client.Timeout))
	}
	return check.Notice[float64](check.StateCrit, fmt.Sprintf("Request failed: %v", te.Err))
}
