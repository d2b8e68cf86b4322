package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kylerisse/checkhttp/pkg/check"
)

func TestNew_Valid(t *testing.T) {
	chk, err := New("http://localhost:8080")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chk.Type() != "http" {
		t.Errorf("expected type 'http', got %q", chk.Type())
	}
	if chk.Name() != "http://localhost:8080" {
		t.Errorf("expected name to default to the URL, got %q", chk.Name())
	}
	if chk.client.Timeout != DefaultTimeout {
		t.Errorf("expected default timeout, got %v", chk.client.Timeout)
	}
	if chk.client.SkipVerify {
		t.Error("expected certificate verification by default")
	}
	if !chk.client.Redirect.Follow {
		t.Error("expected redirects to be followed by default")
	}
}

func TestNew_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:8080", "ftp://example.com", "http://", "http://%zz"} {
		_, err := New(raw)
		var cfgErr *check.ConfigError
		if !errors.As(err, &cfgErr) || cfgErr.Field != "url" {
			t.Errorf("New(%q): expected url ConfigError, got %v", raw, err)
		}
	}
}

func TestNew_WithTimeout(t *testing.T) {
	chk, err := New("http://localhost", WithTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chk.client.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", chk.client.Timeout)
	}

	if _, err := New("http://localhost", WithTimeout(0)); err == nil {
		t.Error("expected error for zero timeout")
	}
}

func TestNew_WithSkipVerify(t *testing.T) {
	chk, err := New("https://localhost", WithSkipVerify(true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !chk.client.SkipVerify {
		t.Error("expected skipVerify true")
	}
}

func TestNew_WithoutBodyConflicts(t *testing.T) {
	_, err := New("http://localhost", WithoutBody(), WithBodyString("ok"))

	var cfgErr *check.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "without_body" {
		t.Errorf("expected without_body ConfigError, got %v", err)
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	tests := map[string]Option{
		"inverted response time": WithResponseTime(check.UpperLevel(3*time.Second, time.Second)),
		"upper certificate":      WithCertificateLevels(check.UpperLevel(30.0, 7.0)),
		"bad regex":              WithBodyRegex("("),
		"bad status":             WithStatusCodes(42),
		"empty name":             WithName(" "),
		"empty method":           WithMethod(""),
		"nil doer":               WithDoer(nil),
		"nil logger":             WithLogger(nil),
		"negative redirects":     WithRedirect(FollowRedirects, -1),
		"bad version":            WithVersion(Version(5)),
	}

	for name, opt := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := New("http://localhost", opt); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func runAgainst(t *testing.T, h http.HandlerFunc, opts ...Option) check.Collection {
	t.Helper()
	srv := httptest.NewServer(h)
	defer srv.Close()

	chk, err := New(srv.URL+"/", opts...)
	require.NoError(t, err)
	return chk.Run(context.Background())
}

func textHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func TestRun_OK(t *testing.T) {
	result := runAgainst(t, textHandler(http.StatusOK, "hello café"))

	assert.Equal(t, check.StateOK, result.State())
	assert.True(t, strings.HasPrefix(result.Summary(), "Version: HTTP/1.1, Status: 200 OK, Response time: "), result.Summary())
	assert.True(t, strings.HasSuffix(result.Summary(), "Page size: 11 B"), result.Summary())
	assert.Contains(t, result.Perfdata(), "response_time=")
	assert.Contains(t, result.Perfdata(), "response_size=11B;;;0")
}

func TestRun_StatusClasses(t *testing.T) {
	tests := map[string]struct {
		status int
		want   check.State
	}{
		"204":   {status: http.StatusNoContent, want: check.StateOK},
		"404":   {status: http.StatusNotFound, want: check.StateWarn},
		"500":   {status: http.StatusInternalServerError, want: check.StateCrit},
		"503":   {status: http.StatusServiceUnavailable, want: check.StateCrit},
		"teapot": {status: http.StatusTeapot, want: check.StateWarn},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			result := runAgainst(t, textHandler(test.status, ""))
			assert.Equal(t, test.want, result.State())
		})
	}
}

func TestRun_ExpectedStatusCodes(t *testing.T) {
	result := runAgainst(t, textHandler(http.StatusOK, ""), WithStatusCodes(201, 202))

	assert.Equal(t, check.StateCrit, result.State())
	assert.Contains(t, result.Summary(), "Status: 200 OK (expected 201, 202)(!!)")

	result = runAgainst(t, textHandler(http.StatusNotFound, ""), WithStatusCodes(404))
	assert.Equal(t, check.StateOK, result.State())
}

func TestRun_BodyMatch(t *testing.T) {
	result := runAgainst(t, textHandler(http.StatusOK, "status: healthy"),
		WithBodyString("healthy"), WithBodyRegex(`^status: \w+$`))
	assert.Equal(t, check.StateOK, result.State())

	result = runAgainst(t, textHandler(http.StatusOK, "status: degraded"), WithBodyString("healthy"))
	assert.Equal(t, check.StateCrit, result.State())
	assert.Contains(t, result.Summary(), `Body: string "healthy" not found(!!)`)

	result = runAgainst(t, textHandler(http.StatusOK, "status: degraded"),
		WithBodyRegex("healthy$"), WithBodyMismatchState(check.StateWarn))
	assert.Equal(t, check.StateWarn, result.State())
	assert.Contains(t, result.Summary(), "Body: regex healthy$ not matched(!)")
}

func TestRun_Latin1Body(t *testing.T) {
	result := runAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte("caf\xe9"))
	}, WithBodyString("café"))

	assert.Equal(t, check.StateOK, result.State())
	assert.Contains(t, result.Summary(), "Page size: 4 B")
}

func TestRun_HeaderMatch(t *testing.T) {
	h := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Version", "2")
	}

	assert.Equal(t, check.StateOK, runAgainst(t, h, WithHeaderMatch("X-Version", "2")).State())
	assert.Equal(t, check.StateOK, runAgainst(t, h, WithHeaderMatch("x-version", "")).State())

	result := runAgainst(t, h, WithHeaderMatch("X-Version", "3"))
	assert.Equal(t, check.StateCrit, result.State())
	assert.Contains(t, result.Summary(), `Header X-Version is "2", expected "3"`)

	result = runAgainst(t, h, WithHeaderMatch("X-Missing", ""))
	assert.Contains(t, result.Summary(), "Header X-Missing missing(!!)")
}

func TestRun_PageSizeLevels(t *testing.T) {
	result := runAgainst(t, textHandler(http.StatusOK, "hello café"), WithPageSize(check.UpperLevel(5, 100)))

	assert.Equal(t, check.StateWarn, result.State())
	assert.Contains(t, result.Summary(), "Page size: 11 B (warn at 5 B)(!)")
	assert.Contains(t, result.Perfdata(), "response_size=11B;5;100;0")

	result = runAgainst(t, textHandler(http.StatusOK, "tiny"), WithPageSize(check.LowerLevel(100, 10)))
	assert.Equal(t, check.StateCrit, result.State())
}

func TestRun_ResponseTimeLevels(t *testing.T) {
	result := runAgainst(t, textHandler(http.StatusOK, ""),
		WithResponseTime(check.UpperLevel(time.Duration(0), time.Hour)))

	assert.Equal(t, check.StateWarn, result.State())
	assert.Contains(t, result.Summary(), "(warn at 0s)(!)")
	assert.Regexp(t, `response_time=[0-9.e-]+s;0;3600;0`, result.Perfdata())
}

func TestRun_WithoutBody(t *testing.T) {
	result := runAgainst(t, textHandler(http.StatusOK, "not fetched"), WithoutBody())

	assert.Equal(t, check.StateOK, result.State())
	assert.NotContains(t, result.Summary(), "Page size")
	assert.NotContains(t, result.Perfdata(), "response_size")
}

func TestRun_RequestSettings(t *testing.T) {
	var got *http.Request
	var gotBody string
	h := func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
	}

	result := runAgainst(t, h,
		WithMethod("put"),
		WithHeader("X-One", "1"),
		WithHeader("X-One", "2"),
		WithBody(`{"ping":true}`),
		WithContentType("application/json"),
		WithBasicAuth("admin", "secret"),
	)
	require.Equal(t, check.StateOK, result.State())

	assert.Equal(t, http.MethodPut, got.Method)
	assert.Equal(t, []string{"1", "2"}, got.Header.Values("X-One"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, `{"ping":true}`, gotBody)
	user, pass, ok := got.BasicAuth()
	assert.True(t, ok)
	assert.Equal(t, "admin", user)
	assert.Equal(t, "secret", pass)
}

func TestRun_Redirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/target", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/target", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "arrived")
	})

	result := runAgainst(t, mux.ServeHTTP)
	assert.Equal(t, check.StateOK, result.State())
	assert.Contains(t, result.Summary(), "Status: 200 OK")

	result = runAgainst(t, mux.ServeHTTP, WithRedirect(RedirectPolicy{State: check.StateWarn}, 0))
	assert.Equal(t, check.StateWarn, result.State())
	assert.Contains(t, result.Summary(), "Status: 301 Moved Permanently, Redirected to /target(!)")
}

func TestRun_Certificate(t *testing.T) {
	srv := httptest.NewTLSServer(textHandler(http.StatusOK, "secure"))
	defer srv.Close()
	notAfter := srv.Certificate().NotAfter

	tests := map[string]struct {
		daysLeft float64
		want     check.State
	}{
		"plenty": {daysLeft: 90, want: check.StateOK},
		"soon":   {daysLeft: 10, want: check.StateWarn},
		"urgent": {daysLeft: 3, want: check.StateCrit},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			chk, err := New(srv.URL, WithSkipVerify(true), WithCertificateLevels(check.LowerLevel(30.0, 7.0)))
			require.NoError(t, err)
			chk.now = func() time.Time {
				return notAfter.Add(-time.Duration(test.daysLeft*24) * time.Hour)
			}

			result := chk.Run(context.Background())

			assert.Equal(t, test.want, result.State())
			assert.Contains(t, result.Summary(), "Certificate expires in")
			assert.Contains(t, result.Perfdata(), "certificate_remaining_validity=")
		})
	}
}

func TestRun_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(textHandler(http.StatusOK, ""))
	url := srv.URL
	srv.Close()

	chk, err := New(url)
	require.NoError(t, err)
	result := chk.Run(context.Background())

	require.Equal(t, 1, result.Len())
	assert.Equal(t, check.StateCrit, result.State())
	assert.True(t, strings.HasPrefix(result.Summary(), "Request failed: "), result.Summary())
}

func TestRun_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	chk, err := New(srv.URL, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)
	result := chk.Run(context.Background())

	assert.Equal(t, check.StateCrit, result.State())
	assert.Equal(t, "Request timed out after 50ms(!!)", result.Summary())
}

func TestRun_BodyReadError(t *testing.T) {
	doer := doerFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			Status:     "200 OK",
			StatusCode: http.StatusOK,
			Proto:      "HTTP/1.1",
			Header:     http.Header{},
			Body:       io.NopCloser(iotest.ErrReader(errors.New("connection reset"))),
			Request:    req,
		}, nil
	})

	chk, err := New("http://example.com", WithDoer(doer), WithPageSize(check.UpperLevel(1, 2)))
	require.NoError(t, err)
	result := chk.Run(context.Background())

	assert.Equal(t, check.StateCrit, result.State())
	assert.Contains(t, result.Summary(), "Error fetching the response body")
	assert.NotContains(t, result.Summary(), "Page size")
}

func TestCheck_ImplementsInterface(t *testing.T) {
	var _ check.Check = (*Check)(nil)
}
