package http

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kylerisse/checkhttp/pkg/check"
	"github.com/kylerisse/checkhttp/pkg/resolve"
)

func newH2Server(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewUnstartedServer(h)
	srv.EnableHTTP2 = true
	srv.StartTLS()
	t.Cleanup(srv.Close)
	return srv
}

func protoHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Proto))
	})
}

func TestNewClient_VersionPinning(t *testing.T) {
	srv := newH2Server(t, protoHandler())

	tests := map[string]struct {
		version   Version
		wantMajor int
	}{
		"auto negotiates h2": {version: VersionAuto, wantMajor: 2},
		"pinned 1.1":         {version: VersionHTTP11, wantMajor: 1},
		"pinned 2":           {version: VersionHTTP2, wantMajor: 2},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			client, err := NewClient(ClientConfig{
				Timeout:    5 * time.Second,
				SkipVerify: true,
				Version:    test.version,
				Redirect:   FollowRedirects,
			})
			require.NoError(t, err)

			resp, err := client.Get(srv.URL)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, test.wantMajor, resp.ProtoMajor)
			assert.NotNil(t, resp.TLS)
		})
	}
}

func TestNewClient_VerifiesCertificatesByDefault(t *testing.T) {
	srv := newH2Server(t, protoHandler())

	client, err := NewClient(ClientConfig{Timeout: 5 * time.Second, Redirect: FollowRedirects})
	require.NoError(t, err)

	_, err = client.Get(srv.URL)
	assert.Error(t, err)
}

func TestNewClient_UnsupportedVersion(t *testing.T) {
	_, err := NewClient(ClientConfig{Version: Version(7)})
	assert.Error(t, err)
}

func redirectServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/target", http.StatusFound)
	})
	mux.HandleFunc("/target", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("arrived"))
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClient_Redirects(t *testing.T) {
	srv := redirectServer(t)

	follow, err := NewClient(ClientConfig{Redirect: FollowRedirects})
	require.NoError(t, err)
	resp, err := follow.Get(srv.URL + "/start")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	stay, err := NewClient(ClientConfig{Redirect: RedirectPolicy{State: check.StateWarn}})
	require.NoError(t, err)
	resp, err = stay.Get(srv.URL + "/start")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/target", resp.Header.Get("Location"))
}

func TestNewClient_MaxRedirects(t *testing.T) {
	srv := redirectServer(t)

	client, err := NewClient(ClientConfig{Redirect: FollowRedirects, MaxRedirects: 3})
	require.NoError(t, err)

	_, err = client.Get(srv.URL + "/loop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped after 3 redirects")
}

func TestParseRedirectPolicy(t *testing.T) {
	tests := map[string]struct {
		input    string
		want     RedirectPolicy
		wantFail bool
	}{
		"empty":    {input: "", want: FollowRedirects},
		"follow":   {input: "follow", want: FollowRedirects},
		"ok":       {input: "ok", want: RedirectPolicy{State: check.StateOK}},
		"warning":  {input: "warning", want: RedirectPolicy{State: check.StateWarn}},
		"critical": {input: "CRITICAL", want: RedirectPolicy{State: check.StateCrit}},
		"unknown":  {input: "unknown", want: RedirectPolicy{State: check.StateUnknown}},
		"sticky":   {input: "sticky", wantFail: true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			p, err := ParseRedirectPolicy(test.input)
			if test.wantFail {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.want, p)
		})
	}
}

// startDNSServer answers every A query with 127.0.0.1.
func startDNSServer(t *testing.T) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &dns.Server{PacketConn: pc, Handler: dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		q := r.Question[0]
		if q.Qtype == dns.TypeA {
			m.Answer = append(m.Answer, &dns.A{
				Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
				A:   net.ParseIP("127.0.0.1"),
			})
		}
		_ = w.WriteMsg(m)
	})}
	go func() { _ = srv.ActivateAndServe() }()
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

func TestNewClient_Resolver(t *testing.T) {
	srv := httptest.NewServer(protoHandler())
	defer srv.Close()
	_, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)

	r, err := resolve.New(startDNSServer(t), resolve.WithFamily(resolve.FamilyIPv4))
	require.NoError(t, err)

	client, err := NewClient(ClientConfig{
		Timeout:  5 * time.Second,
		Redirect: FollowRedirects,
		Resolver: r,
	})
	require.NoError(t, err)

	resp, err := client.Get("http://service.example.test:" + port + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
