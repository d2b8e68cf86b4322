// Package resolve looks up host addresses against one specific DNS server
// instead of the system resolver, and provides a dial function that uses it.
package resolve

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"

	"github.com/kylerisse/checkhttp/pkg/logging"
)

// DefaultTimeout is the default DNS query timeout.
const DefaultTimeout = 3 * time.Second

// Resolver resolves A and AAAA records using a single DNS server.
// It is safe for concurrent use.
type Resolver struct {
	server  string // host:port of the DNS server
	timeout time.Duration
	family  Family
	client  *dns.Client
	logger  *logrus.Logger
}

// Family restricts which address families are queried.
type Family int

const (
	FamilyAny Family = iota
	FamilyIPv4
	FamilyIPv6
)

// Option is a functional option for configuring a Resolver.
type Option func(*Resolver) error

// WithTimeout sets the DNS query timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", d)
		}
		r.timeout = d
		return nil
	}
}

// WithFamily restricts lookups to one address family.
func WithFamily(f Family) Option {
	return func(r *Resolver) error {
		if f < FamilyAny || f > FamilyIPv6 {
			return fmt.Errorf("unknown address family %d", f)
		}
		r.family = f
		return nil
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *logrus.Logger) Option {
	return func(r *Resolver) error {
		if l == nil {
			return fmt.Errorf("logger must not be nil")
		}
		r.logger = l
		return nil
	}
}

// New creates a Resolver querying server. A server without a port uses 53.
func New(server string, opts ...Option) (*Resolver, error) {
	if server == "" {
		return nil, fmt.Errorf("resolve: server must not be empty")
	}
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(strings.Trim(server, "[]"), "53")
	}

	r := &Resolver{
		server:  server,
		timeout: DefaultTimeout,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("resolve: %w", err)
		}
	}

	r.client = &dns.Client{Timeout: r.timeout}
	return r, nil
}

// Server returns the host:port of the DNS server in use.
func (r *Resolver) Server() string {
	return r.server
}

// LookupHost returns the addresses of host, IPv4 first. IP literals are
// returned unchanged.
func (r *Resolver) LookupHost(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(strings.Trim(host, "[]")); ip != nil {
		return []net.IP{ip}, nil
	}

	var qtypes []uint16
	switch r.family {
	case FamilyIPv4:
		qtypes = []uint16{dns.TypeA}
	case FamilyIPv6:
		qtypes = []uint16{dns.TypeAAAA}
	default:
		qtypes = []uint16{dns.TypeA, dns.TypeAAAA}
	}

	var ips []net.IP
	var lastErr error
	for _, qtype := range qtypes {
		found, err := r.query(ctx, host, qtype)
		if err != nil {
			lastErr = err
			continue
		}
		ips = append(ips, found...)
	}

	if len(ips) == 0 {
		if lastErr == nil {
			lastErr = fmt.Errorf("no addresses found")
		}
		return nil, fmt.Errorf("resolve %s via %s: %w", host, r.server, lastErr)
	}
	return ips, nil
}

func (r *Resolver) query(ctx context.Context, host string, qtype uint16) ([]net.IP, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), qtype)
	msg.RecursionDesired = true

	resp, rtt, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dns.TypeToString[qtype], err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("%s: rcode %s", dns.TypeToString[qtype], dns.RcodeToString[resp.Rcode])
	}

	var ips []net.IP
	for _, rr := range resp.Answer {
		switch v := rr.(type) {
		case *dns.A:
			ips = append(ips, v.A)
		case *dns.AAAA:
			ips = append(ips, v.AAAA)
		}
	}
	r.logger.Debugf("Resolved %s %s via %s in %v: %v", dns.TypeToString[qtype], host, r.server, rtt, ips)
	return ips, nil
}

// DialContext returns a dial function that resolves the host part of addr
// with r and dials the addresses in order until one connects.
func (r *Resolver) DialContext(dialer *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		ips, err := r.LookupHost(ctx, host)
		if err != nil {
			return nil, err
		}

		var lastErr error
		for _, ip := range ips {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
		return nil, lastErr
	}
}
