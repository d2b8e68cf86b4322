package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kylerisse/checkhttp/pkg/config"
)

type flags struct {
	configPath string

	url         string
	name        string
	timeout     time.Duration
	method      string
	headers     []string
	body        string
	contentType string
	user        string
	tokenHeader string
	token       string
	withoutBody bool
	version     string
	insecure    bool
	dnsServer   string

	responseTimeWarn time.Duration
	responseTimeCrit time.Duration
	pageSizeWarn     int
	pageSizeCrit     int
	pageSizeLower    bool
	certWarn         float64
	certCrit         float64
	statusCodes      []int
	bodyString       string
	bodyRegex        string
	bodyState        string
	headerMatch      string
	onRedirect       string
	maxRedirects     int

	logLevel    string
	logFormat   string
	logFile     string
	concurrency int
}

func (f *flags) register(cmd *cobra.Command) {
	fl := cmd.Flags()

	fl.StringVarP(&f.configPath, "config", "c", "", "YAML file with targets to check")

	fl.StringVarP(&f.url, "url", "u", "", "URL to check")
	fl.StringVar(&f.name, "name", "", "Name of the check in logs")
	fl.DurationVarP(&f.timeout, "timeout", "t", 10*time.Second, "Request timeout")
	fl.StringVarP(&f.method, "method", "X", "GET", "Request method")
	fl.StringArrayVarP(&f.headers, "header", "H", nil, `Request header "Name: value" (can be used multiple times)`)
	fl.StringVarP(&f.body, "data", "d", "", "Request body")
	fl.StringVar(&f.contentType, "content-type", "", "Content-Type of the request body")
	fl.StringVar(&f.user, "user", "", `Basic auth credentials "user:password"`)
	fl.StringVar(&f.tokenHeader, "token-header", "Authorization", "Header carrying --token")
	fl.StringVar(&f.token, "token", "", "Token auth value, e.g. \"Bearer abc\"")
	fl.BoolVar(&f.withoutBody, "without-body", false, "Do not download the response body")
	fl.StringVar(&f.version, "http-version", "auto", "HTTP version: auto, 1.1 or 2")
	fl.BoolVarP(&f.insecure, "insecure", "k", false, "Skip TLS certificate verification")
	fl.StringVar(&f.dnsServer, "dns-server", "", "Resolve the host through this DNS server")

	fl.DurationVar(&f.responseTimeWarn, "response-time-warn", 0, "Response time warning level")
	fl.DurationVar(&f.responseTimeCrit, "response-time-crit", 0, "Response time critical level")
	fl.IntVar(&f.pageSizeWarn, "page-size-warn", 0, "Page size warning level in bytes")
	fl.IntVar(&f.pageSizeCrit, "page-size-crit", 0, "Page size critical level in bytes")
	fl.BoolVar(&f.pageSizeLower, "page-size-lower", false, "Page size levels are minimums")
	fl.Float64Var(&f.certWarn, "cert-warn", 0, "Warn when the certificate expires within this many days")
	fl.Float64Var(&f.certCrit, "cert-crit", 0, "Critical when the certificate expires within this many days")
	fl.IntSliceVar(&f.statusCodes, "status-code", nil, "Accepted status codes (default: 2xx/3xx OK, 4xx WARNING, 5xx CRITICAL)")
	fl.StringVarP(&f.bodyString, "body-string", "s", "", "String the body must contain")
	fl.StringVarP(&f.bodyRegex, "body-regex", "r", "", "Regular expression the body must match")
	fl.StringVar(&f.bodyState, "body-mismatch-state", "critical", "State when the body does not match")
	fl.StringVar(&f.headerMatch, "header-match", "", `Response header "Name: value" that must be present`)
	fl.StringVar(&f.onRedirect, "on-redirect", "follow", "follow, or the state to report: ok, warning, critical, unknown")
	fl.IntVar(&f.maxRedirects, "max-redirects", 0, "Redirect limit when following (default 10)")

	fl.StringVar(&f.logLevel, "log-level", "", "Log level (default warn)")
	fl.StringVar(&f.logFormat, "log-format", "", "Log format: text or json")
	fl.StringVar(&f.logFile, "log-file", "", "Write logs to this file, rotated")
	fl.IntVar(&f.concurrency, "concurrency", 0, "Checks running at once with --config")

	cmd.MarkFlagsMutuallyExclusive("config", "url")
}

// file builds the configuration from --config or from the URL flags.
func (f *flags) file() (*config.File, error) {
	var file *config.File
	switch {
	case f.configPath != "":
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		file = loaded
	case f.url != "":
		target, err := f.target()
		if err != nil {
			return nil, err
		}
		file = &config.File{Targets: []map[string]any{target}}
	default:
		return nil, errNoTarget
	}

	file.ApplyEnv()
	if f.logLevel != "" {
		file.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		file.Log.Format = f.logFormat
	}
	if f.logFile != "" {
		file.Log.File = f.logFile
	}
	if f.concurrency > 0 {
		file.Runner.Concurrency = f.concurrency
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return file, nil
}

// target turns the URL flags into the same map a config file target uses.
func (f *flags) target() (map[string]any, error) {
	t := map[string]any{
		"url":                 f.url,
		"timeout":             f.timeout.String(),
		"method":              f.method,
		"version":             f.version,
		"skip_verify":         f.insecure,
		"without_body":        f.withoutBody,
		"on_redirect":         f.onRedirect,
		"body_mismatch_state": f.bodyState,
	}

	setString := func(key, value string) {
		if value != "" {
			t[key] = value
		}
	}
	setString("name", f.name)
	setString("body", f.body)
	setString("content_type", f.contentType)
	setString("body_string", f.bodyString)
	setString("body_regex", f.bodyRegex)
	setString("dns_server", f.dnsServer)

	if len(f.headers) > 0 {
		headers := make([]any, 0, len(f.headers))
		for _, raw := range f.headers {
			name, value, err := splitHeader(raw)
			if err != nil {
				return nil, fmt.Errorf("--header: %w", err)
			}
			headers = append(headers, map[string]any{"name": name, "value": value})
		}
		t["headers"] = headers
	}

	if f.headerMatch != "" {
		name, value, err := splitHeader(f.headerMatch)
		if err != nil {
			return nil, fmt.Errorf("--header-match: %w", err)
		}
		t["header_match"] = map[string]any{"name": name, "value": value}
	}

	if f.user != "" {
		user, password, _ := strings.Cut(f.user, ":")
		t["basic_auth"] = map[string]any{"user": user, "password": password}
	}
	if f.token != "" {
		t["token_auth"] = map[string]any{"header": f.tokenHeader, "value": f.token}
	}

	if f.responseTimeWarn > 0 || f.responseTimeCrit > 0 {
		level := map[string]any{}
		if f.responseTimeWarn > 0 {
			level["warn"] = f.responseTimeWarn.String()
		}
		if f.responseTimeCrit > 0 {
			level["crit"] = f.responseTimeCrit.String()
		}
		t["response_time"] = level
	}

	if f.pageSizeWarn > 0 || f.pageSizeCrit > 0 {
		level := map[string]any{"direction": "upper"}
		if f.pageSizeLower {
			level["direction"] = "lower"
		}
		if f.pageSizeWarn > 0 {
			level["warn"] = f.pageSizeWarn
		}
		if f.pageSizeCrit > 0 {
			level["crit"] = f.pageSizeCrit
		}
		t["page_size"] = level
	}

	if f.certWarn > 0 || f.certCrit > 0 {
		level := map[string]any{}
		if f.certWarn > 0 {
			level["warn"] = f.certWarn
		}
		if f.certCrit > 0 {
			level["crit"] = f.certCrit
		}
		t["certificate"] = level
	}

	if len(f.statusCodes) > 0 {
		t["status_codes"] = append([]int(nil), f.statusCodes...)
	}
	if f.maxRedirects > 0 {
		t["max_redirects"] = f.maxRedirects
	}

	return t, nil
}

func splitHeader(raw string) (string, string, error) {
	name, value, ok := strings.Cut(raw, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", errors.New(`expected "Name: value"`)
	}
	return name, strings.TrimSpace(value), nil
}
