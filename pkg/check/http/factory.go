package http

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kylerisse/checkhttp/pkg/check"
	"github.com/kylerisse/checkhttp/pkg/resolve"
)

// Factory creates an HTTP Check from a config map.
//
// Required key: "url".
// Optional keys:
//   - "name", "method", "body", "content_type", "version" (strings)
//   - "timeout" (duration string, e.g. "10s")
//   - "skip_verify", "without_body" (bools)
//   - "headers": list of {name, value} maps, or a map of name to value
//   - "basic_auth": {user, password}; "token_auth": {header, value}
//   - "response_time": {warn, crit} as duration strings
//   - "page_size": {warn, crit, direction} in bytes
//   - "certificate": {warn, crit} in days
//   - "status_codes": list of integers
//   - "body_string", "body_regex", "body_mismatch_state"
//   - "header_match": {name, value}
//   - "on_redirect": follow, ok, warning, critical or unknown
//   - "max_redirects" (integer)
//   - "dns_server": resolve the host through this server
//
// A "logger" key holding a *logrus.Logger is injected by the loader.
func Factory(config map[string]any) (check.Check, error) {
	rawURL, err := getString(config, "url")
	if err != nil {
		return nil, err
	}
	if rawURL == "" {
		return nil, &check.ConfigError{Field: "url", Err: fmt.Errorf("required key is missing")}
	}

	opts, err := factoryOptions(config)
	if err != nil {
		return nil, err
	}
	return New(rawURL, opts...)
}

func factoryOptions(config map[string]any) ([]Option, error) {
	var opts []Option

	var logger *logrus.Logger
	if v, ok := config["logger"]; ok {
		l, ok := v.(*logrus.Logger)
		if !ok {
			return nil, fmt.Errorf("http: 'logger' must be a *logrus.Logger, got %T", v)
		}
		logger = l
		opts = append(opts, WithLogger(l))
	}

	stringOpts := []struct {
		key string
		opt func(string) Option
	}{
		{"name", WithName},
		{"method", WithMethod},
		{"body", WithBody},
		{"content_type", WithContentType},
		{"body_string", WithBodyString},
		{"body_regex", WithBodyRegex},
	}
	for _, so := range stringOpts {
		if _, ok := config[so.key]; !ok {
			continue
		}
		s, err := getString(config, so.key)
		if err != nil {
			return nil, err
		}
		opts = append(opts, so.opt(s))
	}

	if _, ok := config["timeout"]; ok {
		d, err := getDuration(config, "timeout")
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithTimeout(d))
	}

	if _, ok := config["skip_verify"]; ok {
		b, err := getBool(config, "skip_verify")
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithSkipVerify(b))
	}

	if _, ok := config["without_body"]; ok {
		b, err := getBool(config, "without_body")
		if err != nil {
			return nil, err
		}
		if b {
			opts = append(opts, WithoutBody())
		}
	}

	if _, ok := config["version"]; ok {
		s, err := getString(config, "version")
		if err != nil {
			return nil, err
		}
		v, err := ParseVersion(s)
		if err != nil {
			return nil, &check.ConfigError{Field: "version", Err: err}
		}
		opts = append(opts, WithVersion(v))
	}

	headers, err := getHeaders(config)
	if err != nil {
		return nil, err
	}
	for _, h := range headers {
		opts = append(opts, WithHeader(h.Name, h.Value))
	}

	if m, err := getMap(config, "basic_auth"); err != nil {
		return nil, err
	} else if m != nil {
		user, err := getString(m, "user")
		if err != nil {
			return nil, err
		}
		password, err := getString(m, "password")
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithBasicAuth(user, password))
	}

	if m, err := getMap(config, "token_auth"); err != nil {
		return nil, err
	} else if m != nil {
		header, err := getString(m, "header")
		if err != nil {
			return nil, err
		}
		if header == "" {
			header = "Authorization"
		}
		value, err := getString(m, "value")
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithTokenAuth(header, value))
	}

	if m, err := getMap(config, "header_match"); err != nil {
		return nil, err
	} else if m != nil {
		name, err := getString(m, "name")
		if err != nil {
			return nil, err
		}
		value, err := getString(m, "value")
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithHeaderMatch(name, value))
	}

	rt, err := getLevel(config, "response_time", check.Upper, toDuration)
	if err != nil {
		return nil, err
	}
	if rt != nil {
		opts = append(opts, WithResponseTime(rt))
	}

	ps, err := getLevel(config, "page_size", check.Upper, toInt)
	if err != nil {
		return nil, err
	}
	if ps != nil {
		opts = append(opts, WithPageSize(ps))
	}

	cert, err := getLevel(config, "certificate", check.Lower, toFloat64)
	if err != nil {
		return nil, err
	}
	if cert != nil {
		opts = append(opts, WithCertificateLevels(cert))
	}

	if raw, ok := config["status_codes"]; ok {
		codes, err := toIntList("status_codes", raw)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithStatusCodes(codes...))
	}

	if _, ok := config["body_mismatch_state"]; ok {
		s, err := getString(config, "body_mismatch_state")
		if err != nil {
			return nil, err
		}
		state, err := check.ParseState(s)
		if err != nil {
			return nil, &check.ConfigError{Field: "body_mismatch_state", Err: err}
		}
		opts = append(opts, WithBodyMismatchState(state))
	}

	redirect := FollowRedirects
	if _, ok := config["on_redirect"]; ok {
		s, err := getString(config, "on_redirect")
		if err != nil {
			return nil, err
		}
		redirect, err = ParseRedirectPolicy(s)
		if err != nil {
			return nil, &check.ConfigError{Field: "on_redirect", Err: err}
		}
	}
	limit := 0
	if raw, ok := config["max_redirects"]; ok {
		n, err := toInt(raw)
		if err != nil {
			return nil, &check.ConfigError{Field: "max_redirects", Err: err}
		}
		limit = n
	}
	opts = append(opts, WithRedirect(redirect, limit))

	if _, ok := config["dns_server"]; ok {
		server, err := getString(config, "dns_server")
		if err != nil {
			return nil, err
		}
		var ropts []resolve.Option
		if logger != nil {
			ropts = append(ropts, resolve.WithLogger(logger))
		}
		r, err := resolve.New(server, ropts...)
		if err != nil {
			return nil, &check.ConfigError{Field: "dns_server", Err: err}
		}
		opts = append(opts, WithResolver(r))
	}

	return opts, nil
}

func getString(config map[string]any, key string) (string, error) {
	v, ok := config[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &check.ConfigError{Field: key, Err: fmt.Errorf("must be a string, got %T", v)}
	}
	return s, nil
}

func getBool(config map[string]any, key string) (bool, error) {
	v := config[key]
	b, ok := v.(bool)
	if !ok {
		return false, &check.ConfigError{Field: key, Err: fmt.Errorf("must be a bool, got %T", v)}
	}
	return b, nil
}

func getDuration(config map[string]any, key string) (time.Duration, error) {
	d, err := toDuration(config[key])
	if err != nil {
		return 0, &check.ConfigError{Field: key, Err: err}
	}
	return d, nil
}

// getMap returns nil when key is absent.
func getMap(config map[string]any, key string) (map[string]any, error) {
	v, ok := config[key]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &check.ConfigError{Field: key, Err: fmt.Errorf("must be a map, got %T", v)}
	}
	return m, nil
}

// getHeaders accepts a list of {name, value} maps, which keeps order and
// allows repeated names, or a plain name to value map.
func getHeaders(config map[string]any) ([]Header, error) {
	raw, ok := config["headers"]
	if !ok || raw == nil {
		return nil, nil
	}

	switch v := raw.(type) {
	case []Header:
		return v, nil
	case map[string]any:
		headers := make([]Header, 0, len(v))
		for name, value := range v {
			s, ok := value.(string)
			if !ok {
				return nil, &check.ConfigError{Field: "headers", Err: fmt.Errorf("value of %q must be a string, got %T", name, value)}
			}
			headers = append(headers, Header{Name: name, Value: s})
		}
		sort.Slice(headers, func(i, j int) bool { return headers[i].Name < headers[j].Name })
		return headers, nil
	case []any:
		headers := make([]Header, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, &check.ConfigError{Field: "headers", Err: fmt.Errorf("items must be maps, got %T", item)}
			}
			name, err := getString(m, "name")
			if err != nil {
				return nil, err
			}
			value, err := getString(m, "value")
			if err != nil {
				return nil, err
			}
			headers = append(headers, Header{Name: name, Value: value})
		}
		return headers, nil
	}
	return nil, &check.ConfigError{Field: "headers", Err: fmt.Errorf("must be a list or a map, got %T", raw)}
}

// getLevel reads {warn, crit, direction} under key. Absent bounds stay nil.
func getLevel[T check.Measurable](config map[string]any, key string, dir check.Direction, conv func(any) (T, error)) (*check.Level[T], error) {
	m, err := getMap(config, key)
	if err != nil || m == nil {
		return nil, err
	}

	level := &check.Level[T]{Direction: dir}
	for _, bound := range []struct {
		name string
		dst  **T
	}{{"warn", &level.Warn}, {"crit", &level.Crit}} {
		raw, ok := m[bound.name]
		if !ok || raw == nil {
			continue
		}
		v, err := conv(raw)
		if err != nil {
			return nil, &check.ConfigError{Field: key + "." + bound.name, Err: err}
		}
		*bound.dst = &v
	}

	if raw, ok := m["direction"]; ok {
		s, ok := raw.(string)
		if !ok {
			return nil, &check.ConfigError{Field: key + ".direction", Err: fmt.Errorf("must be a string, got %T", raw)}
		}
		switch strings.ToLower(s) {
		case "upper":
			level.Direction = check.Upper
		case "lower":
			level.Direction = check.Lower
		default:
			return nil, &check.ConfigError{Field: key + ".direction", Err: fmt.Errorf("unknown direction %q", s)}
		}
	}

	return level, nil
}

func toDuration(v any) (time.Duration, error) {
	switch x := v.(type) {
	case string:
		return time.ParseDuration(x)
	case time.Duration:
		return x, nil
	}
	return 0, fmt.Errorf("must be a duration string, got %T", v)
}

func toInt(v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case uint64:
		return int(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("must be an integer, got %v", x)
		}
		return int(x), nil
	}
	return 0, fmt.Errorf("must be an integer, got %T", v)
}

func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	}
	return 0, fmt.Errorf("must be a number, got %T", v)
}

func toIntList(key string, raw any) ([]int, error) {
	switch v := raw.(type) {
	case []int:
		return v, nil
	case []any:
		out := make([]int, 0, len(v))
		for _, item := range v {
			n, err := toInt(item)
			if err != nil {
				return nil, &check.ConfigError{Field: key, Err: err}
			}
			out = append(out, n)
		}
		return out, nil
	}
	return nil, &check.ConfigError{Field: key, Err: fmt.Errorf("must be a list, got %T", raw)}
}
