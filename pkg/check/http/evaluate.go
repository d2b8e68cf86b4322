package http

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kylerisse/checkhttp/pkg/check"
)

// evaluate turns a response into the check's results, in output order.
func (c *Check) evaluate(resp *ProcessedResponse, elapsed time.Duration) check.Collection {
	return check.NewCollection(
		checkVersion(resp),
		checkStatus(resp, c.statusCodes),
		checkRedirect(resp, c.client.Redirect),
		check.MapResult(checkResponseTime(elapsed, c.responseTime), check.Seconds),
		check.MapResult(checkPageSize(resp.Body, c.pageSize), toFloat),
		checkBody(resp.Body, c.bodyString, c.bodyRegex, c.bodyState),
		checkHeader(resp.Header, c.headerMatch),
		checkCertificate(resp.TLS, c.certDays, c.now()),
	)
}

func toFloat(n int) float64 { return float64(n) }

func checkVersion(resp *ProcessedResponse) check.CheckResult[float64] {
	return check.Notice[float64](check.StateOK, "Version: "+resp.Proto)
}

// checkStatus classifies the status code. Without expected codes, 4xx is
// WARNING and 5xx CRITICAL.
func checkStatus(resp *ProcessedResponse, expected []int) check.CheckResult[float64] {
	text := "Status: " + resp.Status
	if text == "Status: " {
		text += strconv.Itoa(resp.StatusCode)
	}

	if len(expected) > 0 {
		if slices.Contains(expected, resp.StatusCode) {
			return check.Notice[float64](check.StateOK, text)
		}
		codes := make([]string, len(expected))
		for i, code := range expected {
			codes[i] = strconv.Itoa(code)
		}
		return check.Notice[float64](check.StateCrit, text+" (expected "+strings.Join(codes, ", ")+")")
	}

	switch {
	case resp.StatusCode >= 500:
		return check.Notice[float64](check.StateCrit, text)
	case resp.StatusCode >= 400:
		return check.Notice[float64](check.StateWarn, text)
	}
	return check.Notice[float64](check.StateOK, text)
}

// checkRedirect reports an unfollowed redirect with the policy's state.
func checkRedirect(resp *ProcessedResponse, policy RedirectPolicy) check.CheckResult[float64] {
	if policy.Follow || resp.StatusCode < 300 || resp.StatusCode >= 400 {
		return check.CheckResult[float64]{}
	}
	location := resp.Header.Get("Location")
	if location == "" {
		location = "unknown location"
	}
	return check.Notice[float64](policy.State, "Redirected to "+location)
}

func checkResponseTime(elapsed time.Duration, level *check.Level[time.Duration]) check.CheckResult[time.Duration] {
	m := check.MustMetric("response_time", elapsed, "s",
		check.WithLevel(level), check.WithMin(time.Duration(0)))
	return check.NoticeFromLevels("Response time: "+elapsed.Round(time.Millisecond).String(), m)
}

// checkPageSize is skipped when the body was not fetched or not readable.
func checkPageSize(body *BodyResult, level *check.Level[int]) check.CheckResult[int] {
	if body == nil || body.Err != nil {
		return check.CheckResult[int]{}
	}
	m := check.MustMetric("response_size", body.Body.Length, "B",
		check.WithLevel(level), check.WithMin(0))
	return check.FromLevels("Page size", m)
}

func checkBody(body *BodyResult, substr string, re *regexp.Regexp, mismatch check.State) check.CheckResult[float64] {
	if body == nil {
		return check.CheckResult[float64]{}
	}
	if body.Err != nil {
		return check.Notice[float64](check.StateCrit, "Error fetching the response body: "+body.Err.Error())
	}

	var missing []string
	if substr != "" && !strings.Contains(body.Body.Text, substr) {
		missing = append(missing, fmt.Sprintf("string %q not found", substr))
	}
	if re != nil && !re.MatchString(body.Body.Text) {
		missing = append(missing, fmt.Sprintf("regex %s not matched", re))
	}
	if len(missing) == 0 {
		return check.CheckResult[float64]{}
	}
	return check.Notice[float64](mismatch, "Body: "+strings.Join(missing, ", "))
}

func checkHeader(header http.Header, want *Header) check.CheckResult[float64] {
	if want == nil {
		return check.CheckResult[float64]{}
	}
	values := header.Values(want.Name)
	if len(values) == 0 {
		return check.Notice[float64](check.StateCrit, fmt.Sprintf("Header %s missing", want.Name))
	}
	if want.Value == "" || slices.Contains(values, want.Value) {
		return check.CheckResult[float64]{}
	}
	return check.Notice[float64](check.StateCrit,
		fmt.Sprintf("Header %s is %q, expected %q", want.Name, strings.Join(values, ", "), want.Value))
}

// checkCertificate reports the days left on the leaf certificate. Plain
// HTTP responses are skipped.
func checkCertificate(cs *tls.ConnectionState, level *check.Level[float64], now time.Time) check.CheckResult[float64] {
	if level == nil || cs == nil || len(cs.PeerCertificates) == 0 {
		return check.CheckResult[float64]{}
	}
	leaf := cs.PeerCertificates[0]
	days := leaf.NotAfter.Sub(now).Hours() / 24

	m := check.MustMetric("certificate_remaining_validity", days, "", check.WithLevel(level))
	text := fmt.Sprintf("Certificate expires in %.0f days (%s)", days, leaf.NotAfter.UTC().Format(time.DateOnly))
	if days < 0 {
		text = fmt.Sprintf("Certificate expired %s", leaf.NotAfter.UTC().Format(time.DateOnly))
	}
	return check.NoticeFromLevels(text, m)
}
