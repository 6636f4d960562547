package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"music-library/internal/logging"
)

// w3cFields is the field directive of the access log.
const w3cFields = "#Fields: date time c-ip cs-method cs-uri-stem cs-uri-query sc-status sc-bytes time-taken cs(User-Agent)"

// LoggingConfig selects the requests the access log leaves out.
type LoggingConfig struct {
	// SkipPaths are path prefixes that are never logged.
	SkipPaths []string
	// LogHealthChecks includes the probe endpoints.
	LogHealthChecks bool
}

// DefaultLoggingConfig skips scrapes and health probes.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{SkipPaths: []string{"/metrics"}}
}

var healthCheckPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

// Logger writes one W3C extended log line per request. The field directive
// is logged before the first line.
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	var header sync.Once
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkip(r.URL.Path, config) {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			header.Do(func() { logging.Info("%s", w3cFields) })
			logging.Info("%s", formatW3C(r, rec, time.Since(start)))
		})
	}
}

func shouldSkip(path string, config LoggingConfig) bool {
	if !config.LogHealthChecks && healthCheckPaths[path] {
		return true
	}
	for _, prefix := range config.SkipPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func formatW3C(r *http.Request, rec *statusRecorder, took time.Duration) string {
	now := time.Now().UTC()
	return strings.Join([]string{
		now.Format(time.DateOnly),
		now.Format(time.TimeOnly),
		w3cField(getClientIP(r)),
		w3cField(r.Method),
		w3cField(r.URL.Path),
		w3cField(r.URL.RawQuery),
		strconv.Itoa(rec.statusCode),
		strconv.FormatInt(rec.bytesWritten, 10),
		strconv.FormatInt(took.Milliseconds(), 10),
		w3cField(r.UserAgent()),
	}, " ")
}

// w3cField makes a client supplied value safe for one log field. Empty
// values become "-".
func w3cField(s string) string {
	s = sanitizeLogField(s)
	if s == "" {
		return "-"
	}
	return escapeW3CField(s)
}

// sanitizeLogField drops control characters so a value cannot forge log
// lines or terminal escapes. Line breaks become spaces and tabs are kept.
func sanitizeLogField(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, s)
}

// escapeW3CField quotes s when it contains whitespace or quotes, doubling
// embedded quotes. Track and album paths usually contain spaces.
func escapeW3CField(s string) string {
	if !strings.ContainsAny(s, " \t\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// getClientIP prefers the first proxy supplied address over the peer.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
