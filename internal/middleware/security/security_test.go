package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	applog "spesa/internal/log"
)

func TestClientIP(t *testing.T) {
	d := NewDetector(applog.Discard())

	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct public peer ignores headers", "203.0.113.7:5000", "1.1.1.1", "", "203.0.113.7"},
		{"trusted proxy forwards first hop", "10.0.0.2:5000", "198.51.100.4, 10.0.0.9", "", "198.51.100.4"},
		{"trusted proxy with real ip", "127.0.0.1:5000", "", "198.51.100.5", "198.51.100.5"},
		{"garbage forwarded value", "192.168.1.1:80", "not-an-ip", "", "192.168.1.1"},
		{"remote without port", "203.0.113.9", "", "", "203.0.113.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/items", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			require.Equal(t, tt.want, d.ClientIP(r))
		})
	}
}

func TestAddTrustedProxy(t *testing.T) {
	d := NewDetector(applog.Discard())
	require.Error(t, d.AddTrustedProxy("nope"))
	require.NoError(t, d.AddTrustedProxy("203.0.113.0/24"))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.1:443"
	r.Header.Set("X-Forwarded-For", "198.51.100.1")
	require.Equal(t, "198.51.100.1", d.ClientIP(r))
}

func TestIsSuspicious(t *testing.T) {
	d := NewDetector(applog.Discard())

	tests := []struct {
		name   string
		method string
		target string
		agent  string
		want   bool
	}{
		{"plain api call", http.MethodGet, "/api/items?q=apple", "Mozilla/5.0", false},
		{"path traversal", http.MethodGet, "/api/../../etc/passwd", "", true},
		{"encoded query is not decoded", http.MethodGet, "/api/items?q=%3Cscript%3E", "", false},
		{"dotenv probe", http.MethodGet, "/.env", "", true},
		{"scanner agent", http.MethodGet, "/", "sqlmap/1.7", true},
		{"trace method", "TRACE", "/", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "http://example.com"+tt.target, nil)
			r.Header.Set("User-Agent", tt.agent)
			require.Equal(t, tt.want, d.IsSuspicious(r))
		})
	}
}

func TestDetectorMiddlewareCounts(t *testing.T) {
	d := NewDetector(applog.Discard())
	h := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/wp-admin", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/items", nil))

	require.Equal(t, int64(1), d.SuspiciousCount())
}

func TestHeaders(t *testing.T) {
	h := Headers(DefaultHeadersConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/summary", nil))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	r := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
	r.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	require.Equal(t, "max-age=31536000; includeSubDomains", rec.Header().Get("Strict-Transport-Security"))
}
