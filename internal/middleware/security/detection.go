package security

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"

	applog "spesa/internal/log"
)

// maxURLLength is the longest request URL accepted without flagging.
const maxURLLength = 2048

var (
	suspiciousPatterns = []string{
		"../", "..\\", ".env", "wp-admin", "phpmyadmin",
		"admin.php", "config.php", ".git", ".ssh",
		"eval(", "javascript:", "<script", "union select",
		"etc/passwd", "cmd.exe",
	}
	scannerAgents  = []string{"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan"}
	unusualMethods = []string{"TRACE", "TRACK", "DEBUG", "CONNECT"}
)

// Detector resolves client addresses and flags requests that look like
// probing. Flagged requests are logged, not rejected.
type Detector struct {
	trustedProxies []*net.IPNet
	suspicious     int64
	logger         *applog.Logger
}

// NewDetector trusts loopback and private networks to set forwarding headers.
func NewDetector(logger *applog.Logger) *Detector {
	return &Detector{
		logger: logger,
		trustedProxies: []*net.IPNet{
			parseCIDR("127.0.0.0/8"),
			parseCIDR("::1/128"),
			parseCIDR("10.0.0.0/8"),
			parseCIDR("172.16.0.0/12"),
			parseCIDR("192.168.0.0/16"),
		},
	}
}

func parseCIDR(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("failed to parse trusted proxy CIDR %s: %v", cidr, err))
	}
	return network
}

// AddTrustedProxy adds a trusted proxy network
func (d *Detector) AddTrustedProxy(cidr string) error {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.trustedProxies = append(d.trustedProxies, network)
	return nil
}

// IsSuspicious reports whether r matches a known probing pattern.
func (d *Detector) IsSuspicious(r *http.Request) bool {
	path := strings.ToLower(r.URL.Path)
	query := strings.ToLower(r.URL.RawQuery)
	for _, p := range suspiciousPatterns {
		if strings.Contains(path, p) || strings.Contains(query, p) {
			return true
		}
	}

	agent := strings.ToLower(r.Header.Get("User-Agent"))
	for _, a := range scannerAgents {
		if strings.Contains(agent, a) {
			return true
		}
	}

	for _, m := range unusualMethods {
		if r.Method == m {
			return true
		}
	}

	if len(r.URL.String()) > maxURLLength {
		return true
	}
	return strings.Count(r.Header.Get("X-Forwarded-For"), ",") > 5
}

// ClientIP extracts the real client IP. Forwarding headers are honored only
// when the direct peer is a trusted proxy.
func (d *Detector) ClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsed := net.ParseIP(directIP)
	if parsed == nil || !d.isTrustedProxy(parsed) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return directIP
}

func (d *Detector) isTrustedProxy(ip net.IP) bool {
	for _, network := range d.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// SuspiciousCount returns how many requests have been flagged.
func (d *Detector) SuspiciousCount() int64 {
	return atomic.LoadInt64(&d.suspicious)
}

// Middleware logs suspicious requests and lets them through.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d.IsSuspicious(r) {
			atomic.AddInt64(&d.suspicious, 1)
			d.logger.WarnContext(r.Context(), "Suspicious request",
				applog.FieldClientIP, d.ClientIP(r),
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				applog.FieldUserAgent, r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}
