package router

import (
	"net"
	"net/http"
	"strings"

	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
)

const (
	// MaxBodyBytes caps request bodies. Signature pages travel as base64 PDFs.
	MaxBodyBytes int64 = 20 << 20

	// HeaderCorrelationID is echoed on every response.
	HeaderCorrelationID = instrument.CorrelationIDHeader
	// HeaderRequestID is accepted in place of HeaderCorrelationID.
	HeaderRequestID = "X-Request-ID"

	maxCorrelationIDLen = 128
)

func middlewareBodyLimit(limit int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// middlewareClientIP replaces RemoteAddr with the forwarded client address,
// but only when the peer is one of app.server.trusted_proxies. Anyone else
// could forge the headers.
func middlewareClientIP(cfg config.Config) Middleware {
	var trusted []*net.IPNet
	if cfg != nil {
		for _, cidr := range cfg.GetArray("app.server.trusted_proxies") {
			if _, n, err := net.ParseCIDR(strings.TrimSpace(cidr)); err == nil {
				trusted = append(trusted, n)
			} else if ip := net.ParseIP(strings.TrimSpace(cidr)); ip != nil {
				trusted = append(trusted, &net.IPNet{IP: ip, Mask: net.CIDRMask(len(ip)*8, len(ip)*8)})
			}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip := forwardedIP(r, trusted); ip != "" {
				r.RemoteAddr = ip
			}
			next.ServeHTTP(w, r)
		})
	}
}

func forwardedIP(r *http.Request, trusted []*net.IPNet) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer := net.ParseIP(host)
	if peer == nil || !contains(trusted, peer) {
		return ""
	}

	for _, h := range []string{"True-Client-IP", "X-Real-IP", "X-Forwarded-For"} {
		v, _, _ := strings.Cut(r.Header.Get(h), ",")
		if ip := net.ParseIP(strings.TrimSpace(v)); ip != nil {
			return ip.String()
		}
	}
	return ""
}

func contains(nets []*net.IPNet, ip net.IP) bool {
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func middlewareCorrelationID(gen uid.StringID) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cid := correlationID(r.Header.Get(HeaderCorrelationID))
			if cid == "" {
				cid = correlationID(r.Header.Get(HeaderRequestID))
			}
			if cid == "" && gen != nil {
				cid = gen.Generate()
			}

			if cid != "" {
				w.Header().Set(HeaderCorrelationID, cid)
				r = r.WithContext(instrument.SetCorrelationID(r.Context(), cid))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// correlationID accepts a caller supplied id unless it could break a header
// or a log line.
func correlationID(v string) string {
	if strings.ContainsAny(v, "\r\n") {
		return ""
	}
	v = strings.TrimSpace(v)
	if len(v) > maxCorrelationIDLen {
		v = v[:maxCorrelationIDLen]
	}
	return v
}

// middlewareMaintenance answers 503 on the routes listed in
// app.maintenance.endpoints, e.g. "/auth_requests" while a store migration
// runs. The list is read on every request so it can be flipped live.
func middlewareMaintenance(cfg config.Config) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg != nil && underMaintenance(cfg.GetArray("app.maintenance.endpoints"), matchedRoutePath(r)) {
				w.Header().Set("Retry-After", "60")
				writeError(w, "Service is under maintenance", http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func underMaintenance(endpoints []string, route string) bool {
	for _, e := range endpoints {
		if e = strings.TrimSpace(e); e == "*" || e == route {
			return true
		}
	}
	return false
}
