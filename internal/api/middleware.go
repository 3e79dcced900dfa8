package api

import (
	"net"
	"net/http"
	"net/http/httputil"
	"runtime/debug"
	"strings"

	zerrors "github.com/massmux/phoenixd-lnurl/internal/errors"
	uuid "github.com/satori/go.uuid"
	log "github.com/sirupsen/logrus"
)

const RequestIDHeader = "X-Request-Id"

func LoggingMiddleware(prefix string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewV4().String()
		}
		w.Header().Set(RequestIDHeader, id)
		log.Debugf("[%s] %s %s %s", prefix, id, r.Method, r.URL.Path)
		log.Tracef("[%s]\n%s", prefix, dump(r))
		next.ServeHTTP(w, r)
	}
}

func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Errorf("[api] panic serving %s: %v\n%s", r.URL.Path, err, debug.Stack())
				w.Header().Set("Connection", "close")
				WriteError(w, zerrors.Newf(zerrors.InvariantViolationError, "%v", err), false)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ClientIP is the address the request came from, honouring the headers set
// by a reverse proxy in front of the service.
func ClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-Ip"); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func dump(r *http.Request) string {
	x, err := httputil.DumpRequest(r, false)
	if err != nil {
		return ""
	}
	return string(x)
}
