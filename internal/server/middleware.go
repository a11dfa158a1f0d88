package server

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/emrgen/docgen/internal/access"
	"github.com/emrgen/docgen/internal/apperr"
	"github.com/emrgen/docgen/internal/service"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

const (
	headerActorID   = "X-Actor-Id"
	headerActorRole = "X-Actor-Role"
)

type actorKey struct{}

// ActorMiddleware reads the caller identity set by the authentication
// gateway in front of the service.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := access.Actor{
			ID:   strings.TrimSpace(r.Header.Get(headerActorID)),
			Role: access.ParseRole(r.Header.Get(headerActorRole)),
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func actorFrom(ctx context.Context) access.Actor {
	actor, _ := ctx.Value(actorKey{}).(access.Actor)
	return actor
}

// requirePrivileged rejects callers that are not staff, admins or the system.
func requirePrivileged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !actorFrom(r.Context()).Privileged() {
			writeError(w, r, apperr.New(apperr.KindForbidden, r.URL.Path, service.ErrAccessDenied.Error(), service.ErrAccessDenied))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requester(r *http.Request) service.Requester {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}

	return service.Requester{
		Actor:     actorFrom(r.Context()),
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	}
}

// requestLogger logs every request with its duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logrus.WithFields(logrus.Fields{
			"method":  r.Method,
			"path":    r.URL.Path,
			"status":  ww.Status(),
			"bytes":   ww.BytesWritten(),
			"actor":   actorFrom(r.Context()).ID,
			"request": middleware.GetReqID(r.Context()),
		}).Infof("request time: %v", time.Since(start))
	})
}
