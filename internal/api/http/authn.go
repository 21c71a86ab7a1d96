package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/geofleet/geofleet/internal/api/service"
	"github.com/geofleet/geofleet/pkg/httpx"
	"github.com/geofleet/geofleet/pkg/slogx"
)

// SessionCookieName carries the session id issued at login.
const SessionCookieName = "session"

// Authenticator is the boundary filter in front of every route. It resolves
// the request's credentials to a principal and stores it in the context.
//
// Header credentials are authoritative: any failure there terminates the
// request. Cookie credentials are ambient, so their system faults are logged
// and the request falls through to the anonymous outcome instead.
type Authenticator struct {
	Login *service.LoginService
	Usage *service.UsageService

	// PermitAnonymous reports whether the route may be reached without a
	// principal (login, sign-in redirects, health probes).
	PermitAnonymous func(r *http.Request) bool
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		log := slogx.FromContext(ctx)

		if header := r.Header.Get("Authorization"); header != "" {
			scheme, credentials, found := strings.Cut(header, " ")
			if !found {
				unauthorized(w, r, "invalid authorization header")
				return
			}

			result, err := a.Login.LoginWithScheme(ctx, scheme, credentials)
			if err != nil {
				if errors.Is(err, service.ErrCodeRequired) {
					w.Header().Set("WWW-Authenticate", "TOTP")
				}
				if service.IsRejection(err) || errors.Is(err, service.ErrUnsupportedScheme) {
					unauthorized(w, r, "invalid credentials")
					return
				}
				log.Error("authentication failed", slog.String("error", err.Error()))
				httpx.WriteError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if result == nil {
				unauthorized(w, r, "invalid credentials")
				return
			}

			a.admit(w, r, next, result, "")
			return
		}

		if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
			result, err := a.Login.LoginWithSession(ctx, cookie.Value)
			switch {
			case err == nil && result != nil:
				a.admit(w, r, next, result, cookie.Value)
				return
			case err != nil && !service.IsRejection(err):
				log.Warn("session authentication failed", slog.String("error", err.Error()))
			}
			// Rejected sessions fall through to the anonymous outcome.
		}

		if a.PermitAnonymous != nil && a.PermitAnonymous(r) {
			next.ServeHTTP(w, r)
			return
		}

		unauthorized(w, r, "authentication required")
	})
}

func (a *Authenticator) admit(w http.ResponseWriter, r *http.Request, next http.Handler, result *service.LoginResult, sessionID string) {
	principal := result.Principal()
	if a.Usage != nil {
		a.Usage.Record(principal.UserID)
	}

	ctx := WithPrincipal(r.Context(), principal)
	if sessionID != "" {
		ctx = WithSessionID(ctx, sessionID)
	}
	next.ServeHTTP(w, r.WithContext(ctx))
}

// unauthorized writes a 401. The Basic challenge is advertised only to
// browser-like clients so API consumers never trigger the browser's own
// credentials dialog.
func unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		w.Header().Set("WWW-Authenticate", `Basic realm="api"`)
	}
	httpx.WriteError(w, http.StatusUnauthorized, message)
}
