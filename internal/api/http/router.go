package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/geofleet/geofleet/internal/api/store"
	"github.com/geofleet/geofleet/pkg/httpx"
	"github.com/geofleet/geofleet/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store

	Sessions *SessionHandler
	Users    *UserHandler
	OpenID   *OpenIDHandler // nil when no identity provider is configured

	Authenticator *Authenticator
}

func NewRouter(st store.Store, buildVersion string, logger *slog.Logger) *Router {
	return &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}
}

// anonymousRoutes may be reached without a principal: the credential
// presenting endpoints themselves, the browser redirect flow, and probes.
func anonymousRoutes(r *http.Request) bool {
	switch r.URL.Path {
	case "/livez", "/readyz":
		return true
	case "/api/session":
		// POST presents credentials; GET answers 404 itself when the
		// request carries neither a principal nor a token parameter.
		return r.Method == http.MethodPost || r.Method == http.MethodGet
	case "/api/session/openid/auth", "/api/session/openid/callback":
		return true
	}
	return false
}

func (r *Router) ApplyRoutes() {
	if r.Authenticator.PermitAnonymous == nil {
		r.Authenticator.PermitAnonymous = anonymousRoutes
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		r.Authenticator.Middleware,
	}

	r.registerSession()
	r.registerUsers()
	r.registerSystem()
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerSession() {
	r.Mux.HandleFunc("GET /api/session", r.Sessions.HandleGet)
	r.Mux.HandleFunc("DELETE /api/session", r.Sessions.HandleDelete)
	r.Mux.HandleFunc("POST /api/session/token", r.Sessions.HandleToken)

	// Credential-presenting endpoint, rate limited against brute force.
	r.Mux.Handle("POST /api/session",
		httpx.Chain(http.HandlerFunc(r.Sessions.HandlePost),
			httpx.RateLimitMiddleware(httpx.StrictLimit),
		),
	)

	if r.OpenID != nil {
		r.Mux.HandleFunc("GET /api/session/openid/auth", r.OpenID.HandleAuth)
		r.Mux.HandleFunc("GET /api/session/openid/callback", r.OpenID.HandleCallback)
	}
}

func (r *Router) registerUsers() {
	r.Mux.HandleFunc("POST /api/users", r.Users.HandleCreate)
	r.Mux.HandleFunc("PUT /api/users/{id}/password", r.Users.HandleSetPassword)
	r.Mux.HandleFunc("GET /api/users/totp", r.Users.HandleGenerateTOTP)
	r.Mux.HandleFunc("PUT /api/users/{id}/totp", r.Users.HandleSetTOTP)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.store))
}
