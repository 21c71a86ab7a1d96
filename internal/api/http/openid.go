package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geofleet/geofleet/internal/api/oidc"
	"github.com/geofleet/geofleet/internal/api/service"
	"github.com/geofleet/geofleet/pkg/cryptox"
	"github.com/geofleet/geofleet/pkg/httpx"
	"github.com/geofleet/geofleet/pkg/slogx"
)

const stateCookieName = "openid_state"

// OpenIDHandler drives the browser through the identity provider and back.
// The callback completes with a trusted login and a regular session cookie,
// so everything after sign-in works exactly like a password session.
type OpenIDHandler struct {
	Provider *oidc.Provider
	Login    *service.LoginService
	Sessions *SessionHandler
	Audit    *service.AuditService
}

// HandleAuth starts the flow by redirecting to the identity provider.
func (h *OpenIDHandler) HandleAuth(w http.ResponseWriter, r *http.Request) {
	state, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/api/session/openid",
		HttpOnly: true,
		Secure:   h.Sessions.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(10 * time.Minute),
	})
	http.Redirect(w, r, h.Provider.AuthCodeURL(state), http.StatusFound)
}

// HandleCallback finishes the flow: verify state, exchange the code, sign
// the verified identity in and redirect to the configured landing page.
func (h *OpenIDHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		httpx.WriteError(w, http.StatusBadRequest, "state mismatch")
		return
	}

	identity, err := h.Provider.Exchange(ctx, r.URL.Query().Get("code"))
	if err != nil {
		switch {
		case errors.Is(err, oidc.ErrMissingCode):
			httpx.WriteError(w, http.StatusBadRequest, "missing authorization code")
		case errors.Is(err, oidc.ErrNotAllowed):
			h.Audit.LoginFailure(ctx, r.RemoteAddr)
			httpx.WriteError(w, http.StatusForbidden, "sign-in not allowed")
		default:
			log.Error("identity exchange failed", slog.String("error", err.Error()))
			httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	result, err := h.Login.LoginTrusted(ctx, identity.Email, identity.Name, identity.Administrator)
	if err != nil {
		if service.IsRejection(err) {
			h.Audit.LoginFailure(ctx, r.RemoteAddr)
			httpx.WriteError(w, http.StatusUnauthorized, "account not available")
			return
		}
		log.Error("trusted login failed", slog.String("error", err.Error()))
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	session, err := h.Sessions.createSession(r, result)
	if err != nil {
		log.Error("failed to create session", slog.String("error", err.Error()))
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.Sessions.setCookie(w, session)
	h.Audit.LoginSuccess(ctx, result.User.ID, r.RemoteAddr)
	http.Redirect(w, r, h.Provider.SuccessURL(), http.StatusFound)
}
