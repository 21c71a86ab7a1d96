package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geofleet/geofleet/internal/api/domain"
	"github.com/geofleet/geofleet/internal/api/service"
	"github.com/geofleet/geofleet/internal/api/store"
	"github.com/geofleet/geofleet/pkg/cryptox"
	"github.com/geofleet/geofleet/pkg/httpx"
	"github.com/geofleet/geofleet/pkg/signx"
	"github.com/geofleet/geofleet/pkg/slogx"
)

// DefaultSessionLifetime bounds cookie sessions; expired rows are swept by
// housekeeping.
const DefaultSessionLifetime = 7 * 24 * time.Hour

type SessionHandler struct {
	Login  *service.LoginService
	Users  *service.UserService
	Tokens *signx.TokenManager
	Store  store.Store
	Audit  *service.AuditService

	SessionLifetime time.Duration
	SecureCookies   bool
}

// HandleGet returns the account behind the current principal. A token query
// parameter may establish a new session in the same call; with neither the
// response is 404.
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	principal, ok := PrincipalFrom(ctx)
	if !ok {
		token := r.URL.Query().Get("token")
		if token == "" {
			httpx.WriteError(w, http.StatusNotFound, "no active session")
			return
		}

		result, err := h.Login.LoginWithToken(ctx, token)
		if err != nil {
			if service.IsRejection(err) {
				h.Audit.LoginFailure(ctx, r.RemoteAddr)
				httpx.WriteError(w, http.StatusNotFound, "no active session")
				return
			}
			log.Error("token login failed", slog.String("error", err.Error()))
			httpx.WriteError(w, http.StatusInternalServerError, "internal error")
			return
		}

		session, err := h.createSession(r, result)
		if err != nil {
			log.Error("failed to create session", slog.String("error", err.Error()))
			httpx.WriteError(w, http.StatusInternalServerError, "internal error")
			return
		}

		h.setCookie(w, session)
		h.Audit.LoginSuccess(ctx, result.User.ID, r.RemoteAddr)
		httpx.WriteJSON(w, http.StatusOK, toUserResponse(result.User))
		return
	}

	if principal.ServiceAccount {
		httpx.WriteJSON(w, http.StatusOK, toUserResponse(domain.ServiceAccountUser()))
		return
	}

	user, err := h.Users.GetUser(ctx, principal.UserID)
	if err != nil {
		log.Error("failed to load session user", slog.String("error", err.Error()))
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// HandlePost performs a password login and issues a session cookie.
func (h *SessionHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")
	code := r.PostFormValue("code")

	result, err := h.Login.LoginWithPassword(ctx, email, password, code)
	if err != nil {
		if errors.Is(err, service.ErrCodeRequired) {
			w.Header().Set("WWW-Authenticate", "TOTP")
		}
		if service.IsRejection(err) {
			h.Audit.LoginFailure(ctx, r.RemoteAddr)
			httpx.WriteError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		log.Error("login failed", slog.String("error", err.Error()))
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if result == nil {
		h.Audit.LoginFailure(ctx, r.RemoteAddr)
		httpx.WriteError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	session, err := h.createSession(r, result)
	if err != nil {
		log.Error("failed to create session", slog.String("error", err.Error()))
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.setCookie(w, session)
	h.Audit.LoginSuccess(ctx, result.User.ID, r.RemoteAddr)
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(result.User))
}

// HandleDelete invalidates the current session.
func (h *SessionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, ok := SessionIDFrom(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "no active session")
		return
	}

	if err := h.Store.Sessions().DeleteSession(ctx, sessionID); err != nil && !errors.Is(err, store.ErrNotFound) {
		slogx.FromContext(ctx).Error("failed to delete session", slog.String("error", err.Error()))
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if principal, ok := PrincipalFrom(ctx); ok {
		h.Audit.Logout(ctx, principal.UserID, r.RemoteAddr)
	}

	h.clearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

type tokenRequest struct {
	// Expiration is optional, RFC 3339. Zero means the default lifetime.
	Expiration time.Time `json:"expiration"`
}

type tokenResponse struct {
	Token      string    `json:"token"`
	Expiration time.Time `json:"expiration"`
}

// HandleToken issues a signed API token for the current principal. The
// token never outlives the session that requested it.
func (h *SessionHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := PrincipalFrom(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req tokenRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	expiration := req.Expiration
	if expiration.IsZero() {
		expiration = time.Now().Add(signx.DefaultTokenLifetime)
	}
	if principal.Expiration != nil && expiration.After(*principal.Expiration) {
		expiration = *principal.Expiration
	}

	token, err := h.Tokens.Generate(ctx, principal.UserID, expiration)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to generate token", slog.String("error", err.Error()))
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse{Token: token, Expiration: expiration})
}

func (h *SessionHandler) createSession(r *http.Request, result *service.LoginResult) (domain.Session, error) {
	id, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.Session{}, err
	}

	lifetime := h.SessionLifetime
	if lifetime <= 0 {
		lifetime = DefaultSessionLifetime
	}
	expiration := time.Now().Add(lifetime)
	if result.Expiration != nil && result.Expiration.Before(expiration) {
		expiration = *result.Expiration
	}

	session := domain.Session{
		ID:         id,
		UserID:     result.User.ID,
		Expiration: &expiration,
		CreatedAt:  time.Now(),
	}
	if err := h.Store.Sessions().CreateSession(r.Context(), session); err != nil {
		return domain.Session{}, err
	}
	return session, nil
}

func (h *SessionHandler) setCookie(w http.ResponseWriter, session domain.Session) {
	cookie := &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if session.Expiration != nil {
		cookie.Expires = *session.Expiration
	}
	http.SetCookie(w, cookie)
}

func (h *SessionHandler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
