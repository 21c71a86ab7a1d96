package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/geofleet/geofleet/internal/api/domain"
	"github.com/geofleet/geofleet/internal/api/service"
	"github.com/geofleet/geofleet/internal/api/store"
	"github.com/geofleet/geofleet/pkg/httpx"
	"github.com/geofleet/geofleet/pkg/slogx"
)

type UserHandler struct {
	Users *service.UserService
}

type createUserRequest struct {
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Login         string     `json:"login"`
	Password      string     `json:"password"`
	Administrator bool       `json:"administrator"`
	Expiration    *time.Time `json:"expiration"`
}

// userResponse is the account shape exposed over the API. Credential
// material never appears here.
type userResponse struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Login         string     `json:"login,omitempty"`
	Administrator bool       `json:"administrator"`
	Disabled      bool       `json:"disabled"`
	Expiration    *time.Time `json:"expiration,omitempty"`
	FixedEmail    bool       `json:"fixedEmail"`
	SecondFactor  bool       `json:"secondFactor"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Login:         u.Login,
		Administrator: u.Administrator,
		Disabled:      u.Disabled,
		Expiration:    u.ExpirationTime,
		FixedEmail:    u.FixedEmail,
		SecondFactor:  u.TOTPKey != "",
	}
}

// HandleCreate creates an account. Administrators only.
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := PrincipalFrom(ctx)
	if !ok || !principal.Administrator {
		httpx.WriteError(w, http.StatusForbidden, "administrator access required")
		return
	}

	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" {
		httpx.WriteError(w, http.StatusBadRequest, "email is required")
		return
	}

	user, err := h.Users.CreateUser(ctx, domain.User{
		Name:           req.Name,
		Email:          req.Email,
		Login:          req.Login,
		Administrator:  req.Administrator,
		ExpirationTime: req.Expiration,
	}, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPasswordRequired):
			httpx.WriteError(w, http.StatusBadRequest, "password is required")
		case errors.Is(err, store.ErrAlreadyExists):
			httpx.WriteError(w, http.StatusConflict, "account already exists")
		default:
			slogx.FromContext(ctx).Error("failed to create user", slog.String("error", err.Error()))
			httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

type setPasswordRequest struct {
	Password string `json:"password"`
}

// HandleSetPassword replaces an account's password. Allowed for
// administrators and for the account itself.
func (h *UserHandler) HandleSetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	principal, ok := PrincipalFrom(ctx)
	if !ok || (!principal.Administrator && principal.UserID != userID) {
		httpx.WriteError(w, http.StatusForbidden, "access denied")
		return
	}

	var req setPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Users.SetPassword(ctx, userID, req.Password); err != nil {
		switch {
		case errors.Is(err, service.ErrPasswordRequired):
			httpx.WriteError(w, http.StatusBadRequest, "password is required")
		case errors.Is(err, store.ErrNotFound):
			httpx.WriteError(w, http.StatusNotFound, "account not found")
		default:
			slogx.FromContext(ctx).Error("failed to set password", slog.String("error", err.Error()))
			httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type totpKeyResponse struct {
	Key string `json:"key"`
}

// HandleGenerateTOTP returns a fresh second-factor secret for the current
// principal. Nothing is stored until the key is confirmed via
// HandleSetTOTP.
func (h *UserHandler) HandleGenerateTOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := PrincipalFrom(ctx)
	if !ok || principal.ServiceAccount {
		httpx.WriteError(w, http.StatusForbidden, "access denied")
		return
	}

	key, err := h.Users.GenerateTOTPKey(ctx, principal.UserID)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to generate second-factor key", slog.String("error", err.Error()))
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, totpKeyResponse{Key: key})
}

type setTOTPRequest struct {
	Key string `json:"key"`
}

// HandleSetTOTP provisions or clears an account's second-factor secret.
// Allowed for administrators and for the account itself.
func (h *UserHandler) HandleSetTOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	principal, ok := PrincipalFrom(ctx)
	if !ok || (!principal.Administrator && principal.UserID != userID) {
		httpx.WriteError(w, http.StatusForbidden, "access denied")
		return
	}

	var req setTOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Users.SetTOTPKey(ctx, userID, req.Key); err != nil {
		switch {
		case errors.Is(err, service.ErrCodeInvalid):
			httpx.WriteError(w, http.StatusBadRequest, "invalid second-factor key")
		case errors.Is(err, store.ErrNotFound):
			httpx.WriteError(w, http.StatusNotFound, "account not found")
		default:
			slogx.FromContext(ctx).Error("failed to set second-factor key", slog.String("error", err.Error()))
			httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
