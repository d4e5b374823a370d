package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/morinoya/order-api/internal/database"
	"github.com/morinoya/order-api/internal/enum"
	mw "github.com/morinoya/order-api/internal/middleware"
	"github.com/morinoya/order-api/internal/service"
)

// adminSessionTTL is how long the admin cookie stays valid once issued.
const adminSessionTTL = 7 * 24 * time.Hour

// SettingsStore defines the database methods needed by admin handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (database.Setting, error)
	UpsertSetting(ctx context.Context, arg database.UpsertSettingParams) (database.Setting, error)
}

// AdminHandler handles admin login/logout and the global stop flag.
//
// The password is compared in constant time against a single configured
// secret. No hashing, no lockout: this is a single-tenant internal tool and
// the session is a trust-on-presence cookie.
type AdminHandler struct {
	store    SettingsStore
	password string
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(store SettingsStore, password string) *AdminHandler {
	return &AdminHandler{store: store, password: password}
}

// RegisterRoutes registers admin endpoints on the given Chi router.
// Expected to be mounted at /api/admin. Stop-flag endpoints require the admin
// cookie for both read and write; the public read lives at /api/public/status.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireAdmin)
		r.Get("/stop", h.StopGet)
		r.Post("/stop", h.StopSet)
	})
}

// --- Request types ---

type loginRequest struct {
	Password string `json:"password"`
}

type stopSetRequest struct {
	Stopped *bool `json:"stopped"`
}

// --- Handlers ---

// Login handles POST /api/admin/login. A mismatch gets a bare 401 with no
// hint about what failed.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// An unset ADMIN_PASSWORD disables login entirely rather than matching "".
	if h.password == "" ||
		subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.password)) != 1 {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     mw.AdminCookieName,
		Value:    mw.AdminCookieValue,
		Path:     "/",
		MaxAge:   int(adminSessionTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// Logout handles POST /api/admin/logout by expiring the cookie immediately.
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     mw.AdminCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// StopGet handles GET /api/admin/stop.
func (h *AdminHandler) StopGet(w http.ResponseWriter, r *http.Request) {
	stopped, err := readStopFlag(r.Context(), h.store)
	if err != nil {
		log.Printf("ERROR: read stop flag: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "stopped": stopped})
}

// StopSet handles POST /api/admin/stop, upserting the order_stop row.
func (h *AdminHandler) StopSet(w http.ResponseWriter, r *http.Request) {
	var req stopSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Stopped == nil {
		writeError(w, http.StatusBadRequest, "stopped is required")
		return
	}

	if _, err := h.store.UpsertSetting(r.Context(), database.UpsertSettingParams{
		Key:   enum.SettingOrderStop,
		Value: service.EncodeStopFlag(*req.Stopped),
	}); err != nil {
		log.Printf("ERROR: write stop flag: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "stopped": *req.Stopped})
}

// readStopFlag treats a missing settings row as "not stopped" and lets real
// store errors propagate so they surface as 500s, not as a silently open shop.
func readStopFlag(ctx context.Context, store SettingsStore) (bool, error) {
	setting, err := store.GetSetting(ctx, enum.SettingOrderStop)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return service.DecodeStopFlag(setting.Value)
}
