package handler_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/morinoya/order-api/internal/database"
	"github.com/morinoya/order-api/internal/enum"
	"github.com/morinoya/order-api/internal/handler"
	"github.com/morinoya/order-api/internal/middleware"
	"github.com/morinoya/order-api/internal/service"
)

type mockSettingsStore struct {
	getSettingFn func(ctx context.Context, key string) (database.Setting, error)
	upsertFn     func(ctx context.Context, arg database.UpsertSettingParams) (database.Setting, error)

	upsertCalls int
}

func (m *mockSettingsStore) GetSetting(ctx context.Context, key string) (database.Setting, error) {
	if m.getSettingFn != nil {
		return m.getSettingFn(ctx, key)
	}
	return database.Setting{}, pgx.ErrNoRows
}

func (m *mockSettingsStore) UpsertSetting(ctx context.Context, arg database.UpsertSettingParams) (database.Setting, error) {
	m.upsertCalls++
	if m.upsertFn != nil {
		return m.upsertFn(ctx, arg)
	}
	return database.Setting{Key: arg.Key, Value: arg.Value}, nil
}

func newAdminRouter(store handler.SettingsStore, password string) http.Handler {
	r := chi.NewRouter()
	handler.NewAdminHandler(store, password).RegisterRoutes(r)
	return r
}

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// --- Login / Logout ---

func TestLogin(t *testing.T) {
	router := newAdminRouter(&mockSettingsStore{}, "hunter2")

	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(`{"password":"hunter2"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	cookie := findCookie(t, rec, middleware.AdminCookieName)
	if cookie == nil {
		t.Fatal("admin cookie not set")
	}
	if cookie.Value != middleware.AdminCookieValue {
		t.Errorf("cookie value: got %q, want %q", cookie.Value, middleware.AdminCookieValue)
	}
	if !cookie.HttpOnly {
		t.Error("cookie must be HttpOnly")
	}
	if cookie.MaxAge != 7*24*60*60 {
		t.Errorf("cookie max-age: got %d, want 7 days", cookie.MaxAge)
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie samesite: got %v, want Lax", cookie.SameSite)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	router := newAdminRouter(&mockSettingsStore{}, "hunter2")

	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(`{"password":"nope"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if findCookie(t, rec, middleware.AdminCookieName) != nil {
		t.Error("cookie set on failed login")
	}
}

func TestLoginDisabledWhenPasswordUnset(t *testing.T) {
	router := newAdminRouter(&mockSettingsStore{}, "")

	// Even the matching empty password must be rejected.
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(`{"password":""}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestLogout(t *testing.T) {
	router := newAdminRouter(&mockSettingsStore{}, "hunter2")

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(adminCookie())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	cookie := findCookie(t, rec, middleware.AdminCookieName)
	if cookie == nil {
		t.Fatal("expiring cookie not set")
	}
	if cookie.MaxAge >= 0 {
		t.Errorf("cookie max-age: got %d, want negative (immediate expiry)", cookie.MaxAge)
	}
}

// --- Stop flag ---

func TestStopRequiresAdmin(t *testing.T) {
	router := newAdminRouter(&mockSettingsStore{}, "hunter2")

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		req := httptest.NewRequest(method, "/stop", bytes.NewBufferString(`{"stopped":true}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s /stop without cookie: got %d, want %d", method, rec.Code, http.StatusUnauthorized)
		}
	}
}

func TestStopGetDefaultsToOpen(t *testing.T) {
	// No settings row yet: the shop is open.
	router := newAdminRouter(&mockSettingsStore{}, "hunter2")

	req := httptest.NewRequest(http.MethodGet, "/stop", nil)
	req.AddCookie(adminCookie())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decodeBody(t, rec)
	if resp["stopped"] != false {
		t.Errorf("stopped: got %v, want false", resp["stopped"])
	}
}

func TestStopGetStopped(t *testing.T) {
	store := &mockSettingsStore{
		getSettingFn: func(ctx context.Context, key string) (database.Setting, error) {
			return database.Setting{Key: key, Value: []byte(`{"stopped":true}`)}, nil
		},
	}
	router := newAdminRouter(store, "hunter2")

	req := httptest.NewRequest(http.MethodGet, "/stop", nil)
	req.AddCookie(adminCookie())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	resp := decodeBody(t, rec)
	if resp["stopped"] != true {
		t.Errorf("stopped: got %v, want true", resp["stopped"])
	}
}

func TestStopSet(t *testing.T) {
	store := &mockSettingsStore{
		upsertFn: func(ctx context.Context, arg database.UpsertSettingParams) (database.Setting, error) {
			if arg.Key != enum.SettingOrderStop {
				t.Errorf("setting key: got %q, want %q", arg.Key, enum.SettingOrderStop)
			}
			stopped, err := service.DecodeStopFlag(arg.Value)
			if err != nil || !stopped {
				t.Errorf("stored value: got %s", arg.Value)
			}
			return database.Setting{Key: arg.Key, Value: arg.Value}, nil
		},
	}
	router := newAdminRouter(store, "hunter2")

	req := httptest.NewRequest(http.MethodPost, "/stop", bytes.NewBufferString(`{"stopped":true}`))
	req.AddCookie(adminCookie())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	if store.upsertCalls != 1 {
		t.Errorf("upsert calls: got %d, want 1", store.upsertCalls)
	}
	resp := decodeBody(t, rec)
	if resp["stopped"] != true {
		t.Errorf("stopped: got %v, want true", resp["stopped"])
	}
}

func TestStopSetRequiresField(t *testing.T) {
	store := &mockSettingsStore{}
	router := newAdminRouter(store, "hunter2")

	req := httptest.NewRequest(http.MethodPost, "/stop", bytes.NewBufferString(`{}`))
	req.AddCookie(adminCookie())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if store.upsertCalls != 0 {
		t.Error("upsert attempted on invalid input")
	}
}
