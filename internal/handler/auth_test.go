package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/larderapp/larder/internal/database"
	"github.com/larderapp/larder/internal/middleware"
	"github.com/larderapp/larder/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupAuthHandler(t *testing.T) (*AuthHandler, *store.UserStore, *store.SessionStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	sessions := store.NewSessionStore(db)
	return NewAuthHandler(users, sessions, discardLogger()), users, sessions
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestRegisterCreatesUserAndSession(t *testing.T) {
	h, users, sessions := setupAuthHandler(t)

	body := `{"email":"Alice@Example.com","name":"Alice","password":"hunter2hunter2"}`
	req := httptest.NewRequest("POST", "/api/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	user, err := users.GetByEmail("alice@example.com")
	if err != nil || user == nil {
		t.Fatalf("user not created: %v", err)
	}
	if user.UID == "" {
		t.Error("expected generated uid")
	}
	if user.PasswordHash == "hunter2hunter2" {
		t.Error("password stored in plaintext")
	}

	cookie := sessionCookie(t, rec)
	sess, err := sessions.GetByToken(cookie.Value)
	if err != nil || sess == nil {
		t.Fatalf("session not created: %v", err)
	}
	if sess.UserID != user.ID {
		t.Errorf("session user = %d, want %d", sess.UserID, user.ID)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	h, _, _ := setupAuthHandler(t)

	body := `{"email":"alice@example.com","name":"Alice","password":"short"}`
	req := httptest.NewRequest("POST", "/api/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h, _, _ := setupAuthHandler(t)

	body := `{"email":"alice@example.com","name":"Alice","password":"hunter2hunter2"}`
	req := httptest.NewRequest("POST", "/api/auth/register", strings.NewReader(body))
	h.Register(httptest.NewRecorder(), req)

	req = httptest.NewRequest("POST", "/api/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestLoginRightAndWrongPassword(t *testing.T) {
	h, _, _ := setupAuthHandler(t)

	register := `{"email":"alice@example.com","name":"Alice","password":"hunter2hunter2"}`
	h.Register(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/auth/register", strings.NewReader(register)))

	req := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(`{"email":"alice@example.com","password":"hunter2hunter2"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}
	sessionCookie(t, rec)

	req = httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(`{"email":"alice@example.com","password":"wrong"}`))
	rec = httptest.NewRecorder()
	h.Login(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want 401", rec.Code)
	}

	// Unknown email gets the same response as a wrong password.
	req = httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(`{"email":"nobody@example.com","password":"whatever"}`))
	rec = httptest.NewRecorder()
	h.Login(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown email status = %d, want 401", rec.Code)
	}
}

func TestLogoutDeletesSession(t *testing.T) {
	h, _, sessions := setupAuthHandler(t)

	register := `{"email":"alice@example.com","name":"Alice","password":"hunter2hunter2"}`
	regRec := httptest.NewRecorder()
	h.Register(regRec, httptest.NewRequest("POST", "/api/auth/register", strings.NewReader(register)))
	cookie := sessionCookie(t, regRec)

	req := httptest.NewRequest("POST", "/api/auth/logout", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	sess, _ := sessions.GetByToken(cookie.Value)
	if sess != nil {
		t.Error("session should be deleted")
	}
}
