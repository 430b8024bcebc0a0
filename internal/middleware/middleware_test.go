package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"firebase.google.com/go/v4/auth"

	"github.com/findme/internal/model"
	"github.com/findme/internal/storage/memory"
)

type recordingDirectory struct {
	seen []model.User
}

func (d *recordingDirectory) EnsureUser(_ context.Context, u model.User) (*model.User, error) {
	d.seen = append(d.seen, u)
	return &u, nil
}

func actorEcho(w http.ResponseWriter, r *http.Request) {
	a := GetActor(r.Context())
	_ = json.NewEncoder(w).Encode(map[string]string{"user": a.UserID, "role": string(a.Role)})
}

func decodeActor(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var got map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return got
}

func TestHeaderIdentity(t *testing.T) {
	dir := &recordingDirectory{}
	h := HeaderIdentity(dir)(http.HandlerFunc(actorEcho))

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("X-User-Id", "u1")
	req.Header.Set("X-User-Name", "Alice")
	req.Header.Set("X-User-Role", "ADMIN")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decodeActor(t, rec)
	if got["user"] != "u1" || got["role"] != "admin" {
		t.Fatalf("actor = %v", got)
	}
	if len(dir.seen) != 1 || dir.seen[0].Name != "Alice" {
		t.Fatalf("directory saw %+v", dir.seen)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	h := RequireAdmin(http.HandlerFunc(actorEcho))
	tests := []struct {
		role model.Role
		want int
	}{
		{model.RoleAdmin, http.StatusOK},
		{model.RoleUser, http.StatusForbidden},
		{"", http.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
		req = req.WithContext(WithActor(req.Context(), model.Actor{UserID: "x", Role: tt.role}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("role %q: status = %d, want %d", tt.role, rec.Code, tt.want)
		}
	}
}

type stubVerifier map[string]*auth.Token

func (s stubVerifier) VerifyIDToken(_ context.Context, tok string) (*auth.Token, error) {
	if t, ok := s[tok]; ok {
		return t, nil
	}
	return nil, errors.New("invalid token")
}

func TestFirebaseAuth(t *testing.T) {
	verifier := stubVerifier{
		"good": {UID: "fb-1", Claims: map[string]interface{}{"email": "Bob@Example.com", "name": "Bob", "role": "admin"}},
	}
	dir := &recordingDirectory{}
	h := FirebaseAuth(verifier, dir)(http.HandlerFunc(actorEcho))

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeActor(t, rec); got["user"] != "fb-1" || got["role"] != "admin" {
		t.Fatalf("actor = %v", got)
	}
	if dir.seen[0].Email != "bob@example.com" {
		t.Fatalf("email = %q", dir.seen[0].Email)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?token=good", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("query token status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("forged status = %d", rec.Code)
	}
}

func TestAuthServiceValidate(t *testing.T) {
	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if r.URL.Path != "/internal/validate" || body["session_id"] != "s1" || body["path"] != "/api/item" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"user_id": "u9", "name": "Carol", "role": "user"})
	}))
	defer authSrv.Close()

	dir := &recordingDirectory{}
	h := AuthServiceValidate(authSrv.URL, authSrv.Client(), dir)(http.HandlerFunc(actorEcho))

	req := httptest.NewRequest(http.MethodPost, "/api/item", strings.NewReader(`{"title":"x"}`))
	req.Header.Set("X-Session-Id", "s1")
	req.Header.Set("X-Timestamp", "1700000000")
	req.Header.Set("X-Signature", "sig")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeActor(t, rec); got["user"] != "u9" || got["role"] != "user" {
		t.Fatalf("actor = %v", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/item", nil)
	req.Header.Set("X-Session-Id", "other")
	req.Header.Set("X-Timestamp", "1700000000")
	req.Header.Set("X-Signature", "sig")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("rejected session status = %d", rec.Code)
	}
}

func TestRateLimitAPI(t *testing.T) {
	h := RateLimitAPI(memory.NewRateLimiter(), 2, 100)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/item", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusNoContent || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("non-api path limited: %d", rec.Code)
	}
}

func TestRecoverJSON(t *testing.T) {
	h := RecoverJSON(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/item", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"message"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}
