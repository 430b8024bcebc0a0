package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/findme/internal/model"
)

func TestNotifyNotificationPostsToService(t *testing.T) {
	var got NotifyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/notify" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	c.NotifyNotification(context.Background(), &model.Notification{ID: "n1", UserID: "u1", Message: "hello", Link: "/chat/c1"})

	if got.UserID != "u1" || got.Body != "hello" || got.Data["link"] != "/chat/c1" {
		t.Fatalf("payload = %+v", got)
	}
}

func TestDisabledClientIsNoop(t *testing.T) {
	c := NewClient("")
	if c.Enabled() {
		t.Fatal("empty url must disable client")
	}
	if err := c.Subscribe(context.Background(), "u1", Subscription{Endpoint: "x"}); err != nil {
		t.Fatalf("subscribe on disabled client: %v", err)
	}
}

func TestSubscribeReportsServiceStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()
	if err := NewClient(srv.URL).Subscribe(context.Background(), "u1", Subscription{}); err == nil {
		t.Fatal("expected error on 400")
	}
}

func TestEnsureVAPIDKeysPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "vapid.json")
	first, err := EnsureVAPIDKeys(path)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := EnsureVAPIDKeys(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if first.PublicKey == "" || first.PublicKey != second.PublicKey || first.PrivateKey != second.PrivateKey {
		t.Fatal("keys must be generated once and reloaded from file")
	}
}
