package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bookmarket-io/bookmarket-backend/api/responses"
)

type fakeStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}}
}

func (f *fakeStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[key], nil
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value.(string)
	return true, nil
}

func (f *fakeStore) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func TestIdempotencyRequiresHeaderOnGuardedRoute(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"ok": "yes"})
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader("{}"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	calls := 0
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		responses.WriteSuccess(w, map[string]string{"ok": "yes"})
	}))

	body := `{"currency":"USD"}`
	first := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	first.Header.Set("Idempotency-Key", "abc")
	firstResp := httptest.NewRecorder()
	handler.ServeHTTP(firstResp, first)
	if firstResp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", firstResp.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	second.Header.Set("Idempotency-Key", "abc")
	secondResp := httptest.NewRecorder()
	handler.ServeHTTP(secondResp, second)
	if secondResp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", secondResp.Code)
	}
	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls)
	}
	if firstResp.Body.String() != secondResp.Body.String() {
		t.Fatalf("expected replayed body %s, got %s", firstResp.Body.String(), secondResp.Body.String())
	}
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"ok": "yes"})
	}))

	first := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"currency":"USD"}`))
	first.Header.Set("Idempotency-Key", "abc")
	handler.ServeHTTP(httptest.NewRecorder(), first)

	second := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"currency":"EUR"}`))
	second.Header.Set("Idempotency-Key", "abc")
	secondResp := httptest.NewRecorder()
	handler.ServeHTTP(secondResp, second)
	if secondResp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", secondResp.Code)
	}
}

func TestIdempotencySkipsUnguardedRoutes(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	calls := 0
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		responses.WriteSuccess(w, nil)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/books", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if calls != 1 {
		t.Fatalf("expected handler call, got %d", calls)
	}
}
