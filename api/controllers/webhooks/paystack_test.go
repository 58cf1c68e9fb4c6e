package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/adjeibohyen/tutorhub-backend/internal/reconcile"
	pkgerrors "github.com/adjeibohyen/tutorhub-backend/pkg/errors"
	"github.com/adjeibohyen/tutorhub-backend/pkg/paystack"
)

const testSigningSecret = "sk_test_webhook_secret"

func buildSignedEvent(t *testing.T, eventType, reference string) ([]byte, string) {
	t.Helper()
	event := map[string]any{
		"event": eventType,
		"data": map[string]any{
			"reference": reference,
			"status":    "success",
			"amount":    5000,
		},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload, paystack.ComputeSignature(testSigningSecret, payload)
}

func newTestGuard(t *testing.T) *reconcile.IdempotencyGuard {
	t.Helper()
	guard, err := reconcile.NewIdempotencyGuard(newInMemoryStore(), time.Minute, reconcile.GuardScope)
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	return guard
}

func TestPaystackWebhook_SuccessAndIdempotent(t *testing.T) {
	payload, signature := buildSignedEvent(t, "charge.success", "TXN_1_abcd1234_ffffff")
	service := &fakeReconcileService{}
	handler := PaystackWebhook(service, &fakeSigningClient{secret: testSigningSecret}, newTestGuard(t), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paystack", bytes.NewReader(payload))
	req.Header.Set(paystack.SignatureHeader, signature)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected service called once, got %d", service.calls)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"received":true`)) {
		t.Fatalf("expected ack body, got %s", rec.Body.String())
	}

	// Replay the same delivery.
	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paystack", bytes.NewReader(payload))
	req2.Header.Set(paystack.SignatureHeader, signature)
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate, got %d (%s)", rec2.Code, rec2.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected duplicate not processed, call count %d", service.calls)
	}
}

func TestPaystackWebhook_InvalidSignature(t *testing.T) {
	payload, _ := buildSignedEvent(t, "charge.success", "TXN_1_abcd1234_ffffff")
	service := &fakeReconcileService{}
	handler := PaystackWebhook(service, &fakeSigningClient{secret: testSigningSecret}, newTestGuard(t), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paystack", bytes.NewReader(payload))
	req.Header.Set(paystack.SignatureHeader, "deadbeef")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatal("service should not be invoked on bad signature")
	}
}

func TestPaystackWebhook_MissingSignature(t *testing.T) {
	payload, _ := buildSignedEvent(t, "charge.success", "TXN_1_abcd1234_ffffff")
	handler := PaystackWebhook(&fakeReconcileService{}, &fakeSigningClient{secret: testSigningSecret}, newTestGuard(t), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paystack", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing signature, got %d", rec.Code)
	}
}

func TestPaystackWebhook_ServiceErrorReleasesGuard(t *testing.T) {
	payload, signature := buildSignedEvent(t, "charge.success", "TXN_1_abcd1234_ffffff")
	service := &fakeReconcileService{err: pkgerrors.New(pkgerrors.CodeDependency, "ledger unavailable")}
	handler := PaystackWebhook(service, &fakeSigningClient{secret: testSigningSecret}, newTestGuard(t), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paystack", bytes.NewReader(payload))
	req.Header.Set(paystack.SignatureHeader, signature)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	// The redelivery must be processed, not swallowed by the guard.
	service.err = nil
	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paystack", bytes.NewReader(payload))
	req2.Header.Set(paystack.SignatureHeader, signature)
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 on retry, got %d (%s)", rec2.Code, rec2.Body.String())
	}
	if service.calls != 2 {
		t.Fatalf("expected two processing attempts, got %d", service.calls)
	}
}

func TestPaystackWebhook_MalformedPayloadRejected(t *testing.T) {
	payload := []byte("{not-json")
	signature := paystack.ComputeSignature(testSigningSecret, payload)
	service := &fakeReconcileService{}
	handler := PaystackWebhook(service, &fakeSigningClient{secret: testSigningSecret}, newTestGuard(t), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paystack", bytes.NewReader(payload))
	req.Header.Set(paystack.SignatureHeader, signature)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatal("service should not see malformed payloads")
	}
}

type fakeReconcileService struct {
	calls int
	err   error
	last  paystack.Event
}

func (f *fakeReconcileService) ReconcileWebhookEvent(ctx context.Context, event paystack.Event) error {
	f.calls++
	f.last = event
	return f.err
}

type fakeSigningClient struct {
	secret string
}

func (c *fakeSigningClient) SigningSecret() string {
	return c.secret
}

type inMemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{
		data: make(map[string]string),
	}
}

func (s *inMemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *inMemoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("th:idempotency:%s:%s", scope, id)
}

func (s *inMemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}
