package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/orbitacademy/subscription-service/internal/adapters/memory"
	"github.com/orbitacademy/subscription-service/internal/adapters/security"
	"github.com/orbitacademy/subscription-service/internal/application"
	"github.com/orbitacademy/subscription-service/internal/domain"
	"github.com/orbitacademy/subscription-service/internal/ports"
)

const contractWebhookSecret = "whsec_contract"

type contractProvider struct {
	mu       sync.Mutex
	sessions int
	cancels  []string
}

func (p *contractProvider) CreateCheckoutSession(_ context.Context, _, _, _ string) (ports.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions++
	id := fmt.Sprintf("cs_%d", p.sessions)
	return ports.CheckoutSession{SessionID: id, RedirectURL: "https://pay.example.com/" + id}, nil
}

func (p *contractProvider) CancelAtPeriodEnd(_ context.Context, subscriptionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancels = append(p.cancels, subscriptionID)
	return nil
}

type contractParkingLot struct {
	mu     sync.Mutex
	parked []domain.CanonicalEvent
}

func (p *contractParkingLot) Park(_ context.Context, ev domain.CanonicalEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.parked = append(p.parked, ev)
	return nil
}

type contractEnv struct {
	router   http.Handler
	repos    *memory.Repositories
	verifier *security.HMACVerifier
	signer   *security.JWTSigner
	provider *contractProvider
	parking  *contractParkingLot
}

func newContractEnv(t *testing.T) *contractEnv {
	t.Helper()
	repos := memory.NewRepositories()
	verifier := security.NewHMACVerifier(contractWebhookSecret, 5*time.Minute)
	signer, err := security.NewJWTSigner("contract-test-secret")
	if err != nil {
		t.Fatalf("jwt signer: %v", err)
	}
	provider := &contractProvider{}
	parking := &contractParkingLot{}

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			PlanCatalog:          map[string]string{"cadet": "price_cadet", "challenger": "price_challenger"},
			IntentValidityWindow: 30 * time.Minute,
			ClockSkewTolerance:   5 * time.Minute,
			ReconcileMaxAttempts: 3,
			ReconcileBackoff:     time.Millisecond,
			TokenTTL:             time.Hour,
		},
		Subscribers: repos.Subscribers,
		EventLog:    repos.EventLog,
		Intents:     memory.NewIntentStore(),
		ParkingLot:  parking,
		Provider:    provider,
		Verifier:    verifier,
		Hasher:      security.NewBcryptHasher(4),
		TokenSigner: signer,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	return &contractEnv{
		router:   NewRouter(NewHandler(svc)),
		repos:    repos,
		verifier: verifier,
		signer:   signer,
		provider: provider,
		parking:  parking,
	}
}

func (e *contractEnv) do(t *testing.T, method, path string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// deliver posts a provider payload signed with the shared webhook secret.
func (e *contractEnv) deliver(t *testing.T, payload []byte) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, http.MethodPost, "/events", payload, map[string]string{
		"Webhook-Signature": e.verifier.Sign(payload, time.Now()),
	})
}

func (e *contractEnv) bearer(t *testing.T, email, role string) map[string]string {
	t.Helper()
	now := time.Now().UTC()
	token, err := e.signer.Sign(ports.AuthClaims{Email: email, Role: role, IssuedAt: now, ExpiresAt: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func checkoutCompletedPayload(eventID, email, subID string, occurredAt time.Time) []byte {
	return fmt.Appendf(nil, `{
		"id": %q,
		"type": "checkout.session.completed",
		"created": %d,
		"data": {"object": {
			"customer_email": %q,
			"subscription": %q,
			"metadata": {"plan": "cadet"}
		}}
	}`, eventID, occurredAt.Unix(), email, subID)
}

func subscriptionDeletedPayload(eventID, subID string, occurredAt time.Time) []byte {
	return fmt.Appendf(nil, `{
		"id": %q,
		"type": "customer.subscription.deleted",
		"created": %d,
		"data": {"object": {"id": %q}}
	}`, eventID, occurredAt.Unix(), subID)
}

func paymentFailedPayload(eventID, email string, occurredAt time.Time) []byte {
	return fmt.Appendf(nil, `{
		"id": %q,
		"type": "invoice.payment_failed",
		"created": %d,
		"data": {"object": {"customer_email": %q}}
	}`, eventID, occurredAt.Unix(), email)
}

// TestSubscriptionLifecycleContract drives the whole external surface through
// one subscriber's life: checkout, activation, redelivery, out-of-order
// cancellation and a post-cancellation payment failure.
func TestSubscriptionLifecycleContract(t *testing.T) {
	env := newContractEnv(t)
	authed := env.bearer(t, "lena@example.com", "user")

	t0 := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	t2 := t1.Add(time.Hour)
	t3 := t2.Add(time.Hour)

	// Checkout creates an account row but moves no subscription state.
	rec := env.do(t, http.MethodPost, "/api/v1/checkout", []byte(`{"email":"lena@example.com","password":"S3cret!pass","plan":"cadet"}`), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("checkout status: got=%d body=%s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	if body["success"] != true || body["sessionId"] == "" || body["url"] == "" {
		t.Fatalf("checkout body: %v", body)
	}
	sub, err := env.repos.Subscribers.GetByEmail(context.Background(), "lena@example.com")
	if err != nil {
		t.Fatalf("account row: %v", err)
	}
	if sub.Status != domain.StatusNone {
		t.Fatalf("status after checkout: got=%s want=%s", sub.Status, domain.StatusNone)
	}

	// Checkout completion activates.
	rec = env.deliver(t, checkoutCompletedPayload("evt_sub", "lena@example.com", "sub_1", t1))
	if rec.Code != http.StatusOK {
		t.Fatalf("subscribed delivery: got=%d body=%s", rec.Code, rec.Body.String())
	}
	if got := decodeJSON(t, rec)["received"]; got != true {
		t.Fatalf("ack body: %s", rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/v1/subscription", nil, authed)
	if rec.Code != http.StatusOK {
		t.Fatalf("get subscription: got=%d body=%s", rec.Code, rec.Body.String())
	}
	view := decodeJSON(t, rec)["subscription"].(map[string]any)
	if view["status"] != "active" || view["plan"] != "cadet" || view["subscriptionId"] != "sub_1" {
		t.Fatalf("view after activation: %v", view)
	}

	// Verbatim redelivery acknowledges and changes nothing.
	before, _ := env.repos.Subscribers.GetByEmail(context.Background(), "lena@example.com")
	rec = env.deliver(t, checkoutCompletedPayload("evt_sub", "lena@example.com", "sub_1", t1))
	if rec.Code != http.StatusOK {
		t.Fatalf("redelivery: got=%d body=%s", rec.Code, rec.Body.String())
	}
	after, _ := env.repos.Subscribers.GetByEmail(context.Background(), "lena@example.com")
	if after.Version != before.Version {
		t.Fatalf("redelivery mutated row: before=%d after=%d", before.Version, after.Version)
	}

	// Cancellation clears the provider linkage.
	rec = env.deliver(t, subscriptionDeletedPayload("evt_cancel", "sub_1", t2))
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel delivery: got=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodGet, "/api/v1/subscription", nil, authed)
	view = decodeJSON(t, rec)["subscription"].(map[string]any)
	if view["status"] != "canceled" {
		t.Fatalf("view after cancel: %v", view)
	}
	if _, present := view["subscriptionId"]; present {
		t.Fatalf("subscription id survived cancellation: %v", view)
	}

	// A late older event, delivered after the cancel, is absorbed.
	rec = env.deliver(t, checkoutCompletedPayload("evt_sub_late", "lena@example.com", "sub_1", t0))
	if rec.Code != http.StatusOK {
		t.Fatalf("late delivery: got=%d body=%s", rec.Code, rec.Body.String())
	}
	sub, _ = env.repos.Subscribers.GetByEmail(context.Background(), "lena@example.com")
	if sub.Status != domain.StatusCanceled {
		t.Fatalf("late event resurrected row: %+v", sub)
	}

	// A newer payment failure is a real transition even after cancellation.
	rec = env.deliver(t, paymentFailedPayload("evt_fail", "lena@example.com", t3))
	if rec.Code != http.StatusOK {
		t.Fatalf("payment failed delivery: got=%d body=%s", rec.Code, rec.Body.String())
	}
	sub, _ = env.repos.Subscribers.GetByEmail(context.Background(), "lena@example.com")
	if sub.Status != domain.StatusFailed {
		t.Fatalf("status after payment failure: got=%s want=%s", sub.Status, domain.StatusFailed)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	env := newContractEnv(t)
	payload := checkoutCompletedPayload("evt_sub", "lena@example.com", "sub_1", time.Now())

	rec := env.do(t, http.MethodPost, "/events", payload, map[string]string{
		"Webhook-Signature": fmt.Sprintf("t=%d,v1=deadbeef", time.Now().Unix()),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got=%d body=%s", rec.Code, rec.Body.String())
	}
	if body := decodeJSON(t, rec); body["code"] != "INVALID_SIGNATURE" {
		t.Fatalf("error code: %v", body)
	}

	if _, err := env.repos.Subscribers.GetByEmail(context.Background(), "lena@example.com"); err == nil {
		t.Fatal("rejected delivery must not create state")
	}
}

func TestWebhookStaleTimestampRejected(t *testing.T) {
	env := newContractEnv(t)
	payload := checkoutCompletedPayload("evt_sub", "lena@example.com", "sub_1", time.Now())

	rec := env.do(t, http.MethodPost, "/events", payload, map[string]string{
		"Webhook-Signature": env.verifier.Sign(payload, time.Now().Add(-time.Hour)),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got=%d body=%s", rec.Code, rec.Body.String())
	}
	if body := decodeJSON(t, rec); body["code"] != "STALE_EVENT" {
		t.Fatalf("error code: %v", body)
	}
}

func TestWebhookUnknownSubscriberParksAndReturns404(t *testing.T) {
	env := newContractEnv(t)
	payload := paymentFailedPayload("evt_orphan", "ghost@example.com", time.Now())

	rec := env.deliver(t, payload)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got=%d body=%s", rec.Code, rec.Body.String())
	}
	if body := decodeJSON(t, rec); body["code"] != "SUBSCRIBER_NOT_FOUND" {
		t.Fatalf("error code: %v", body)
	}

	env.parking.mu.Lock()
	defer env.parking.mu.Unlock()
	if len(env.parking.parked) != 1 || env.parking.parked[0].EventID != "evt_orphan" {
		t.Fatalf("event not parked: %+v", env.parking.parked)
	}
}

func TestWebhookIgnoresUnknownEventType(t *testing.T) {
	env := newContractEnv(t)
	payload := []byte(`{"id":"evt_x","type":"customer.created","created":1748779200,"data":{"object":{}}}`)

	rec := env.deliver(t, payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got=%d body=%s", rec.Code, rec.Body.String())
	}
	if got := decodeJSON(t, rec)["received"]; got != true {
		t.Fatalf("ack body: %s", rec.Body.String())
	}
}

func TestCheckoutInvalidPlanRejected(t *testing.T) {
	env := newContractEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/checkout", []byte(`{"email":"a@x.com","plan":"platinum"}`), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got=%d body=%s", rec.Code, rec.Body.String())
	}
	if body := decodeJSON(t, rec); body["code"] != "INVALID_PLAN" {
		t.Fatalf("error code: %v", body)
	}
}

func TestSubscriptionEndpointsRequireAuth(t *testing.T) {
	env := newContractEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/subscription", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: got=%d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/subscription", nil, map[string]string{"Authorization": "Bearer not.a.jwt"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: got=%d", rec.Code)
	}
}

func TestCancelEndpointDelegatesToProvider(t *testing.T) {
	env := newContractEnv(t)
	if rec := env.deliver(t, checkoutCompletedPayload("evt_sub", "lena@example.com", "sub_1", time.Now())); rec.Code != http.StatusOK {
		t.Fatalf("activate: got=%d body=%s", rec.Code, rec.Body.String())
	}

	rec := env.do(t, http.MethodPost, "/api/v1/subscription/cancel", nil, env.bearer(t, "lena@example.com", "user"))
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: got=%d body=%s", rec.Code, rec.Body.String())
	}

	env.provider.mu.Lock()
	defer env.provider.mu.Unlock()
	if len(env.provider.cancels) != 1 || env.provider.cancels[0] != "sub_1" {
		t.Fatalf("provider cancel calls: %+v", env.provider.cancels)
	}
}

func TestAdminUpdateRequiresAdminRole(t *testing.T) {
	env := newContractEnv(t)
	if rec := env.deliver(t, checkoutCompletedPayload("evt_sub", "lena@example.com", "sub_1", time.Now())); rec.Code != http.StatusOK {
		t.Fatalf("activate: got=%d", rec.Code)
	}

	body := []byte(`{"email":"lena@example.com","subscriptionId":"sub_2","plan":"challenger"}`)
	rec := env.do(t, http.MethodPatch, "/api/v1/admin/subscription", body, env.bearer(t, "lena@example.com", "user"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin: got=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPatch, "/api/v1/admin/subscription", body, env.bearer(t, "ops@example.com", "admin"))
	if rec.Code != http.StatusOK {
		t.Fatalf("admin: got=%d body=%s", rec.Code, rec.Body.String())
	}
	view := decodeJSON(t, rec)["subscription"].(map[string]any)
	if view["subscriptionId"] != "sub_2" || view["plan"] != "challenger" {
		t.Fatalf("admin view: %v", view)
	}
}
