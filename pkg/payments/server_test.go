package payments

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechnost/vechnost/pkg/subscription"
)

type fakeSubscriptions struct {
	activated []int64
	cancelled []int64
}

func (f *fakeSubscriptions) Activate(ctx context.Context, userID int64, tier string, period time.Duration, paymentID string) *subscription.UserSubscription {
	f.activated = append(f.activated, userID)
	return &subscription.UserSubscription{UserID: userID, Tier: tier, ExpiresAt: time.Now().Add(period)}
}

func (f *fakeSubscriptions) Cancel(ctx context.Context, userID int64) {
	f.cancelled = append(f.cancelled, userID)
}

func setupServer(t *testing.T) (*Server, *fakeSubscriptions) {
	t.Helper()
	ledger, err := OpenLedger(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	subs := &fakeSubscriptions{}
	srv, err := NewServer(ServerOptions{Secret: "test-secret"}, ledger, subs, zerolog.Nop())
	require.NoError(t, err)
	return srv, subs
}

func postEvent(t *testing.T, srv *Server, body []byte, sign bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
	if sign {
		req.Header.Set(SignatureHeader, computeSignature(body, srv.options.Secret))
	}
	rec := httptest.NewRecorder()
	srv.handleEvent(rec, req)
	return rec
}

func TestServer_NewSubscriptionActivatesPremium(t *testing.T) {
	srv, subs := setupServer(t)
	body := []byte(`{"name": "new_subscription", "payload": {"event_id": "evt-1", "telegram_user_id": 42}}`)

	rec := postEvent(t, srv, body, true)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{42}, subs.activated)
}

func TestServer_CancelledSubscription(t *testing.T) {
	srv, subs := setupServer(t)
	body := []byte(`{"name": "cancelled_subscription", "payload": {"event_id": "evt-1", "telegram_user_id": 42}}`)

	rec := postEvent(t, srv, body, true)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{42}, subs.cancelled)
	assert.Empty(t, subs.activated)
}

func TestServer_MissingSignatureRejected(t *testing.T) {
	srv, subs := setupServer(t)
	body := []byte(`{"name": "new_subscription", "payload": {"telegram_user_id": 42}}`)

	rec := postEvent(t, srv, body, false)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, subs.activated)
}

func TestServer_BadSignatureRejected(t *testing.T) {
	srv, subs := setupServer(t)
	body := []byte(`{"name": "new_subscription", "payload": {"telegram_user_id": 42}}`)

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, "deadbeef")
	rec := httptest.NewRecorder()
	srv.handleEvent(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, subs.activated)
}

func TestServer_MalformedPayloadRejected(t *testing.T) {
	srv, subs := setupServer(t)
	body := []byte(`{"name": "new_subscription"}`)

	rec := postEvent(t, srv, body, true)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, subs.activated)
}

func TestServer_DuplicateDeliveryAcknowledgedOnce(t *testing.T) {
	srv, subs := setupServer(t)
	body := []byte(`{"name": "new_subscription", "payload": {"event_id": "evt-1", "telegram_user_id": 42}}`)

	first := postEvent(t, srv, body, true)
	second := postEvent(t, srv, body, true)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	// The subscription was only activated once.
	assert.Equal(t, []int64{42}, subs.activated)
}

func TestServer_UnknownEventAcknowledged(t *testing.T) {
	srv, subs := setupServer(t)
	body := []byte(`{"name": "refund_issued", "payload": {"event_id": "evt-1", "telegram_user_id": 42}}`)

	rec := postEvent(t, srv, body, true)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, subs.activated)
	assert.Empty(t, subs.cancelled)
}

func TestServer_GetNotAllowed(t *testing.T) {
	srv, _ := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/payments/webhook", nil)
	rec := httptest.NewRecorder()
	srv.handleEvent(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestNewServer_RequiresSecret(t *testing.T) {
	ledger, err := OpenLedger(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer ledger.Close()

	_, err = NewServer(ServerOptions{}, ledger, &fakeSubscriptions{}, zerolog.Nop())
	assert.Error(t, err)
}
