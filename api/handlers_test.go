package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"offerflow/actionlink"
	"offerflow/notify"
	"offerflow/offer"
	"offerflow/sweep"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testNow = time.Date(2026, time.June, 1, 8, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, offers ...offer.Offer) (*gin.Engine, *offer.MemoryStore, *actionlink.Issuer) {
	t.Helper()

	store := offer.NewMemoryStore()
	for _, o := range offers {
		store.Put(o)
	}

	log := zerolog.Nop()
	notifier := notify.NewLogNotifier(log)
	svc := offer.NewService(store, notifier, log)
	runner := sweep.NewRunner(store, notifier, offer.DefaultRules(), log)

	issuer, err := actionlink.NewIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}

	router := NewRouter(NewHandlers(svc, runner, issuer, log), log)
	return router, store, issuer
}

func seedOffer(id string, status offer.Status, sentAt time.Time) offer.Offer {
	return offer.Offer{
		ID:                id,
		SentAt:            sentAt,
		Status:            status,
		AssignedOwnerID:   "owner-1",
		CustomerContactID: "customer-1",
	}
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCustomerAction_Accept(t *testing.T) {
	router, store, _ := newTestServer(t, seedOffer("offer-1", offer.StatusPending, testNow.Add(-48*time.Hour)))

	w := doJSON(t, router, http.MethodPost, "/api/v1/offers/offer-1/action", `{"action":"accept","actor_id":"customer-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Status  string `json:"status"`
		Version int64  `json:"version"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "accepted" || resp.Version != 2 {
		t.Errorf("unexpected response: %+v", resp)
	}

	o, _ := store.Get(context.Background(), "offer-1")
	if o.Status != offer.StatusAccepted {
		t.Errorf("expected accepted, got %s", o.Status)
	}
}

func TestCustomerAction_AlreadyResolvedCode(t *testing.T) {
	router, _, _ := newTestServer(t, seedOffer("offer-1", offer.StatusAccepted, testNow.Add(-48*time.Hour)))

	w := doJSON(t, router, http.MethodPost, "/api/v1/offers/offer-1/action", `{"action":"reject"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "already_resolved") {
		t.Errorf("expected already_resolved code, got %s", w.Body.String())
	}
}

func TestCustomerAction_VersionConflictCode(t *testing.T) {
	router, _, _ := newTestServer(t, seedOffer("offer-1", offer.StatusPending, testNow.Add(-48*time.Hour)))

	w := doJSON(t, router, http.MethodPost, "/api/v1/offers/offer-1/action", `{"action":"accept","expected_version":99}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "version_conflict") {
		t.Errorf("expected version_conflict code, got %s", w.Body.String())
	}
}

func TestCustomerAction_UnknownOffer(t *testing.T) {
	router, _, _ := newTestServer(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/offers/missing/action", `{"action":"accept"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestCustomerAction_BadPayload(t *testing.T) {
	router, _, _ := newTestServer(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/offers/offer-1/action", `{"action":"maybe"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestLinkAction(t *testing.T) {
	router, store, issuer := newTestServer(t, seedOffer("offer-1", offer.StatusFollowedUp, testNow.Add(-10*24*time.Hour)))

	token, err := issuer.Issue("offer-1", "customer-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	w := doJSON(t, router, http.MethodGet, "/api/v1/offer-actions?action=accept&token="+token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	o, _ := store.Get(context.Background(), "offer-1")
	if o.Status != offer.StatusAccepted {
		t.Errorf("expected accepted via link, got %s", o.Status)
	}
}

func TestLinkAction_BadToken(t *testing.T) {
	router, _, _ := newTestServer(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/offer-actions?action=accept&token=garbage", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestManualOverride_RequiresActor(t *testing.T) {
	router, _, _ := newTestServer(t, seedOffer("offer-1", offer.StatusPending, testNow.Add(-48*time.Hour)))

	w := doJSON(t, router, http.MethodPost, "/api/v1/offers/offer-1/override", `{"to_status":"escalated"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without actor header, got %d", w.Code)
	}
}

func TestManualOverride(t *testing.T) {
	router, store, _ := newTestServer(t, seedOffer("offer-1", offer.StatusPending, testNow.Add(-48*time.Hour)))

	reqBody := strings.NewReader(`{"to_status":"escalated","note":"vip customer"}`)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/offers/offer-1/override", reqBody)
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("X-Actor-ID", "operator-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	o, _ := store.Get(context.Background(), "offer-1")
	if o.Status != offer.StatusEscalated {
		t.Errorf("expected escalated, got %s", o.Status)
	}
}

func TestManualOverride_IllegalMove(t *testing.T) {
	router, _, _ := newTestServer(t, seedOffer("offer-1", offer.StatusEscalated, testNow.Add(-48*time.Hour)))

	reqBody := strings.NewReader(`{"to_status":"followedUp"}`)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/offers/offer-1/override", reqBody)
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("X-Actor-ID", "operator-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
}

func TestTriggerSweep_WithExplicitNow(t *testing.T) {
	router, store, _ := newTestServer(t, seedOffer("offer-1", offer.StatusPending, testNow.Add(-35*24*time.Hour)))

	w := doJSON(t, router, http.MethodPost, "/internal/sweep", `{"now":"`+testNow.Format(time.RFC3339)+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	o, _ := store.Get(context.Background(), "offer-1")
	if o.Status != offer.StatusExpired {
		t.Errorf("expected expired after catch-up sweep, got %s", o.Status)
	}

	var report sweep.Report
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.OffersExamined != 1 {
		t.Errorf("expected one offer examined, got %d", report.OffersExamined)
	}
}

func TestHistory(t *testing.T) {
	router, _, _ := newTestServer(t, seedOffer("offer-1", offer.StatusPending, testNow.Add(-35*24*time.Hour)))

	if w := doJSON(t, router, http.MethodPost, "/internal/sweep", `{"now":"`+testNow.Format(time.RFC3339)+`"}`); w.Code != http.StatusOK {
		t.Fatalf("sweep failed: %d", w.Code)
	}

	w := doJSON(t, router, http.MethodGet, "/api/v1/offers/offer-1/history", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Entries []struct {
			ToStatus string `json:"to_status"`
			Trigger  string `json:"trigger"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Entries) != 3 {
		t.Fatalf("expected 3 history entries, got %d", len(resp.Entries))
	}
	if resp.Entries[2].ToStatus != "expired" || resp.Entries[2].Trigger != "scheduledSweep" {
		t.Errorf("unexpected final entry: %+v", resp.Entries[2])
	}
}

func TestHealth(t *testing.T) {
	router, _, _ := newTestServer(t)

	w := doJSON(t, router, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
