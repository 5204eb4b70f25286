package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"rent-radar/internal/domain"
	"rent-radar/internal/usecase/referrals"
	"rent-radar/internal/usecase/subscribers"
)

type stubListingRepo struct {
	domain.ListingRepo
	recent     []domain.Listing
	filtered   []domain.Listing
	lastFilter *domain.ListingFilter
	count      int
	hoods      []string
}

func (s *stubListingRepo) ListRecent(int) ([]domain.Listing, error) { return s.recent, nil }

func (s *stubListingRepo) ListFiltered(f domain.ListingFilter) ([]domain.Listing, error) {
	s.lastFilter = &f
	return s.filtered, nil
}

func (s *stubListingRepo) CountListings() (int, error) { return s.count, nil }

func (s *stubListingRepo) ListNeighborhoods(int) ([]string, error) { return s.hoods, nil }

type stubSubscriberRepo struct {
	domain.SubscriberRepo
	subs    map[string]domain.Subscriber
	count   int
	upserts int
	codes   map[int64]string
	tokens  map[string]string
}

func (s *stubSubscriberRepo) UpsertSubscriber(params domain.UpsertSubscriberParams) (bool, error) {
	s.upserts++
	if params.Email != "" {
		if _, ok := s.subs[params.Email]; !ok {
			s.subs[params.Email] = domain.Subscriber{ID: int64(len(s.subs) + 1), Email: params.Email}
			return true, nil
		}
	}
	return false, nil
}

func (s *stubSubscriberRepo) CountSubscribers() (int, error) { return s.count, nil }

func (s *stubSubscriberRepo) GetSubscriberByEmail(email string) (domain.Subscriber, error) {
	sub, ok := s.subs[email]
	if !ok {
		return domain.Subscriber{}, domain.ErrSubscriberNotFound
	}
	return sub, nil
}

func (s *stubSubscriberRepo) EnsureReferralCode(id int64) (string, error) {
	if code, ok := s.codes[id]; ok {
		return code, nil
	}
	s.codes[id] = "AB12CD34"
	return "AB12CD34", nil
}

func (s *stubSubscriberRepo) SetVerificationToken(email, token string) (bool, error) {
	if _, ok := s.subs[email]; !ok {
		return false, nil
	}
	s.tokens[email] = token
	return true, nil
}

func (s *stubSubscriberRepo) VerifyEmail(token string) (bool, error) {
	for email, t := range s.tokens {
		if t == token {
			delete(s.tokens, email)
			return true, nil
		}
	}
	return false, nil
}

type stubReferralRepo struct {
	domain.ReferralRepo
	recorded int
}

func (s *stubReferralRepo) RecordReferral(string, string, string) (bool, error) {
	s.recorded++
	return true, nil
}

func (s *stubReferralRepo) PendingReferralByReferee(string) (domain.Referral, bool, error) {
	return domain.Referral{}, false, nil
}

func newTestRouter(listings *stubListingRepo, subsRepo *stubSubscriberRepo) chi.Router {
	refs := referrals.NewService(&stubReferralRepo{}, subsRepo, zerolog.Nop())
	subsSvc := subscribers.NewService(subsRepo, refs, zerolog.Nop())
	h := NewHandler(listings, subsRepo, subsSvc, refs, nil, "test-key", zerolog.Nop())

	r := chi.NewRouter()
	h.Register(r)
	return r
}

func newStubSubscriberRepo() *stubSubscriberRepo {
	return &stubSubscriberRepo{
		subs:   make(map[string]domain.Subscriber),
		codes:  make(map[int64]string),
		tokens: make(map[string]string),
	}
}

func TestGetListingsRecent(t *testing.T) {
	listings := &stubListingRepo{recent: []domain.Listing{
		{PostID: "101", Title: "Sunny Studio", URL: "u1", Price: "$1,800", CreatedAt: time.Now()},
	}}
	r := newTestRouter(listings, newStubSubscriberRepo())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/listings", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("статус: %d", rec.Code)
	}
	var body struct {
		Listings []listingView `json:"listings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("разбор ответа: %v", err)
	}
	if len(body.Listings) != 1 || body.Listings[0].PostID != "101" {
		t.Fatalf("объявления: %v", body.Listings)
	}
}

func TestGetListingsFiltered(t *testing.T) {
	listings := &stubListingRepo{}
	r := newTestRouter(listings, newStubSubscriberRepo())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/listings?min_price=1000&neighborhood=Mission&q=studio", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("статус: %d", rec.Code)
	}
	f := listings.lastFilter
	if f == nil {
		t.Fatal("фильтр не применён")
	}
	if f.MinPrice == nil || *f.MinPrice != 1000 {
		t.Fatalf("min_price: %v", f.MinPrice)
	}
	if f.Neighborhood != "Mission" || f.Keyword != "studio" {
		t.Fatalf("фильтр: %+v", f)
	}
}

func TestGetStats(t *testing.T) {
	listings := &stubListingRepo{count: 42, hoods: []string{"Mission", "SOMA"}}
	subsRepo := newStubSubscriberRepo()
	subsRepo.count = 7
	r := newTestRouter(listings, subsRepo)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("статус: %d", rec.Code)
	}
	var stats statsView
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("разбор ответа: %v", err)
	}
	if stats.Listings != 42 || stats.Subscribers != 7 || stats.Neighborhoods != 2 {
		t.Fatalf("статистика: %+v", stats)
	}
}

func TestPostSubscriptionRequiresAdminKey(t *testing.T) {
	r := newTestRouter(&stubListingRepo{}, newStubSubscriberRepo())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", strings.NewReader(`{"phone":"+15555550123"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("без ключа ожидали 401, получили %d", rec.Code)
	}
}

func TestPostSubscriptionFlow(t *testing.T) {
	subsRepo := newStubSubscriberRepo()
	r := newTestRouter(&stubListingRepo{}, subsRepo)

	payload := `{"tier":"ESSENTIAL","channels":"sms,email","phone":"+15555550123","email":"user@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", strings.NewReader(payload))
	req.Header.Set("X-Admin-Key", "test-key")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("статус: %d, тело: %s", rec.Code, rec.Body.String())
	}
	var resp subscriptionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("разбор ответа: %v", err)
	}
	if !resp.Created {
		t.Fatal("ожидали признак создания")
	}
	if resp.ReferralCode != "AB12CD34" {
		t.Fatalf("реферальный код: %q", resp.ReferralCode)
	}
	if resp.VerificationToken == "" {
		t.Fatal("ожидали токен подтверждения")
	}

	// токен из ответа подтверждает почту
	verifyRec := httptest.NewRecorder()
	r.ServeHTTP(verifyRec, httptest.NewRequest(http.MethodGet, "/api/v1/verify?token="+resp.VerificationToken, nil))
	if verifyRec.Code != http.StatusOK {
		t.Fatalf("подтверждение: статус %d", verifyRec.Code)
	}
}

func TestPostSubscriptionNoContact(t *testing.T) {
	r := newTestRouter(&stubListingRepo{}, newStubSubscriberRepo())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", strings.NewReader(`{"tier":"FREE"}`))
	req.Header.Set("X-Admin-Key", "test-key")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("без контактов ожидали 400, получили %d", rec.Code)
	}
}

func TestVerifyUnknownToken(t *testing.T) {
	r := newTestRouter(&stubListingRepo{}, newStubSubscriberRepo())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/verify?token=nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("неизвестный токен: статус %d", rec.Code)
	}
}
