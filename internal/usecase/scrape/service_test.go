package scrape

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"rent-radar/internal/domain"
)

type stubFetcher struct {
	content string
	err     error
	calls   int
}

func (s *stubFetcher) Fetch(context.Context, string) (string, error) {
	s.calls++
	return s.content, s.err
}

type stubParser struct {
	listings []domain.Listing
}

func (s *stubParser) Parse(string, string) []domain.Listing {
	return s.listings
}

type stubListingRepo struct {
	domain.ListingRepo
	inserted  []domain.Listing
	existing  map[string]bool
	pending   []domain.Listing
	insertErr error
}

func (s *stubListingRepo) InsertListing(l domain.Listing) (bool, error) {
	if s.insertErr != nil {
		return false, s.insertErr
	}
	if s.existing[l.PostID] {
		return false, nil
	}
	s.inserted = append(s.inserted, l)
	return true, nil
}

func (s *stubListingRepo) ListUnnotified(int) ([]domain.Listing, error) {
	return s.pending, nil
}

type stubAlerter struct {
	got  []domain.Listing
	sent int
}

func (s *stubAlerter) SendAlerts(_ context.Context, listings []domain.Listing) (int, error) {
	s.got = listings
	return s.sent, nil
}

func TestRunOnce(t *testing.T) {
	parsed := []domain.Listing{
		{PostID: "101", Title: "Sunny Studio", URL: "u1"},
		{PostID: "102", Title: "Room", URL: "u2"},
	}
	repo := &stubListingRepo{
		existing: map[string]bool{"102": true},
		pending:  parsed[:1],
	}
	alerter := &stubAlerter{sent: 1}
	svc := NewService(&stubFetcher{content: "<html/>"}, &stubParser{listings: parsed}, repo, alerter, "https://example.com", time.Minute, zerolog.Nop())

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(repo.inserted) != 1 || repo.inserted[0].PostID != "101" {
		t.Fatalf("вставка: получили %v", repo.inserted)
	}
	if len(alerter.got) != 1 || alerter.got[0].PostID != "101" {
		t.Fatalf("рассылка получила не очередь: %v", alerter.got)
	}
}

func TestRunOnceFetchFailureStillDispatches(t *testing.T) {
	repo := &stubListingRepo{pending: []domain.Listing{{PostID: "old1"}}}
	alerter := &stubAlerter{}
	svc := NewService(&stubFetcher{err: errors.New("сеть недоступна")}, &stubParser{}, repo, alerter, "https://example.com", time.Minute, zerolog.Nop())

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("ошибка загрузки не должна всплывать: %v", err)
	}
	if len(alerter.got) != 1 || alerter.got[0].PostID != "old1" {
		t.Fatalf("очередь должна рассылаться и без новой страницы: %v", alerter.got)
	}
}

func TestRunOnceRequiresTargetURL(t *testing.T) {
	svc := NewService(&stubFetcher{}, &stubParser{}, &stubListingRepo{}, &stubAlerter{}, "", time.Minute, zerolog.Nop())
	if err := svc.RunOnce(context.Background()); !errors.Is(err, ErrNoTargetURL) {
		t.Fatalf("ожидали ErrNoTargetURL, получили %v", err)
	}
}

func TestRunLoopStopsOnCancel(t *testing.T) {
	fetcher := &stubFetcher{content: "<html/>"}
	svc := NewService(fetcher, &stubParser{}, &stubListingRepo{}, &stubAlerter{}, "https://example.com", time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.RunLoop(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("неожиданная ошибка: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("цикл не остановился после отмены контекста")
	}
	if fetcher.calls == 0 {
		t.Fatal("цикл не выполнил ни одной итерации")
	}
}
