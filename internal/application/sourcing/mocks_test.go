package sourcing

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sourcing/backend/internal/domain/sourcing"
)

// MockCredentialRepository is a mock implementation of sourcing.CredentialRepository
type MockCredentialRepository struct {
	mock.Mock
}

func (m *MockCredentialRepository) LoadLatest(ctx context.Context) (*sourcing.Credential, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sourcing.Credential), args.Error(1)
}

func (m *MockCredentialRepository) Save(ctx context.Context, cred *sourcing.Credential) error {
	args := m.Called(ctx, cred)
	return args.Error(0)
}

func (m *MockCredentialRepository) RevokeAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockTokenExchanger is a mock implementation of TokenExchanger
type MockTokenExchanger struct {
	mock.Mock
}

func (m *MockTokenExchanger) AuthorizeURL(state string) string {
	args := m.Called(state)
	return args.String(0)
}

func (m *MockTokenExchanger) Exchange(ctx context.Context, code string) (*sourcing.Credential, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sourcing.Credential), args.Error(1)
}

func (m *MockTokenExchanger) Refresh(ctx context.Context, refreshToken string) (*sourcing.Credential, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sourcing.Credential), args.Error(1)
}

// memoryCredentials is a goroutine-safe repository holding one credential
type memoryCredentials struct {
	mu   sync.Mutex
	cred *sourcing.Credential
}

func (r *memoryCredentials) LoadLatest(_ context.Context) (*sourcing.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cred == nil {
		return nil, sourcing.ErrNoCredential
	}
	c := *r.cred
	return &c, nil
}

func (r *memoryCredentials) Save(_ context.Context, cred *sourcing.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *cred
	r.cred = &c
	return nil
}

func (r *memoryCredentials) RevokeAll(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cred = nil
	return nil
}

// countingExchanger refreshes after an optional delay and counts calls
type countingExchanger struct {
	refreshes atomic.Int32
	delay     time.Duration
	now       func() time.Time
}

func (e *countingExchanger) AuthorizeURL(state string) string {
	return "https://auth.example.com/authorize?state=" + state
}

func (e *countingExchanger) Exchange(_ context.Context, code string) (*sourcing.Credential, error) {
	return sourcing.NewCredential("access-"+code, "refresh-"+code, "", time.Hour, e.now()), nil
}

func (e *countingExchanger) Refresh(_ context.Context, refreshToken string) (*sourcing.Credential, error) {
	e.refreshes.Add(1)
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	return sourcing.NewCredential("refreshed-access", refreshToken, "", time.Hour, e.now()), nil
}

// stubFeedFetcher returns canned listings per feed and records every call
type stubFeedFetcher struct {
	mu       sync.Mutex
	listings map[sourcing.FeedName][]sourcing.SourceListing
	calls    []feedCall
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
	errs     map[sourcing.FeedName]error
}

type feedCall struct {
	Feed  sourcing.FeedName
	Count int
	Page  int
}

func (f *stubFeedFetcher) FetchFeed(_ context.Context, feed sourcing.FeedName, count, page int) ([]sourcing.SourceListing, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.calls = append(f.calls, feedCall{Feed: feed, Count: count, Page: page})
	f.mu.Unlock()

	if err := f.errs[feed]; err != nil {
		return nil, err
	}
	src := f.listings[feed]
	out := make([]sourcing.SourceListing, len(src))
	copy(out, src)
	return out, nil
}

// stubExtractor returns a fixed result and counts calls
type stubExtractor struct {
	name  string
	raw   *sourcing.RawExtraction
	err   error
	calls atomic.Int32
}

func (e *stubExtractor) Name() string { return e.name }

func (e *stubExtractor) Extract(_ context.Context, _ sourcing.Target) (*sourcing.RawExtraction, error) {
	e.calls.Add(1)
	return e.raw, e.err
}

// stubProductFetcher returns a fixed listing and counts calls
type stubProductFetcher struct {
	listing *sourcing.SourceListing
	err     error
	calls   atomic.Int32
	lastID  string
}

func (f *stubProductFetcher) FetchProduct(_ context.Context, externalID string) (*sourcing.SourceListing, error) {
	f.calls.Add(1)
	f.lastID = externalID
	return f.listing, f.err
}

func listing(id, title string, saleMinor int64, rating float64, sales int64) sourcing.SourceListing {
	return sourcing.SourceListing{
		ExternalID:     id,
		Title:          title,
		MainImageURL:   "https://img.example.com/" + id + ".jpg",
		SalePriceMinor: saleMinor,
		DetailURL:      "https://www.aliexpress.com/item/" + id + ".html",
		Rating:         &rating,
		SalesVolume:    &sales,
	}
}
