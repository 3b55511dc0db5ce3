package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mp3fbf/finance-analyzer/internal/common"
	"github.com/mp3fbf/finance-analyzer/internal/model"
)

// fakeClock advances instantly whenever the scheduler waits.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
	mu     sync.Mutex
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type mockSearcher struct {
	err      error
	queries  []string
	results  []model.SearchResult
	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
	mu       sync.Mutex
}

func (m *mockSearcher) Search(_ context.Context, query string, _ int) (model.SearchResponse, error) {
	m.calls.Add(1)
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		seen := m.maxSeen.Load()
		if n <= seen || m.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()

	if m.err != nil {
		return model.SearchResponse{}, m.err
	}
	return model.SearchResponse{Query: query, Results: m.results}, nil
}

func TestSchedulerSpacing(t *testing.T) {
	clock := newFakeClock()
	inner := &mockSearcher{}
	s := NewScheduler(inner, 1100*time.Millisecond, clock)
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	for _, q := range []string{"a", "b", "c"} {
		_, err := s.Search(ctx, q, 3)
		require.NoError(t, err)
	}

	sleeps := clock.Sleeps()
	require.Len(t, sleeps, 2)
	for _, d := range sleeps {
		assert.InDelta(t, float64(1100*time.Millisecond), float64(d), float64(time.Millisecond))
	}
	assert.Equal(t, []string{"a", "b", "c"}, inner.queries)
}

func TestSchedulerNoWaitAfterIdle(t *testing.T) {
	clock := newFakeClock()
	s := NewScheduler(&mockSearcher{}, 1100*time.Millisecond, clock)
	defer func() { _ = s.Close() }()

	_, err := s.Search(context.Background(), "a", 3)
	require.NoError(t, err)
	clock.Advance(2 * time.Second)
	_, err = s.Search(context.Background(), "b", 3)
	require.NoError(t, err)

	assert.Empty(t, clock.Sleeps())
}

func TestSchedulerSingleInFlight(t *testing.T) {
	inner := &mockSearcher{delay: 5 * time.Millisecond}
	s := NewScheduler(inner, time.Millisecond, newFakeClock())
	defer func() { _ = s.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Search(context.Background(), "q", 3)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(8), inner.calls.Load())
	assert.Equal(t, int32(1), inner.maxSeen.Load())
}

func TestSchedulerPreservesQueueOrder(t *testing.T) {
	for round := 0; round < 5; round++ {
		// The first search holds the worker while the rest queue up behind it.
		inner := &mockSearcher{delay: 40 * time.Millisecond}
		s := NewScheduler(inner, time.Millisecond, newFakeClock())

		want := make([]string, 8)
		var wg sync.WaitGroup
		for i := range want {
			want[i] = fmt.Sprintf("query-%d", i)
			wg.Add(1)
			go func(q string) {
				defer wg.Done()
				_, err := s.Search(context.Background(), q, 3)
				assert.NoError(t, err)
			}(want[i])
			time.Sleep(3 * time.Millisecond)
		}
		wg.Wait()
		require.NoError(t, s.Close())

		inner.mu.Lock()
		got := append([]string(nil), inner.queries...)
		inner.mu.Unlock()
		assert.Equal(t, want, got, "round %d", round)
	}
}

func TestSchedulerCanceledContext(t *testing.T) {
	inner := &mockSearcher{}
	s := NewScheduler(inner, time.Second, newFakeClock())
	defer func() { _ = s.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Search(ctx, "q", 3)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), inner.calls.Load())
}

func TestSchedulerClosed(t *testing.T) {
	s := NewScheduler(&mockSearcher{}, time.Second, newFakeClock())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Search(context.Background(), "q", 3)
	assert.ErrorIs(t, err, common.ErrSearchUnavailable)
}

func TestCachedSearcher(t *testing.T) {
	inner := &mockSearcher{results: []model.SearchResult{{Title: "Uber", URL: "https://uber.com"}}}
	cache := NewMemoryCache(time.Hour)
	defer func() { _ = cache.Close() }()
	c := NewCached(inner, cache, nil)

	ctx := context.Background()
	first, err := c.Search(ctx, "Uber  BR", 3)
	require.NoError(t, err)
	second, err := c.Search(ctx, "uber br", 3)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, 1, cache.Len())
}

func TestCachedSearcherSkipsEmpty(t *testing.T) {
	inner := &mockSearcher{}
	cache := NewMemoryCache(time.Hour)
	defer func() { _ = cache.Close() }()
	c := NewCached(inner, cache, nil)

	for i := 0; i < 2; i++ {
		_, err := c.Search(context.Background(), "nothing", 3)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), inner.calls.Load())
	assert.Equal(t, 0, cache.Len())
}

func TestSerpAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ifood pagamento", r.URL.Query().Get("q"))
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		assert.Equal(t, "2", r.URL.Query().Get("num"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"organic_results":[
			{"title":"iFood","link":"https://ifood.com.br","snippet":"Delivery de comida"},
			{"title":"no link","link":"","snippet":"skip"},
			{"title":"iFood Wiki","link":"https://pt.wikipedia.org/wiki/IFood","snippet":"Empresa brasileira"},
			{"title":"extra","link":"https://example.com","snippet":"over limit"}
		]}`))
	}))
	defer server.Close()

	s := NewSerpAPI("secret")
	s.baseURL = server.URL

	resp, err := s.Search(context.Background(), "ifood pagamento", 2)
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "https://ifood.com.br", resp.Results[0].URL)
	assert.Equal(t, "Delivery de comida | Empresa brasileira", resp.Summary)
}

func TestSerpAPIStatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusBadGateway, true},
		{"unauthorized", http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			s := NewSerpAPI("k")
			s.baseURL = server.URL
			_, err := s.Search(context.Background(), "q", 3)
			require.Error(t, err)
			assert.Equal(t, tt.retryable, common.IsRetryable(err))
		})
	}
}

const duckDuckGoPage = `<html><body>
<div class="result results_links result--ad">
  <a class="result__a" href="https://ads.example.com">Ad</a>
</div>
<div class="result results_links">
  <h2><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.uber.com%2Fbr&amp;rut=x">Uber Brasil</a></h2>
  <a class="result__snippet">Peça uma   viagem
  pelo app.</a>
</div>
<div class="result results_links">
  <h2><a class="result__a" href="https://www.ubereats.com/br">Uber Eats</a></h2>
  <a class="result__snippet">Delivery de comida</a>
</div>
</body></html>`

func TestDuckDuckGo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "uber", r.URL.Query().Get("q"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(duckDuckGoPage))
	}))
	defer server.Close()

	d := NewDuckDuckGo()
	d.baseURL = server.URL

	resp, err := d.Search(context.Background(), "uber", 5)
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, model.SearchResult{
		Title:   "Uber Brasil",
		URL:     "https://www.uber.com/br",
		Snippet: "Peça uma viagem pelo app.",
	}, resp.Results[0])
	assert.Equal(t, "https://www.ubereats.com/br", resp.Results[1].URL)

	resp, err = d.Search(context.Background(), "uber", 1)
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	stack, err := New(ctx, Config{})
	require.NoError(t, err)
	resp, err := stack.Search(ctx, "anything", 3)
	require.NoError(t, err)
	assert.True(t, resp.Empty())
	require.NoError(t, stack.Close())

	_, err = New(ctx, Config{Provider: "serpapi"})
	assert.ErrorIs(t, err, common.ErrMissingConfig)

	_, err = New(ctx, Config{Provider: "bing"})
	assert.ErrorIs(t, err, common.ErrInvalidConfig)

	_, err = New(ctx, Config{Provider: "duckduckgo", Cache: "disk"})
	assert.ErrorIs(t, err, common.ErrInvalidConfig)

	_, err = New(ctx, Config{Provider: "duckduckgo", Cache: "redis"})
	assert.ErrorIs(t, err, common.ErrMissingConfig)

	stack, err = New(ctx, Config{Provider: "duckduckgo", Cache: "memory"})
	require.NoError(t, err)
	_, ok := stack.Searcher.(*Cached)
	assert.True(t, ok)
	require.NoError(t, stack.Close())
}
