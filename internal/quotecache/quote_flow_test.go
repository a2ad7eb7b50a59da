package quotecache_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etfwatch/internal/httpx"
	"etfwatch/internal/nse"
	"etfwatch/internal/quotecache"
)

// Exercises the real session manager, upstream client and cache together
// against one fake exchange site: the priming page hands out the cookie
// pair, the quote endpoint demands it, and a repeat read must be served
// from cache.
func TestQuoteFlow_PrimeFetchThenCached(t *testing.T) {
	t.Parallel()

	var primeCalls, quoteCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/get-quotes/equity", func(w http.ResponseWriter, r *http.Request) {
		primeCalls.Add(1)
		http.SetCookie(w, &http.Cookie{Name: "nsit", Value: "session-token"})
		http.SetCookie(w, &http.Cookie{Name: "nseappid", Value: "app-token"})
		w.Write([]byte("<html>quote page</html>"))
	})
	mux.HandleFunc("/api/quote-equity", func(w http.ResponseWriter, r *http.Request) {
		quoteCalls.Add(1)
		nsit, err := r.Cookie("nsit")
		if err != nil || nsit.Value != "session-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if _, err := r.Cookie("nseappid"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "NIFTYBEES", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"priceInfo":{"lastPrice":245.30,"iNavValue":"245.28"}}`))
	})
	upstream := httptest.NewServer(mux)
	defer upstream.Close()

	hc := httpx.NewBrowser(5 * time.Second)
	sessions := nse.NewSessionManager(nse.SessionConfig{
		BaseURL:         upstream.URL,
		BootstrapSymbol: "NIFTYBEES",
	}, hc, zerolog.Nop())
	client := nse.NewClient(nse.ClientConfig{BaseURL: upstream.URL}, hc)
	cache := quotecache.New(quotecache.Config{TTL: time.Minute}, sessions, client, zerolog.Nop())

	res := cache.Get(context.Background(), "NIFTYBEES")
	require.NoError(t, res.Err)
	require.NotNil(t, res.LastPrice)
	require.NotNil(t, res.INavValue)
	assert.InDelta(t, 245.30, *res.LastPrice, 0.0001)
	assert.InDelta(t, 245.28, *res.INavValue, 0.0001)
	assert.Equal(t, int32(1), primeCalls.Load())
	assert.Equal(t, int32(1), quoteCalls.Load())

	// Second read within the TTL must not touch the upstream at all.
	again := cache.Get(context.Background(), "NIFTYBEES")
	require.NoError(t, again.Err)
	assert.Equal(t, res.FetchedAt, again.FetchedAt)
	assert.Equal(t, int32(1), primeCalls.Load())
	assert.Equal(t, int32(1), quoteCalls.Load())
}
