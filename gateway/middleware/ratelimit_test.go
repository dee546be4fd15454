package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	nativecommon "pointsvault/native/common"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"partner": {RatePerSecond: 1, Burst: 1},
	}, nil)
	handler := limiter.Middleware("partner")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/partners/x", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", res.Code)
	}
}

func TestRateLimiterSeparatesRoutesAndSubjects(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"partner": {RatePerSecond: 1, Burst: 1},
		"stake":   {RatePerSecond: 1, Burst: 1},
	}, nil)
	partnerHandler := limiter.Middleware("partner")(okHandler())
	stakeHandler := limiter.Middleware("stake")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/partners/x/mint", nil)
	res := httptest.NewRecorder()
	partnerHandler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected partner request to succeed, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	stakeHandler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/stakes", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected stake request to use its own bucket, got %d", res.Code)
	}

	authed := req.WithContext(WithAuthority(req.Context(), &nativecommon.Authority{Subject: [20]byte{1}}))
	res = httptest.NewRecorder()
	partnerHandler.ServeHTTP(res, authed)
	if res.Code != http.StatusOK {
		t.Fatalf("expected authenticated subject to use its own bucket, got %d", res.Code)
	}
}

func TestRateLimiterEvictsIdleVisitors(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{"stake": {RatePerSecond: 1, Burst: 1}}, nil)
	now := time.Unix(1_700_000_000, 0)
	limiter.clockNow = func() time.Time { return now }

	limiter.obtainLimiter("a", RateLimit{RatePerSecond: 1, Burst: 1})
	now = now.Add(10 * time.Minute)
	limiter.obtainLimiter("b", RateLimit{RatePerSecond: 1, Burst: 1})

	if _, ok := limiter.visitors["a"]; ok {
		t.Fatalf("expected idle visitor to be evicted")
	}
}

func TestUnlimitedRoutePassesThrough(t *testing.T) {
	limiter := NewRateLimiter(nil, nil)
	handler := limiter.Middleware("views")(okHandler())
	for i := 0; i < 5; i++ {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/balances/x", nil))
		if res.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, res.Code)
		}
	}
}
