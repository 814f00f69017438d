package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newThrottledRouter(t *testing.T, limiter *Limiter, policy Policy) *chi.Mux {
	t.Helper()

	ok := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}

	r := chi.NewRouter()

	mw, err := limiter.Limit(http.MethodGet, "/posts/{id}", policy)
	require.NoError(t, err)
	r.Method(http.MethodGet, "/posts/{id}", mw(http.HandlerFunc(ok)))

	return r
}

func doRequest(router http.Handler, remoteAddr, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) (code, message string) {
	t.Helper()

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code, body.Error.Message
}

func TestMiddlewareRejectsWith429(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	router := newThrottledRouter(t, limiter, PerWindow(2, 5*time.Second))

	for i := 0; i < 2; i++ {
		rec := doRequest(router, "1.2.3.4:5555", "/posts/1")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doRequest(router, "1.2.3.4:5555", "/posts/1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "5", rec.Header().Get("Retry-After"))

	code, message := decodeErrorBody(t, rec)
	require.Equal(t, "RATE_LIMITED", code)
	require.Equal(t, "Too Many Requests. Retry after 5 seconds.", message)
}

func TestMiddlewareBudgetScopedToRoutePattern(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	router := newThrottledRouter(t, limiter, PerWindow(2, time.Minute))

	// Different resolved paths, same pattern: one shared budget.
	rec := doRequest(router, "1.2.3.4:5555", "/posts/1")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(router, "1.2.3.4:5555", "/posts/2")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, "1.2.3.4:5555", "/posts/3")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestMiddlewareSeparatesClients(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	router := newThrottledRouter(t, limiter, PerWindow(1, time.Minute))

	rec := doRequest(router, "1.2.3.4:5555", "/posts/1")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(router, "1.2.3.4:5555", "/posts/1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = doRequest(router, "5.6.7.8:5555", "/posts/1")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareFailClosedReturns503(t *testing.T) {
	limiter, err := New(failingCounter{}, Options{})
	require.NoError(t, err)
	router := newThrottledRouter(t, limiter, PerWindow(5, time.Minute))

	rec := doRequest(router, "1.2.3.4:5555", "/posts/1")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	code, _ := decodeErrorBody(t, rec)
	require.Equal(t, "RATE_LIMIT_UNAVAILABLE", code)
}

func TestMiddlewareFailOpenAdmits(t *testing.T) {
	limiter, err := New(failingCounter{}, Options{FailOpen: true})
	require.NoError(t, err)
	router := newThrottledRouter(t, limiter, PerWindow(1, time.Minute))

	for i := 0; i < 3; i++ {
		rec := doRequest(router, "1.2.3.4:5555", "/posts/1")
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestMiddlewareDuplicateRegistration(t *testing.T) {
	limiter, _ := newTestLimiter(t)

	_, err := limiter.Limit(http.MethodGet, "/posts", PerWindow(1, time.Minute))
	require.NoError(t, err)
	_, err = limiter.Limit(http.MethodGet, "/posts", PerWindow(9, time.Minute))
	require.ErrorIs(t, err, ErrPolicyExists)
}

func TestDefaultKeyFunc(t *testing.T) {
	keyFn := DefaultKeyFunc()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:43210"
	require.Equal(t, "10.0.0.1", keyFn(req))

	req.RemoteAddr = "10.0.0.2"
	require.Equal(t, "10.0.0.2", keyFn(req))

	req.RemoteAddr = ""
	require.Equal(t, "unknown", keyFn(req))
}
