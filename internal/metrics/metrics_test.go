package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsRequests(t *testing.T) {
	m := New()
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPost} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(method, "/", nil))
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("200", http.MethodGet)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("400", http.MethodPost)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inflight))
}

func TestGatewayCounters(t *testing.T) {
	m := New()

	m.ObserveOperation("upload", "success")
	m.ObserveOperation("upload", "quota_exceeded")
	m.ObserveUpload(5)
	m.ObserveUpload(10)
	m.ObserveQuotaRejection()
	m.ObserveObjectStore("upload file", 200, 15*time.Millisecond)
	m.ObserveObjectStore("create bucket", 409, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("upload", "success")))
	assert.Equal(t, 15.0, testutil.ToFloat64(m.uploadBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.quotaRejections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.objectStoreCalls.WithLabelValues("create bucket", "409")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveQuotaRejection()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "alexander_gateway_quota_rejections_total 1"))
}
