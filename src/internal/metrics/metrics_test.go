// FILE: muxd/src/internal/metrics/metrics_test.go
package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordEvent(t *testing.T) {
	before := testutil.ToFloat64(eventsDispatched.WithLabelValues("tcp://127.0.0.1:9000", "receive"))
	RecordEvent("tcp://127.0.0.1:9000", "receive")
	RecordEvent("tcp://127.0.0.1:9000", "receive")
	after := testutil.ToFloat64(eventsDispatched.WithLabelValues("tcp://127.0.0.1:9000", "receive"))
	assert.Equal(t, before+2, after)
}

func TestRecordSignal(t *testing.T) {
	before := testutil.ToFloat64(signalOutcomes.WithLabelValues("stop", "absent"))
	RecordSignal("stop", "absent")
	assert.Equal(t, before+1, testutil.ToFloat64(signalOutcomes.WithLabelValues("stop", "absent")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	RecordEngineStart()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "muxd_engine_starts_total"))
}
