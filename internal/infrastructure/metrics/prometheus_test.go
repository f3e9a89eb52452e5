package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counts(t *testing.T) {
	r := NewRecorder()

	r.ObserveTransition("tenant-a", "FLAG", "S0", "S1", 20*time.Millisecond)
	r.ObserveTransition("tenant-a", "FLAG", "S0", "S1", 10*time.Millisecond)
	r.ObserveRejection("tenant-a", "REFERRAL", "S1", "invalid_transition")
	r.ObserveSubjectMove("tenant-a", "def-1")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.transitions.WithLabelValues("tenant-a", "FLAG", "S0", "S1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rejections.WithLabelValues("tenant-a", "REFERRAL", "S1", "invalid_transition")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.subjectMoves.WithLabelValues("tenant-a", "def-1")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.latency))
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.ObserveRejection("tenant-a", "CLOSE", "S1", "locked_state")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "discharge_planner_case_rejections_total"))
	assert.True(t, strings.Contains(body, `kind="locked_state"`))
}
