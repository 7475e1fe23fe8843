package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveBuild(t *testing.T) {
	before := testutil.ToFloat64(BuildRuns.WithLabelValues("success"))
	insBefore := testutil.ToFloat64(RowsWritten.WithLabelValues("inserted"))

	ObserveBuild(true, 2*time.Second, 10, 3)

	assert.Equal(t, before+1, testutil.ToFloat64(BuildRuns.WithLabelValues("success")))
	assert.Equal(t, insBefore+10, testutil.ToFloat64(RowsWritten.WithLabelValues("inserted")))
}

func TestObserveTraining(t *testing.T) {
	before := testutil.ToFloat64(TrainingRuns.WithLabelValues("failed"))
	ObserveTraining(false)
	assert.Equal(t, before+1, testutil.ToFloat64(TrainingRuns.WithLabelValues("failed")))
}

func TestHandler(t *testing.T) {
	ForecastsPublished.Add(1)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fleetcast_forecasts_published_total")
}
