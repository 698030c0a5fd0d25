package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/api/v1/units", "/api/v1/units"},
		{"/api/v1/units/rewarded/reward_coins", "/api/v1/units/{format}/{name}"},
		{"/api/v1/units/splash/splash_launch/load", "/api/v1/units/{format}/{name}/load"},
		{"/api/v1/units/app_open/resume/show", "/api/v1/units/{format}/{name}/show"},
		{"/api/v1/natives/native_feed/bind", "/api/v1/natives/{name}"},
		{"/api/v1/events/recent", "/api/v1/events"},
		{"/favicon.ico", "/other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizePath(tt.path))
		})
	}
}

func TestRecordPaidImpression(t *testing.T) {
	before := testutil.ToFloat64(AdRevenueTotal.WithLabelValues("native", "EUR"))

	RecordPaidImpression("native", "EUR", decimal.New(2500, -6))

	assert.InDelta(t, before+0.0025, testutil.ToFloat64(AdRevenueTotal.WithLabelValues("native", "EUR")), 1e-9)
}

func TestSetPresenting(t *testing.T) {
	SetPresenting("splash", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(AdsPresenting.WithLabelValues("splash")))

	SetPresenting("splash", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(AdsPresenting.WithLabelValues("splash")))
}

func TestRecordEventWrite(t *testing.T) {
	before := testutil.ToFloat64(EventWriteErrorsTotal.WithLabelValues("metrics_test"))

	RecordEventWrite("metrics_test", time.Millisecond, nil)
	RecordEventWrite("metrics_test", time.Millisecond, assert.AnError)

	assert.Equal(t, before+1, testutil.ToFloat64(EventWriteErrorsTotal.WithLabelValues("metrics_test")))
}
