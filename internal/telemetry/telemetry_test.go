package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	reg := New()
	reg.ActiveRooms.Set(3)
	reg.RateLimitDrops.Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, "velotype_active_rooms 3")
	assert.Contains(t, body, "velotype_rate_limit_drops_total 1")
	assert.True(t, strings.Contains(body, "velotype_apex_promotions_total"))
}

func TestMultipleRegistriesDoNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}
