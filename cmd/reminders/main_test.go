package main

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/2beens/fit45/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestRun_FailurePushesMetrics(t *testing.T) {
	var pushes atomic.Int32
	var pushedPath atomic.Value
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pushes.Add(1)
		pushedPath.Store(r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	cfg := &config.Config{
		PostgresHost:             "localhost",
		PostgresPort:             "1",
		KafkaBrokers:             []string{"localhost:1"},
		WindowTimezone:           "IST",
		WindowOffsetMinutes:      330,
		WindowBoundaryHour:       25,
		PrometheusPushgatewayURL: gateway.URL,
	}

	assert.Equal(t, 1, run(cfg, time.Second))
	assert.Equal(t, int32(1), pushes.Load())
	assert.Equal(t, "/metrics/job/fit45_reminders", pushedPath.Load())
}
