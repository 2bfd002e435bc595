package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthy(context.Context) CheckResult   { return CheckResult{Status: StatusHealthy} }
func unhealthy(context.Context) CheckResult { return CheckResult{Status: StatusUnhealthy} }

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name     string
		critical Check
		optional Check
		want     Status
	}{
		{"all healthy", healthy, healthy, StatusHealthy},
		{"optional failing", healthy, unhealthy, StatusDegraded},
		{"critical failing", unhealthy, healthy, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			c.RegisterFunc("capture", true, tt.critical)
			c.RegisterFunc("dbus", false, tt.optional)

			assert.Equal(t, StatusUnknown, c.OverallStatus(), "nothing checked yet")
			c.Check(context.Background())
			assert.Equal(t, tt.want, c.OverallStatus())
		})
	}
}

func TestCheckTimeoutAndPanic(t *testing.T) {
	c := NewChecker()
	c.Register(&Component{
		Name:    "slow",
		Timeout: 10 * time.Millisecond,
		Check: func(ctx context.Context) CheckResult {
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			return CheckResult{Status: StatusHealthy}
		},
	})
	c.RegisterFunc("broken", false, func(context.Context) CheckResult {
		panic("boom")
	})

	results := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, results["slow"].Status)
	assert.Equal(t, "check timed out", results["slow"].Message)
	assert.Equal(t, StatusUnhealthy, results["broken"].Status)
	assert.Equal(t, "boom", results["broken"].Error)
	assert.Equal(t, []string{"broken", "slow"}, c.Names())
}

func TestStateCheck(t *testing.T) {
	state := "initializing"
	check := StateCheck(func() string { return state }, "ready")

	assert.Equal(t, StatusUnhealthy, check(context.Background()).Status)
	state = "ready"
	assert.Equal(t, StatusHealthy, check(context.Background()).Status)
}

func TestPingCheck(t *testing.T) {
	ok := PingCheck(func(context.Context) error { return nil })
	assert.Equal(t, StatusHealthy, ok(context.Background()).Status)

	bad := PingCheck(func(context.Context) error { return errors.New("database is locked") })
	result := bad(context.Background())
	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Equal(t, "database is locked", result.Error)
}

func TestLossCheck(t *testing.T) {
	var written, dropped, failed uint64
	check := LossCheck(func() (uint64, uint64, uint64) { return written, dropped, failed })

	written = 10
	assert.Equal(t, StatusHealthy, check(context.Background()).Status)

	dropped = 2
	result := check(context.Background())
	assert.Equal(t, StatusDegraded, result.Status)
	assert.Contains(t, result.Message, "2 stroke(s) dropped")

	// Recovered: no new losses since the last check.
	written = 20
	assert.Equal(t, StatusHealthy, check(context.Background()).Status)
}

func TestHandlers(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("capture", true, unhealthy)
	mux := http.NewServeMux()
	c.Mount(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	c.SetReady(true)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz?full=true", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, StatusUnhealthy, body.Status)
	assert.True(t, body.Ready)
	assert.Contains(t, body.Components, "capture")

	c.RegisterFunc("capture", true, healthy)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Components)
}
