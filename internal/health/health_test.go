package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeChecker struct {
	name     string
	status   Status
	critical bool
}

func (f *fakeChecker) Name() string   { return f.name }
func (f *fakeChecker) Critical() bool { return f.critical }
func (f *fakeChecker) Check(context.Context) CheckResult {
	return CheckResult{Status: f.status}
}

func TestReportFolding(t *testing.T) {
	m := NewManager(zap.NewNop())
	m.Register(&fakeChecker{name: "a", status: StatusHealthy, critical: true})

	report := m.Report(context.Background())
	assert.Equal(t, StatusHealthy, report.Status)
	assert.True(t, report.Ready)

	m.Register(&fakeChecker{name: "b", status: StatusDegraded})
	report = m.Report(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.True(t, report.Ready)

	// Non-critical failure degrades; critical failure unreadies.
	m.Register(&fakeChecker{name: "c", status: StatusUnhealthy})
	report = m.Report(context.Background())
	assert.True(t, report.Ready)

	m.Register(&fakeChecker{name: "d", status: StatusUnhealthy, critical: true})
	report = m.Report(context.Background())
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.False(t, report.Ready)
}

type fakeCache struct{ ready bool }

func (f *fakeCache) Ready() bool { return f.ready }

func TestVocabChecker(t *testing.T) {
	cache := &fakeCache{}
	c := NewVocabChecker(cache)
	assert.Equal(t, StatusDegraded, c.Check(context.Background()).Status)
	cache.ready = true
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)
}

type fakeCounter int

func (f fakeCounter) Count() int { return int(f) }

func TestHTTPEndpoints(t *testing.T) {
	m := NewManager(zap.NewNop())
	m.Register(NewVocabChecker(&fakeCache{ready: true}))
	m.Register(NewGameChecker(fakeCounter(2), fakeCounter(5)))

	mux := http.NewServeMux()
	NewHTTPHandler(m, zap.NewNop()).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	for _, path := range []string{"/health", "/health/ready", "/health/live"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		resp.Body.Close()
	}
}

func TestReadyEndpointFailsOnCriticalCheck(t *testing.T) {
	m := NewManager(zap.NewNop())
	m.Register(&fakeChecker{name: "broken", status: StatusUnhealthy, critical: true})

	mux := http.NewServeMux()
	NewHTTPHandler(m, zap.NewNop()).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
