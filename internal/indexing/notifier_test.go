package indexing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/t77yq/trendloop/internal/model"
	"github.com/t77yq/trendloop/internal/safety"
)

type fakeEngines struct {
	mu          sync.Mutex
	pingStatus  int
	indexStatus int
	sitemap     string
	submitted   indexNowRequest
}

func (f *fakeEngines) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.sitemap = r.URL.Query().Get("sitemap")
		w.WriteHeader(f.pingStatus)
	})
	mux.HandleFunc("/indexnow", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.NewDecoder(r.Body).Decode(&f.submitted)
		w.WriteHeader(f.indexStatus)
	})
	return mux
}

func newTestNotifier(t *testing.T, engines *fakeEngines) (*Notifier, *safety.Tracker) {
	t.Helper()
	srv := httptest.NewServer(engines.handler())
	t.Cleanup(srv.Close)

	tracker := safety.NewTracker(nil)
	n := NewNotifier("https://trendloop.example", "k3y", srv.Client(), tracker, zap.NewNop())
	n.pingURL = srv.URL + "/ping"
	n.indexNowURL = srv.URL + "/indexnow"
	return n, tracker
}

func TestNotify(t *testing.T) {
	tests := []struct {
		name        string
		pingStatus  int
		indexStatus int
		want        model.ResultStatus
	}{
		{"both succeed", http.StatusOK, http.StatusOK, model.ResultOK},
		{"indexnow accepted only", http.StatusNotFound, http.StatusAccepted, model.ResultOK},
		{"ping only", http.StatusOK, http.StatusForbidden, model.ResultOK},
		{"both rejected", http.StatusGone, http.StatusUnprocessableEntity, model.ResultError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engines := &fakeEngines{pingStatus: tt.pingStatus, indexStatus: tt.indexStatus}
			n, tracker := newTestNotifier(t, engines)

			res := n.Notify(context.Background(), "2026-03-01-quiet-luxury")
			assert.Equal(t, tt.want, res.Status)

			assert.Equal(t, "https://trendloop.example/sitemap.xml", engines.sitemap)
			assert.Equal(t, "trendloop.example", engines.submitted.Host)
			assert.Equal(t, "k3y", engines.submitted.Key)
			assert.Equal(t, []string{"https://trendloop.example/2026-03-01-quiet-luxury.html"}, engines.submitted.URLList)

			// answered requests count as calls, not errors
			assert.Equal(t, 1, tracker.Calls(safety.ServiceGoogleIndex))
			assert.Equal(t, 1, tracker.Calls(safety.ServiceIndexNow))
			assert.Zero(t, tracker.TotalErrors())
		})
	}
}

func TestNotify_TransportFailure(t *testing.T) {
	tracker := safety.NewTracker(nil)
	n := NewNotifier("https://trendloop.example", "", nil, tracker, zap.NewNop())
	n.pingURL = "http://127.0.0.1:1/ping"
	n.indexNowURL = "http://127.0.0.1:1/indexnow"

	res := n.Notify(context.Background(), "slug")
	require.True(t, res.IsError())
	assert.Equal(t, 2, tracker.Errors(safety.CategoryOther))
	assert.Zero(t, tracker.TotalCalls())
}

func TestNotify_NoBaseURL(t *testing.T) {
	n := NewNotifier("", "", nil, safety.NewTracker(nil), zap.NewNop())
	assert.True(t, n.Notify(context.Background(), "slug").IsSkipped())
}
