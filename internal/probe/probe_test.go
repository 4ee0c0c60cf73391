package probe_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicewatch/internal/probe"
)

func TestCheckStatusClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantReachable bool
	}{
		{"200 is reachable", http.StatusOK, true},
		{"404 is reachable", http.StatusNotFound, true},
		{"429 is reachable", http.StatusTooManyRequests, true},
		{"499 is reachable", 499, true},
		{"500 is unreachable", http.StatusInternalServerError, false},
		{"503 is unreachable", http.StatusServiceUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			p := probe.New(2 * time.Second)
			res := p.Check(t.Context(), srv.URL, "/health", http.MethodGet)
			assert.Equal(t, tt.wantReachable, res.Reachable)
			require.NotNil(t, res.StatusCode)
			assert.Equal(t, tt.status, *res.StatusCode)
			require.NotNil(t, res.ResponseTimeMs)
			assert.Empty(t, res.Error)
		})
	}
}

func TestCheckMethodSelection(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
	}))
	defer srv.Close()

	p := probe.New(2 * time.Second)

	p.Check(t.Context(), srv.URL, "/x", http.MethodGet)
	assert.Equal(t, http.MethodHead, gotMethod, "declared GET probes with HEAD")

	p.Check(t.Context(), srv.URL, "/x", "")
	assert.Equal(t, http.MethodHead, gotMethod, "undeclared method probes with HEAD")

	p.Check(t.Context(), srv.URL, "/x", http.MethodPost)
	assert.Equal(t, http.MethodOptions, gotMethod, "non-GET probes with OPTIONS")
}

func TestCheckURLJoin(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))
	defer srv.Close()

	p := probe.New(2 * time.Second)

	p.Check(t.Context(), srv.URL+"/", "/health", http.MethodGet)
	assert.Equal(t, "/health", gotPath, "no double slash")

	p.Check(t.Context(), srv.URL, "health", http.MethodGet)
	assert.Equal(t, "/health", gotPath, "separator inserted")
}

func TestCheckNoApplicationURL(t *testing.T) {
	p := probe.New(2 * time.Second)
	res := p.Check(t.Context(), "", "/health", http.MethodGet)
	assert.False(t, res.Reachable)
	assert.Equal(t, "no application URL configured", res.Error)
	assert.Nil(t, res.StatusCode)
}

func TestCheckTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	p := probe.New(150 * time.Millisecond)
	start := time.Now()
	res := p.Check(t.Context(), srv.URL, "/slow", http.MethodGet)
	assert.False(t, res.Reachable)
	assert.Equal(t, "Connection timeout", res.Error)
	assert.Nil(t, res.StatusCode)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCheckTransportError(t *testing.T) {
	p := probe.New(500 * time.Millisecond)
	// Port 1 on loopback refuses connections immediately.
	res := p.Check(t.Context(), "http://127.0.0.1:1", "/x", http.MethodGet)
	assert.False(t, res.Reachable)
	assert.NotEmpty(t, res.Error)
	assert.NotEqual(t, "Connection timeout", res.Error)
}
