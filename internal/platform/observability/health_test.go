package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(context.Context) error {
	return f.err
}

func TestServerProbes(t *testing.T) {
	logger := zerolog.Nop()

	tests := []struct {
		name     string
		pingErr  error
		path     string
		wantCode int
	}{
		{name: "liveness", path: "/healthz", wantCode: http.StatusOK},
		{name: "ready", path: "/readyz", wantCode: http.StatusOK},
		{name: "not ready", path: "/readyz", pingErr: errors.New("down"), wantCode: http.StatusServiceUnavailable},
		{name: "metrics", path: "/metrics", wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(fakePinger{err: tt.pingErr}, 0, &logger)

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestServerMount(t *testing.T) {
	logger := zerolog.Nop()
	srv := NewServer(fakePinger{}, 0, &logger)

	srv.Mount("/api/", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	srv.Mount("/ignored/", nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/seed-lists", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ignored/x", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
