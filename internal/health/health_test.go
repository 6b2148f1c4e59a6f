package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(ctx context.Context) error { return f.err }

func TestLivenessAlwaysOK(t *testing.T) {
	// Liveness must not depend on any downstream store
	hc := NewHealthCheck(&fakePinger{err: errors.New("down")}, &fakePinger{err: errors.New("down")}, zap.NewNop())

	w := httptest.NewRecorder()
	hc.LivenessHandler(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestReadiness(t *testing.T) {
	t.Run("ready when both stores answer", func(t *testing.T) {
		hc := NewHealthCheck(&fakePinger{}, &fakePinger{}, zap.NewNop())

		w := httptest.NewRecorder()
		hc.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "ready")
	})

	t.Run("not ready when database is down", func(t *testing.T) {
		hc := NewHealthCheck(&fakePinger{err: errors.New("db down")}, &fakePinger{}, zap.NewNop())

		w := httptest.NewRecorder()
		hc.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("not ready when redis is down", func(t *testing.T) {
		hc := NewHealthCheck(&fakePinger{}, &fakePinger{err: errors.New("redis down")}, zap.NewNop())

		w := httptest.NewRecorder()
		hc.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
