package health

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubSource struct {
	ready bool
	conns int
}

func (s stubSource) Ready() bool           { return s.ready }
func (s stubSource) ActiveConnections() int { return s.conns }

func TestLiveness_AlwaysSucceeds(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewHandler(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/healthz", nil)

	handler.Liveness(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alive")
}

func TestReadiness_NilSource(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewHandler(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/readyz", nil)

	handler.Readiness(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unavailable")
}

func TestReadiness_Ready(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewHandler(stubSource{ready: true, conns: 3})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/readyz", nil)

	handler.Readiness(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "\"connections\":3")
}

func TestReadiness_NotReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewHandler(stubSource{ready: false})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/readyz", nil)

	handler.Readiness(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
