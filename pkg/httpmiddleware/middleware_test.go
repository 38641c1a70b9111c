package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"docqa/pkg/circuitbreaker"
	"docqa/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, path string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(NewClientLimiter(0.001, 2)))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, "/"))
	assert.Equal(t, http.StatusOK, serve(r, "/"))
	assert.Equal(t, http.StatusTooManyRequests, serve(r, "/"))
}

func TestCircuitBreak(t *testing.T) {
	r := gin.New()
	r.Use(CircuitBreak(circuitbreaker.New(circuitbreaker.Settings{FailureThreshold: 1, Timeout: time.Hour})))
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	assert.Equal(t, http.StatusInternalServerError, serve(r, "/fail"))
	assert.Equal(t, http.StatusServiceUnavailable, serve(r, "/fail"))
}

func TestTimeoutSetsDeadline(t *testing.T) {
	var hasDeadline bool
	r := gin.New()
	r.Use(Timeout(time.Minute))
	r.GET("/", func(c *gin.Context) {
		_, hasDeadline = c.Request.Context().Deadline()
		c.Status(http.StatusOK)
	})

	serve(r, "/")
	assert.True(t, hasDeadline)
}

func TestTimeoutExpires(t *testing.T) {
	var ctxErr error
	r := gin.New()
	r.Use(Timeout(time.Millisecond))
	r.GET("/", func(c *gin.Context) {
		<-c.Request.Context().Done()
		ctxErr = c.Request.Context().Err()
		c.Status(http.StatusGatewayTimeout)
	})

	serve(r, "/")
	assert.ErrorIs(t, ctxErr, context.DeadlineExceeded)
}

func TestRequestLoggerPassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger(logger.Nop()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	assert.Equal(t, http.StatusTeapot, serve(r, "/"))
}
