package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitshare/fitness-api/internal/config"
)

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(config.MetricsConfig{Namespace: "fitness"})

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	m.TaskStart("email.send_signup_confirmation")
	m.TaskDone("email.send_signup_confirmation", time.Now(), "succeeded")
	m.QuotaDenied("workout")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `fitness_http_requests_total{method="GET",route="/ping",status="200"} 1`)
	assert.Contains(t, string(body), `fitness_tasks_processed_total{status="succeeded",task="email.send_signup_confirmation"} 1`)
	assert.Contains(t, string(body), `fitness_quota_denied_total{resource="workout"} 1`)
}
