package httpmiddleware

import (
	"FactVerse/backend/go/pkg/logger"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func doRequest(r http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remote
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit_PerClient(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(FixedWindow(2, time.Minute), "slow down"))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	assert.Equal(t, http.StatusOK, doRequest(r, "10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, doRequest(r, "10.0.0.1:1000").Code)

	w := doRequest(r, "10.0.0.1:1000")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "slow down", body["message"])

	assert.Equal(t, http.StatusOK, doRequest(r, "10.0.0.2:1000").Code, "other clients have their own window")
}

func TestRequestLogger_WritesRequestInfo(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithOutput("test", logrus.InfoLevel, &buf)

	r := gin.New()
	r.Use(RequestLogger(log))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	doRequest(r, "10.0.0.3:1000")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "request rejected", line["message"])
	assert.Equal(t, "warning", line["level"])
	info := line["request_info"].(map[string]interface{})
	assert.Equal(t, "/ping", info["path"])
	assert.EqualValues(t, http.StatusTeapot, info["status_code"])
}

func TestRecovery_ReturnsJSON(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(logger.Discard()))
	r.GET("/ping", func(c *gin.Context) { panic("boom") })

	w := doRequest(r, "10.0.0.4:1000")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Something went wrong!")
}
