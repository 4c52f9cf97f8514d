package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestGetRealClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"x-real-ip wins", map[string]string{"X-Real-IP": "1.1.1.1", "X-Forwarded-For": "2.2.2.2"}, "1.1.1.1"},
		{"first forwarded", map[string]string{"X-Forwarded-For": "3.3.3.3, 4.4.4.4"}, "3.3.3.3"},
		{"fallback", nil, "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				c.Request.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, GetRealClientIP(c))
		})
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "debug", "json")

	r := gin.New()
	r.Use(RequestLogger(log))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "/ping", line["path"])
	assert.Equal(t, float64(http.StatusTeapot), line["status"])
}

func TestGormLogger_IgnoresPatterns(t *testing.T) {
	var buf bytes.Buffer
	l := NewGormLogger(newLogger(&buf, "debug", "json"), logger.Info, "pills_reminder_users")

	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return `SELECT * FROM "document" WHERE name = 'pills_reminder_users'`, 1
	}, nil)
	assert.Empty(t, buf.String())

	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return `SELECT * FROM "document" WHERE name = 'pills_reminder_global'`, 1
	}, nil)
	assert.Contains(t, buf.String(), "pills_reminder_global")
}
