package fixture

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRenderCheckboxes(t *testing.T) {
	page, err := RenderCheckboxes(true)
	require.NoError(t, err)
	html := string(page)

	assert.Contains(t, html, "<h3>Checkboxes</h3>")
	assert.Contains(t, html, `<form id="checkboxes">`)
	assert.Equal(t, 2, strings.Count(html, `<input type="checkbox"`))
	assert.Contains(t, html, `<input type="checkbox"> checkbox 1<br>`)
	assert.Contains(t, html, `<input type="checkbox" checked> checkbox 2`)
	assert.NotContains(t, html, "<label")
	assert.Contains(t, html, "setAttribute('checked'")
	assert.NotContains(t, html, "<button", "nothing submits the form")
}

func TestRenderCheckboxesWithoutSync(t *testing.T) {
	page, err := RenderCheckboxes(false)
	require.NoError(t, err)
	assert.NotContains(t, string(page), "<script")
	assert.Contains(t, string(page), "checkbox 2")
}

func TestRouter(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	r := NewRouter(logger)

	tests := []struct {
		path     string
		status   int
		contains string
		absent   string
	}{
		{"/checkboxes", http.StatusOK, "removeAttribute('checked')", ""},
		{"/checkboxes?sync=off", http.StatusOK, "checkbox 1", "<script"},
		{"/healthz", http.StatusOK, `"status":"ok"`, ""},
		{"/", http.StatusOK, `href="/checkboxes"`, ""},
		{"/missing", http.StatusNotFound, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.contains != "" {
				assert.Contains(t, w.Body.String(), tt.contains)
			}
			if tt.absent != "" {
				assert.NotContains(t, w.Body.String(), tt.absent)
			}
		})
	}

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, "/missing", last.Data["path"])
	assert.Equal(t, http.StatusNotFound, last.Data["status"])
}

func TestRequestID(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	r := NewRouter(logger)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	generated := w.Header().Get("X-Request-ID")
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, hook.LastEntry().Data["request"])

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "run-42")
	r.ServeHTTP(w, req)
	assert.Equal(t, "run-42", w.Header().Get("X-Request-ID"))
}

func TestStartAndShutdown(t *testing.T) {
	logger, _ := test.NewNullLogger()
	srv, err := Start("127.0.0.1:0", logger)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(srv.URL(), "http://127.0.0.1:"))

	resp, err := http.Get(srv.URL() + "/checkboxes")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	assert.Contains(t, string(body), "<h3>Checkboxes</h3>")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, <-srv.Done())
}

func TestStartBadAddress(t *testing.T) {
	logger, _ := test.NewNullLogger()
	_, err := Start("256.0.0.1:99999", logger)
	assert.ErrorContains(t, err, "failed to listen")
}
