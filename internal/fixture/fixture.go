// Package fixture serves a local copy of the checkbox reference page so
// runs do not depend on the public site.
package fixture

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/flosch/pongo2/v6"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pagecheck/pagecheck/internal/pages"
)

//go:embed checkboxes.html
var checkboxesTemplate []byte

var checkboxesTpl = pongo2.Must(pongo2.FromBytes(checkboxesTemplate))

// Initial is the checked state of each box when the page loads.
var Initial = []bool{false, true}

type box struct {
	Label   string
	Checked bool
}

// RenderCheckboxes returns the reference markup. Without sync the page
// script that mirrors the checked property into the attribute is left out.
func RenderCheckboxes(sync bool) ([]byte, error) {
	boxes := make([]box, len(Initial))
	for i, c := range Initial {
		boxes[i] = box{Label: pages.LabelText(i), Checked: c}
	}
	var buf bytes.Buffer
	err := checkboxesTpl.ExecuteWriter(pongo2.Context{
		"heading": pages.CheckboxHeading,
		"boxes":   boxes,
		"sync":    sync,
	}, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to render checkbox page: %w", err)
	}
	return buf.Bytes(), nil
}

// NewRouter builds the fixture routes.
func NewRouter(log logrus.FieldLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogger(log))

	r.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8",
			[]byte(`<!DOCTYPE html><html><body><ul><li><a href="`+pages.CheckboxPath+`">Checkboxes</a></li></ul></body></html>`))
	})
	r.GET(pages.CheckboxPath, func(c *gin.Context) {
		page, err := RenderCheckboxes(c.Query("sync") != "off")
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Header("Cache-Control", "no-store")
		c.Data(http.StatusOK, "text/html; charset=utf-8", page)
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

const requestIDHeader = "X-Request-ID"

// requestID echoes the client's X-Request-ID or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
			"request":  c.GetString("request_id"),
		})
		if len(c.Errors) > 0 {
			entry.WithError(c.Errors.Last()).Warn("fixture request failed")
			return
		}
		entry.Debug("fixture request")
	}
}

// Server is a running fixture.
type Server struct {
	srv  *http.Server
	ln   net.Listener
	log  logrus.FieldLogger
	done chan error
}

// Start listens on addr ("127.0.0.1:0" picks a free port) and serves in the
// background.
func Start(addr string, log logrus.FieldLogger) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s := &Server{
		srv: &http.Server{
			Handler:           NewRouter(log),
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:   ln,
		log:  log,
		done: make(chan error, 1),
	}
	go func() {
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()
	log.WithField("url", s.URL()).Info("fixture server started")
	return s, nil
}

// URL is the base URL pages are served under.
func (s *Server) URL() string {
	return "http://" + s.ln.Addr().String()
}

// Done delivers the serve error, nil after a clean shutdown.
func (s *Server) Done() <-chan error {
	return s.done
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop fixture server: %w", err)
	}
	s.log.Info("fixture server stopped")
	return nil
}
