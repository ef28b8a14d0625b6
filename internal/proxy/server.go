// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package proxy implements the conversion proxy: an HTTP service that
// accepts base64-encoded files and a format pair, forwards each file to the
// conversion API, and relays the converted bytes back in the same encoding.
// The proxy keeps no state between requests.
package proxy

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pdiddy/convertease/internal/cloudmersive"
	"github.com/pdiddy/convertease/internal/formats"
	"github.com/pdiddy/convertease/internal/logger"
	"github.com/pdiddy/convertease/pkg/types"
)

const maxBatchFiles = 20

// envelopeBytes is the room left for the JSON fields around file data.
const envelopeBytes = 64 << 10

const requestIDKey = "request_id"

// Converter is the subset of the conversion API client the proxy uses.
// *cloudmersive.Client implements it; tests substitute fakes.
type Converter interface {
	CheckCredentials() error
	Convert(ctx context.Context, route, filename string, data []byte) (cloudmersive.Result, error)
	StartJob(ctx context.Context, route, filename string, data []byte) (types.JobStatus, error)
	JobStatus(ctx context.Context, jobID string) (types.JobStatus, error)
	JobResult(ctx context.Context, jobID string) (cloudmersive.Result, error)
}

// Server holds the proxy's read-only configuration.
type Server struct {
	table          *formats.Table
	conv           Converter
	maxFileSize    int64
	maxRequestSize int64
}

// New builds a proxy server. A nil table selects the built-in tables.
func New(table *formats.Table, conv Converter, cfg types.ProxyConfig) *Server {
	if table == nil {
		table = formats.Default()
	}
	max := cfg.MaxFileSize
	if max <= 0 {
		max = types.DefaultMaxFileSize
	}
	body := cfg.MaxRequestSize
	if body <= 0 {
		body = types.DefaultMaxRequestSize
	}
	if floor := int64(base64.StdEncoding.EncodedLen(int(max))) + envelopeBytes; body < floor {
		body = floor
	}
	return &Server{table: table, conv: conv, maxFileSize: max, maxRequestSize: body}
}

// Handler returns the HTTP router.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(), cors())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/formats", s.handleFormats)
	for _, path := range []string{"/convert", "/.netlify/functions/convert"} {
		r.Any(path, s.handleConvert)
	}
	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.New().String()
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("[%s] %s %s -> %d (%v)", c.GetString(requestIDKey), c.Request.Method,
			c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}

// cors permits every origin and answers preflight requests directly.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

func (s *Server) handleFormats(c *gin.Context) {
	c.JSON(http.StatusOK, s.table)
}

// fail writes a {success:false, error} body with the status matching err's
// class and logs it under the request ID.
func fail(c *gin.Context, err error) {
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("[%s] %v", c.GetString(requestIDKey), err)
	} else {
		logger.Info("[%s] rejected: %v", c.GetString(requestIDKey), err)
	}
	c.AbortWithStatusJSON(status, types.SingleResponse{Success: false, Error: msg})
}

// classify maps the error taxonomy onto HTTP statuses and user-facing
// messages.
func classify(err error) (int, string) {
	var (
		ve *types.ValidationError
		ce *types.ConfigurationError
		re *types.RemoteError
		ne *types.NetworkError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message
	case errors.As(err, &ce):
		return http.StatusInternalServerError, ce.Message
	case errors.As(err, &re):
		return http.StatusInternalServerError, fmt.Sprintf("Cloudmersive error: %d %s", re.StatusCode, re.Message)
	case errors.As(err, &ne):
		return http.StatusInternalServerError, "Conversion service unreachable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
