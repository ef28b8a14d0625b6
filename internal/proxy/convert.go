// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package proxy

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/convertease/internal/formats"
	"github.com/pdiddy/convertease/internal/logger"
	"github.com/pdiddy/convertease/pkg/types"
)

// decodedFile is a request file after transport decoding.
type decodedFile struct {
	name string
	data []byte
}

// handleConvert is the single conversion endpoint. It dispatches on the
// request's action; an empty action converts the files directly.
func (s *Server) handleConvert(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed, types.SingleResponse{Error: "Method not allowed"})
		return
	}
	// Missing credentials fail before the body is read.
	if err := s.conv.CheckCredentials(); err != nil {
		fail(c, err)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxRequestSize)
	var req types.ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			fail(c, types.Validationf("Request body exceeds the maximum of %s", formats.FormatFileSize(s.maxRequestSize)))
			return
		}
		fail(c, types.Validationf("Invalid JSON body: %v", err))
		return
	}

	switch req.Action {
	case "":
		s.convertDirect(c, req)
	case types.ActionUpload:
		s.upload(c, req)
	case types.ActionConvert:
		s.startJob(c, req)
	case types.ActionStatus:
		s.jobStatus(c, req)
	case types.ActionDownload:
		s.download(c, req)
	default:
		fail(c, types.Validationf("Unknown action %q", req.Action))
	}
}

// convertDirect validates every file, then converts them one at a time in
// request order. The first failure aborts the batch.
func (s *Server) convertDirect(c *gin.Context, req types.ConvertRequest) {
	if req.FromFormat == "" || req.ToFormat == "" || (len(req.Files) == 0 && !req.IsSingle()) {
		fail(c, &types.ValidationError{Message: "Missing required fields: fromFormat, toFormat, files"})
		return
	}
	_, route, err := s.table.ValidatePair(req.FromFormat, req.ToFormat)
	if err != nil {
		fail(c, err)
		return
	}

	payloads := req.Files
	if req.IsSingle() {
		payloads = []types.FilePayload{{Filename: req.Filename, FileData: req.FileData}}
	}
	if len(payloads) > maxBatchFiles {
		fail(c, types.Validationf("Too many files: at most %d per request", maxBatchFiles))
		return
	}
	files, err := s.decodeFiles(payloads)
	if err != nil {
		fail(c, err)
		return
	}

	id := c.GetString(requestIDKey)
	logger.Info("[%s] converting %d file(s) %s -> %s", id, len(files), req.FromFormat, req.ToFormat)

	contentType := s.table.ContentType(req.ToFormat)
	results := make([]types.FileResult, 0, len(files))
	for _, f := range files {
		res, err := s.conv.Convert(c.Request.Context(), route, f.name, f.data)
		if err != nil {
			fail(c, fmt.Errorf("converting %s: %w", f.name, err))
			return
		}
		logger.Debug("[%s] converted %s (%d -> %d bytes)", id, f.name, len(f.data), len(res.Data))
		results = append(results, types.FileResult{
			Filename:    formats.OutputFilename(f.name, req.ToFormat),
			Content:     types.EncodeContent(res.Data),
			ContentType: contentType,
		})
	}

	if req.IsSingle() {
		r := results[0]
		c.JSON(http.StatusOK, types.SingleResponse{
			Success:     true,
			Data:        r.Content,
			Filename:    r.Filename,
			ContentType: r.ContentType,
		})
		return
	}
	c.JSON(http.StatusOK, types.BatchResponse{Results: results})
}

// decodeFiles checks names, sizes, and encodings of every file before any
// outbound call is made.
func (s *Server) decodeFiles(payloads []types.FilePayload) ([]decodedFile, error) {
	out := make([]decodedFile, 0, len(payloads))
	for i, p := range payloads {
		if p.Filename == "" {
			return nil, types.Validationf("File %d has no filename", i+1)
		}
		if p.FileData == "" {
			return nil, types.Validationf("No file data provided for %s", p.Filename)
		}
		if int64(base64.StdEncoding.DecodedLen(len(p.FileData))) > s.maxFileSize+2 {
			return nil, formats.TooLarge(s.maxFileSize)
		}
		data, err := types.DecodeContent(p.FileData)
		if err != nil {
			return nil, types.Validationf("Invalid file data for %s", p.Filename)
		}
		if int64(len(data)) > s.maxFileSize {
			return nil, formats.TooLarge(s.maxFileSize)
		}
		out = append(out, decodedFile{name: p.Filename, data: data})
	}
	return out, nil
}
