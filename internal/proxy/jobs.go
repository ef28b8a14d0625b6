// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package proxy

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pdiddy/convertease/internal/formats"
	"github.com/pdiddy/convertease/internal/logger"
	"github.com/pdiddy/convertease/pkg/types"
)

// upload admits a file for the job flow. Nothing is stored: the task ID
// only ties the caller's later convert call to this admission check.
func (s *Server) upload(c *gin.Context, req types.ConvertRequest) {
	if req.Filename == "" {
		fail(c, &types.ValidationError{Message: types.MsgNoFileSelected})
		return
	}
	if _, ok := s.table.Detect(formats.Ext(req.Filename)); !ok {
		fail(c, &types.ValidationError{Message: types.MsgFileNotSupported})
		return
	}
	if req.FileSize > s.maxFileSize {
		fail(c, formats.TooLarge(s.maxFileSize))
		return
	}
	taskID := uuid.New().String()
	logger.Info("[%s] upload accepted: %s (%s) task %s", c.GetString(requestIDKey),
		req.Filename, formats.FormatFileSize(req.FileSize), taskID)
	c.JSON(http.StatusOK, types.SingleResponse{Success: true, TaskID: taskID})
}

// startJob submits one file to the conversion API's asynchronous contract
// and returns the provider job ID as the conversion ID.
func (s *Server) startJob(c *gin.Context, req types.ConvertRequest) {
	if _, err := uuid.Parse(req.TaskID); err != nil {
		fail(c, &types.ValidationError{Message: "Missing or invalid taskId"})
		return
	}
	_, route, err := s.table.ValidatePair(req.FromFormat, req.ToFormat)
	if err != nil {
		fail(c, err)
		return
	}
	files, err := s.decodeFiles([]types.FilePayload{{Filename: req.Filename, FileData: req.FileData}})
	if err != nil {
		fail(c, err)
		return
	}

	st, err := s.conv.StartJob(c.Request.Context(), route, files[0].name, files[0].data)
	if err != nil {
		fail(c, err)
		return
	}
	logger.Info("[%s] task %s started job %s", c.GetString(requestIDKey), req.TaskID, st.ID)
	c.JSON(http.StatusOK, types.SingleResponse{
		Success:      true,
		TaskID:       req.TaskID,
		ConversionID: st.ID,
		Status:       string(st.State),
		Progress:     st.Progress,
	})
}

// jobStatus reports a job's state. A failed job is still a successful
// status query; the failure travels in Status and Error.
func (s *Server) jobStatus(c *gin.Context, req types.ConvertRequest) {
	if err := checkConversionID(req.ConversionID); err != nil {
		fail(c, err)
		return
	}
	st, err := s.conv.JobStatus(c.Request.Context(), req.ConversionID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, types.SingleResponse{
		Success:      true,
		ConversionID: req.ConversionID,
		Status:       string(st.State),
		Progress:     st.Progress,
		Error:        st.Error,
	})
}

// download relays a completed job's output.
func (s *Server) download(c *gin.Context, req types.ConvertRequest) {
	if err := checkConversionID(req.ConversionID); err != nil {
		fail(c, err)
		return
	}
	if req.ToFormat == "" {
		fail(c, &types.ValidationError{Message: types.MsgNoFormatSelected})
		return
	}
	res, err := s.conv.JobResult(c.Request.Context(), req.ConversionID)
	if err != nil {
		fail(c, err)
		return
	}
	name := req.Filename
	if name == "" {
		name = req.ConversionID
	}
	c.JSON(http.StatusOK, types.SingleResponse{
		Success:      true,
		ConversionID: req.ConversionID,
		Data:         types.EncodeContent(res.Data),
		Filename:     formats.OutputFilename(name, req.ToFormat),
		ContentType:  s.table.ContentType(req.ToFormat),
	})
}

// checkConversionID rejects IDs that could leave the job's own path on the
// conversion API.
func checkConversionID(id string) error {
	if id == "" {
		return &types.ValidationError{Message: "Missing conversionId"}
	}
	if strings.ContainsAny(id, "/\\?#%") || strings.Contains(id, "..") {
		return types.Validationf("Invalid conversionId %q", id)
	}
	for _, r := range id {
		if r < 0x20 || r == 0x7f {
			return types.Validationf("Invalid conversionId %q", id)
		}
	}
	return nil
}
