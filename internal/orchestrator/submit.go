// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/convertease/internal/formats"
	"github.com/pdiddy/convertease/pkg/types"
)

// Submit converts the whole batch with one proxy request. Results are
// returned in the order of req.Files.
func (c *Client) Submit(ctx context.Context, req types.ConversionRequest) ([]types.ConversionResult, error) {
	if err := c.checkRequest(req); err != nil {
		return nil, err
	}
	body := types.ConvertRequest{
		FromFormat: req.SourceFormat,
		ToFormat:   req.TargetFormat,
		Files:      make([]types.FilePayload, len(req.Files)),
	}
	for i, f := range req.Files {
		body.Files[i] = types.FilePayload{Filename: f.Filename, FileData: types.EncodeContent(f.Content)}
	}

	var resp types.BatchResponse
	if err := c.post(ctx, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) != len(req.Files) {
		return nil, &types.RemoteError{
			Message: fmt.Sprintf("proxy returned %d results for %d files", len(resp.Results), len(req.Files)),
		}
	}

	out := make([]types.ConversionResult, len(resp.Results))
	for i, r := range resp.Results {
		res, err := c.decodeResult(r.Filename, r.Content, r.ContentType, req.TargetFormat)
		if err != nil {
			return nil, err
		}
		out[i] = res
	}
	return out, nil
}

// SubmitJob converts each file through the job flow: admit, start, poll
// until terminal, then download. Files are processed one at a time in
// order; the first failure ends the batch.
func (c *Client) SubmitJob(ctx context.Context, req types.ConversionRequest) ([]types.ConversionResult, error) {
	if err := c.checkRequest(req); err != nil {
		return nil, err
	}
	out := make([]types.ConversionResult, 0, len(req.Files))
	for _, f := range req.Files {
		res, err := c.convertJob(ctx, req, f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Filename, err)
		}
		out = append(out, res)
	}
	return out, nil
}

// checkRequest repeats the selection checks for requests that were not
// built by SelectFiles. It makes no network calls.
func (c *Client) checkRequest(req types.ConversionRequest) error {
	if len(req.Files) == 0 {
		return &types.ValidationError{Message: types.MsgNoFileSelected}
	}
	if _, _, err := c.table.ValidatePair(req.SourceFormat, req.TargetFormat); err != nil {
		return err
	}
	source := formats.Normalize(req.SourceFormat)
	for _, f := range req.Files {
		if f.DeclaredSize > c.maxFileSize || int64(len(f.Content)) > c.maxFileSize {
			return formats.TooLarge(c.maxFileSize)
		}
		if ext := formats.Ext(f.Filename); ext != source {
			return types.Validationf("%s is not a %s file", f.Filename, source)
		}
	}
	return nil
}

func (c *Client) convertJob(ctx context.Context, req types.ConversionRequest, f types.FileEntry) (types.ConversionResult, error) {
	var up types.SingleResponse
	err := c.post(ctx, types.ConvertRequest{
		Action:   types.ActionUpload,
		Filename: f.Filename,
		FileSize: int64(len(f.Content)),
	}, &up)
	if err != nil {
		return types.ConversionResult{}, err
	}
	if err := checkSuccess(up); err != nil {
		return types.ConversionResult{}, err
	}

	var started types.SingleResponse
	err = c.post(ctx, types.ConvertRequest{
		Action:     types.ActionConvert,
		TaskID:     up.TaskID,
		FromFormat: req.SourceFormat,
		ToFormat:   req.TargetFormat,
		Filename:   f.Filename,
		FileData:   types.EncodeContent(f.Content),
	}, &started)
	if err != nil {
		return types.ConversionResult{}, err
	}
	if err := checkSuccess(started); err != nil {
		return types.ConversionResult{}, err
	}

	if _, _, err := c.WaitForJob(ctx, started.ConversionID, f.Filename); err != nil {
		return types.ConversionResult{}, err
	}

	var dl types.SingleResponse
	err = c.post(ctx, types.ConvertRequest{
		Action:       types.ActionDownload,
		ConversionID: started.ConversionID,
		Filename:     f.Filename,
		ToFormat:     req.TargetFormat,
	}, &dl)
	if err != nil {
		return types.ConversionResult{}, err
	}
	if err := checkSuccess(dl); err != nil {
		return types.ConversionResult{}, err
	}
	name := dl.Filename
	if name == "" {
		name = formats.OutputFilename(f.Filename, req.TargetFormat)
	}
	return c.decodeResult(name, dl.Data, dl.ContentType, req.TargetFormat)
}

// WaitForJob polls until the job completes, fails, or the attempt ceiling
// is reached. It returns the last observed status and the terminal outcome;
// err is nil only for OutcomeSuccess.
func (c *Client) WaitForJob(ctx context.Context, jobID, filename string) (types.JobStatus, types.Outcome, error) {
	var last types.JobStatus
	err := c.poller.Run(ctx, func(ctx context.Context, attempt int) (bool, error) {
		st, err := c.Poll(ctx, jobID)
		if err != nil {
			return false, err
		}
		st.Filename = filename
		last = st
		if c.progress != nil {
			c.progress(filename, st)
		}
		switch st.State {
		case types.JobCompleted:
			return true, nil
		case types.JobFailed:
			msg := st.Error
			if msg == "" {
				msg = "Conversion failed"
			}
			return true, &types.RemoteError{Message: msg}
		}
		return false, nil
	})

	var te *types.TimeoutError
	switch {
	case err == nil:
		return last, types.OutcomeSuccess, nil
	case errors.As(err, &te):
		return last, types.OutcomeTimedOut, err
	default:
		return last, types.OutcomeFailure, err
	}
}

// Poll queries a job's state once. It has no side effects, so repeated
// calls after completion keep reporting the same terminal state.
func (c *Client) Poll(ctx context.Context, jobID string) (types.JobStatus, error) {
	var resp types.SingleResponse
	err := c.post(ctx, types.ConvertRequest{Action: types.ActionStatus, ConversionID: jobID}, &resp)
	if err != nil {
		return types.JobStatus{}, err
	}
	if err := checkSuccess(resp); err != nil {
		return types.JobStatus{}, err
	}
	return types.JobStatus{
		ID:       jobID,
		State:    types.JobState(resp.Status),
		Progress: resp.Progress,
		Error:    resp.Error,
	}, nil
}

func checkSuccess(r types.SingleResponse) error {
	if r.Success {
		return nil
	}
	msg := r.Error
	if msg == "" {
		msg = "proxy reported failure"
	}
	return &types.RemoteError{Message: msg}
}

func (c *Client) decodeResult(filename, content, contentType, target string) (types.ConversionResult, error) {
	data, err := types.DecodeContent(content)
	if err != nil {
		return types.ConversionResult{}, &types.RemoteError{Message: fmt.Sprintf("%s: %v", filename, err)}
	}
	if contentType == "" {
		contentType = c.table.ContentType(target)
	}
	return types.ConversionResult{Filename: filename, Content: data, ContentType: contentType}, nil
}
