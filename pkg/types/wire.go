// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/base64"
	"fmt"
)

// Proxy wire actions carried in ConvertRequest.Action. An empty action is a
// direct conversion.
const (
	ActionUpload   = "upload"
	ActionConvert  = "convert"
	ActionStatus   = "status"
	ActionDownload = "download"
)

// FilePayload is one file inside a proxy request, content in transport
// encoding.
type FilePayload struct {
	Filename string `json:"filename"`
	FileData string `json:"fileData"`
}

// ConvertRequest is the JSON body accepted by the proxy. Batch callers fill
// Files; single-file callers fill Filename and FileData. Job actions use
// the remaining fields.
type ConvertRequest struct {
	Action       string        `json:"action,omitempty"`
	FromFormat   string        `json:"fromFormat,omitempty"`
	ToFormat     string        `json:"toFormat,omitempty"`
	Files        []FilePayload `json:"files,omitempty"`
	Filename     string        `json:"filename,omitempty"`
	FileData     string        `json:"fileData,omitempty"`
	FileSize     int64         `json:"filesize,omitempty"`
	TaskID       string        `json:"taskId,omitempty"`
	ConversionID string        `json:"conversionId,omitempty"`
}

// IsSingle reports whether the request uses the single-file form.
func (r ConvertRequest) IsSingle() bool {
	return len(r.Files) == 0 && r.Filename != ""
}

// FileResult is one converted file in a batch response.
type FileResult struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"`
	ContentType string `json:"contentType,omitempty"`
}

// BatchResponse is the proxy's success body for batch requests.
type BatchResponse struct {
	Results []FileResult `json:"results"`
}

// SingleResponse is the proxy's body for single-file requests, job actions,
// and every failure.
type SingleResponse struct {
	Success      bool   `json:"success"`
	Data         string `json:"data,omitempty"`
	Filename     string `json:"filename,omitempty"`
	ContentType  string `json:"contentType,omitempty"`
	Error        string `json:"error,omitempty"`
	TaskID       string `json:"taskId,omitempty"`
	ConversionID string `json:"conversionId,omitempty"`
	Status       string `json:"status,omitempty"`
	Progress     int    `json:"progress,omitempty"`
}

// EncodeContent converts raw bytes to transport text.
func EncodeContent(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeContent converts transport text back to raw bytes. An empty string
// decodes to an empty, non-nil slice.
func DecodeContent(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding file data: %w", err)
	}
	return b, nil
}
