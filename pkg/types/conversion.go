// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Category groups formats that share an input/output extension table.
type Category string

const (
	CategoryDocument Category = "document"
	CategoryImage    Category = "image"
	CategoryVideo    Category = "video"
	CategoryAudio    Category = "audio"
)

// FileEntry is one staged file. DeclaredSize is the size reported by the
// file handle and is checked before Content is ever read.
type FileEntry struct {
	Filename     string `json:"filename" yaml:"filename"`
	Content      []byte `json:"-" yaml:"-"`
	DeclaredSize int64  `json:"declared_size" yaml:"declared_size"`
}

// ConversionRequest is an immutable description of one batch conversion.
// All files share SourceFormat and Category.
type ConversionRequest struct {
	SourceFormat string      `json:"source_format" yaml:"source_format"`
	TargetFormat string      `json:"target_format" yaml:"target_format"`
	Category     Category    `json:"category" yaml:"category"`
	Files        []FileEntry `json:"files" yaml:"files"`
}

// WithTarget returns a copy of r converting to target instead. The file
// slice is copied so the two values never share backing storage.
func (r ConversionRequest) WithTarget(target string) ConversionRequest {
	out := r
	out.TargetFormat = target
	out.Files = append([]FileEntry(nil), r.Files...)
	return out
}

// TotalSize returns the sum of declared sizes.
func (r ConversionRequest) TotalSize() int64 {
	var n int64
	for _, f := range r.Files {
		n += f.DeclaredSize
	}
	return n
}

// ConversionResult is one converted artifact. Results are returned in the
// order of the request's files.
type ConversionResult struct {
	Filename    string `json:"filename" yaml:"filename"`
	Content     []byte `json:"-" yaml:"-"`
	ContentType string `json:"content_type" yaml:"content_type"`
}

// JobState is the lifecycle state of an asynchronous remote conversion.
type JobState string

const (
	JobQueued     JobState = "queued"
	JobProcessing JobState = "processing"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobStatus is one observation of a remote job.
type JobStatus struct {
	ID       string   `json:"id" yaml:"id"`
	State    JobState `json:"state" yaml:"state"`
	Progress int      `json:"progress" yaml:"progress"`
	Filename string   `json:"filename,omitempty" yaml:"filename,omitempty"`
	Error    string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// Outcome is the terminal result of a bounded polling loop.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	OutcomeTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeTimedOut:
		return "timed out"
	}
	return "unknown"
}
