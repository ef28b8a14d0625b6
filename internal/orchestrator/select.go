// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrator

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pdiddy/convertease/internal/formats"
	"github.com/pdiddy/convertease/pkg/types"
)

// FileHandle is a file offered for conversion. Size is the declared size;
// Open is called only once every check has passed.
type FileHandle struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// OSFile returns a handle for a file on disk.
func OSFile(path string) (FileHandle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileHandle{}, err
	}
	if info.IsDir() {
		return FileHandle{}, fmt.Errorf("%s is a directory", path)
	}
	return FileHandle{
		Name: filepath.Base(path),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// SelectFiles validates a batch and builds the conversion request. An
// empty source format is detected from the first file. Every file must
// have the source format's extension, so one batch never mixes categories.
// Content is read only after all checks pass.
func (c *Client) SelectFiles(inputs []FileHandle, source, target string) (types.ConversionRequest, error) {
	if len(inputs) == 0 {
		return types.ConversionRequest{}, &types.ValidationError{Message: types.MsgNoFileSelected}
	}

	var category types.Category
	for i, in := range inputs {
		if in.Size > c.maxFileSize {
			return types.ConversionRequest{}, formats.TooLarge(c.maxFileSize)
		}
		cat, ok := c.table.Detect(formats.Ext(in.Name))
		if !ok {
			return types.ConversionRequest{}, &types.ValidationError{Message: types.MsgFileNotSupported}
		}
		if i == 0 {
			category = cat
		} else if cat != category {
			return types.ConversionRequest{}, &types.ValidationError{Message: types.MsgMixedCategories}
		}
	}

	source = formats.Normalize(source)
	if source == "" {
		source = formats.Ext(inputs[0].Name)
	}
	for _, in := range inputs {
		if ext := formats.Ext(in.Name); ext != source {
			return types.ConversionRequest{}, types.Validationf("%s is not a %s file", in.Name, source)
		}
	}
	if _, _, err := c.table.ValidatePair(source, target); err != nil {
		return types.ConversionRequest{}, err
	}

	entries := make([]types.FileEntry, 0, len(inputs))
	for _, in := range inputs {
		data, err := c.readHandle(in)
		if err != nil {
			return types.ConversionRequest{}, err
		}
		entries = append(entries, types.FileEntry{
			Filename:     in.Name,
			Content:      data,
			DeclaredSize: in.Size,
		})
	}
	return types.ConversionRequest{
		SourceFormat: source,
		TargetFormat: formats.Normalize(target),
		Category:     category,
		Files:        entries,
	}, nil
}

// readHandle reads at most maxFileSize+1 bytes so a file that grew past
// its declared size is still rejected.
func (c *Client) readHandle(in FileHandle) ([]byte, error) {
	if in.Open == nil {
		return nil, fmt.Errorf("%s: no content", in.Name)
	}
	rc, err := in.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", in.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, c.maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", in.Name, err)
	}
	if int64(len(data)) > c.maxFileSize {
		return nil, formats.TooLarge(c.maxFileSize)
	}
	return data, nil
}
