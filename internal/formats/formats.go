// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package formats holds the read-only conversion tables: which extensions
// each category accepts and produces, which (source, target) pairs the
// conversion API supports and at what path, and the MIME type of each
// extension.
package formats

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/convertease/pkg/types"
)

const octetStream = "application/octet-stream"

// CategoryFormats lists the extensions a category accepts and produces.
type CategoryFormats struct {
	Input  []string `json:"input" yaml:"input"`
	Output []string `json:"output" yaml:"output"`
}

// Table is the complete set of conversion tables. A Table is built once at
// startup and never mutated afterwards, so it is safe for concurrent use.
type Table struct {
	Categories map[types.Category]CategoryFormats `json:"categories" yaml:"categories"`
	// Routes maps "from-to-to" keys to the API path for that pair.
	Routes map[string]string `json:"routes" yaml:"routes"`
	// MIME maps extensions to content types.
	MIME map[string]string `json:"mime" yaml:"mime"`
}

// categoryOrder fixes iteration order for detection and display.
var categoryOrder = []types.Category{
	types.CategoryDocument,
	types.CategoryImage,
	types.CategoryVideo,
	types.CategoryAudio,
}

// Default returns the built-in tables.
func Default() *Table {
	return &Table{
		Categories: map[types.Category]CategoryFormats{
			types.CategoryDocument: {
				Input:  []string{"pdf", "docx", "doc", "txt", "rtf", "odt", "pages"},
				Output: []string{"pdf", "docx", "txt", "rtf", "odt", "html"},
			},
			types.CategoryImage: {
				Input:  []string{"jpg", "jpeg", "png", "gif", "bmp", "tiff", "webp", "svg"},
				Output: []string{"jpg", "png", "gif", "webp", "bmp", "tiff", "svg"},
			},
			types.CategoryVideo: {
				Input:  []string{"mp4", "avi", "mov", "mkv", "wmv", "flv", "webm"},
				Output: []string{"mp4", "avi", "mov", "mkv", "webm", "gif"},
			},
			types.CategoryAudio: {
				Input:  []string{"mp3", "wav", "flac", "aac", "ogg", "wma", "m4a"},
				Output: []string{"mp3", "wav", "flac", "aac", "ogg"},
			},
		},
		Routes: map[string]string{
			"docx-to-pdf": "/convert/docx/to/pdf",
			"pdf-to-docx": "/convert/pdf/to/docx",
			"pdf-to-txt":  "/convert/pdf/to/txt",
			"docx-to-txt": "/convert/docx/to/txt",
			"txt-to-pdf":  "/convert/txt/to/pdf",
			"rtf-to-pdf":  "/convert/rtf/to/pdf",

			"jpg-to-png":  "/image/convert/jpg/to/png",
			"png-to-jpg":  "/image/convert/png/to/jpg",
			"gif-to-png":  "/image/convert/gif/to/png",
			"bmp-to-png":  "/image/convert/bmp/to/png",
			"tiff-to-png": "/image/convert/tiff/to/png",
			"webp-to-png": "/image/convert/webp/to/png",
			"png-to-webp": "/image/convert/png/to/webp",
			"jpg-to-webp": "/image/convert/jpg/to/webp",

			"mp4-to-avi":  "/video/convert/mp4/to/avi",
			"avi-to-mp4":  "/video/convert/avi/to/mp4",
			"mov-to-mp4":  "/video/convert/mov/to/mp4",
			"mkv-to-mp4":  "/video/convert/mkv/to/mp4",
			"webm-to-mp4": "/video/convert/webm/to/mp4",

			"mp3-to-wav":  "/audio/convert/mp3/to/wav",
			"wav-to-mp3":  "/audio/convert/wav/to/mp3",
			"flac-to-mp3": "/audio/convert/flac/to/mp3",
			"aac-to-mp3":  "/audio/convert/aac/to/mp3",
			"ogg-to-mp3":  "/audio/convert/ogg/to/mp3",
		},
		MIME: map[string]string{
			"pdf":  "application/pdf",
			"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"txt":  "text/plain",
			"html": "text/html",
			"rtf":  "application/rtf",
			"odt":  "application/vnd.oasis.opendocument.text",
			"jpg":  "image/jpeg",
			"jpeg": "image/jpeg",
			"png":  "image/png",
			"gif":  "image/gif",
			"bmp":  "image/bmp",
			"tiff": "image/tiff",
			"webp": "image/webp",
			"svg":  "image/svg+xml",
			"mp4":  "video/mp4",
			"avi":  "video/x-msvideo",
			"mov":  "video/quicktime",
			"mkv":  "video/x-matroska",
			"webm": "video/webm",
			"mp3":  "audio/mpeg",
			"wav":  "audio/wav",
			"flac": "audio/flac",
			"aac":  "audio/aac",
			"ogg":  "audio/ogg",
		},
	}
}

// Ext returns the lower-cased extension of filename without the dot, or
// "" when there is none.
func Ext(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// Normalize lower-cases a format name and strips a leading dot.
func Normalize(format string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
}

// RouteKey builds the Routes key for a pair.
func RouteKey(from, to string) string {
	return Normalize(from) + "-to-" + Normalize(to)
}

// Detect returns the category whose input set contains ext. Categories are
// checked in a fixed order so overlapping tables resolve deterministically.
func (t *Table) Detect(ext string) (types.Category, bool) {
	ext = Normalize(ext)
	for _, c := range t.CategoryNames() {
		if contains(t.Categories[c].Input, ext) {
			return c, true
		}
	}
	return "", false
}

// CategoryNames returns the configured categories, built-ins first in
// their usual order, then any extras sorted by name.
func (t *Table) CategoryNames() []types.Category {
	var names []types.Category
	for _, c := range categoryOrder {
		if _, ok := t.Categories[c]; ok {
			names = append(names, c)
		}
	}
	var extra []types.Category
	for c := range t.Categories {
		if !contains(categoryStrings(categoryOrder), string(c)) {
			extra = append(extra, c)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(names, extra...)
}

// Route returns the API path for converting from to to, and whether the
// pair is on the allow-list.
func (t *Table) Route(from, to string) (string, bool) {
	p, ok := t.Routes[RouteKey(from, to)]
	return p, ok
}

// Targets lists the supported targets for a source format, sorted.
func (t *Table) Targets(from string) []string {
	prefix := Normalize(from) + "-to-"
	var out []string
	for k := range t.Routes {
		if strings.HasPrefix(k, prefix) {
			out = append(out, strings.TrimPrefix(k, prefix))
		}
	}
	sort.Strings(out)
	return out
}

// ValidatePair checks a (from, to) pair against the tables. It returns the
// category shared by both formats and the API route, or a
// ValidationError carrying the user-facing message.
func (t *Table) ValidatePair(from, to string) (types.Category, string, error) {
	from, to = Normalize(from), Normalize(to)
	if from == "" || to == "" {
		return "", "", &types.ValidationError{Message: types.MsgNoFormatSelected}
	}
	if from == to {
		return "", "", &types.ValidationError{Message: types.MsgSameFormat}
	}
	cat, ok := t.Detect(from)
	if !ok {
		return "", "", types.Validationf("Conversion from %s to %s is not supported", from, to)
	}
	if !contains(t.Categories[cat].Output, to) {
		return "", "", types.Validationf("Conversion from %s to %s is not supported", from, to)
	}
	route, ok := t.Route(from, to)
	if !ok {
		return "", "", types.Validationf("Conversion from %s to %s is not supported", from, to)
	}
	return cat, route, nil
}

// ContentType returns the MIME type for a format, falling back to
// application/octet-stream.
func (t *Table) ContentType(format string) string {
	if m, ok := t.MIME[Normalize(format)]; ok {
		return m
	}
	return octetStream
}

// OutputFilename rewrites the extension of name to target. A name without
// an extension gets one appended.
func OutputFilename(name, target string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return base + "." + Normalize(target)
}

// Validate checks the internal consistency of a loaded table: every route
// must join two formats of one category.
func (t *Table) Validate() error {
	if len(t.Categories) == 0 {
		return fmt.Errorf("format table has no categories")
	}
	for key := range t.Routes {
		from, to, ok := strings.Cut(key, "-to-")
		if !ok || from == "" || to == "" {
			return fmt.Errorf("malformed route key %q", key)
		}
		cat, ok := t.Detect(from)
		if !ok {
			return fmt.Errorf("route %q: source %s is not in any category", key, from)
		}
		if !contains(t.Categories[cat].Output, to) {
			return fmt.Errorf("route %q: target %s is not an output of %s", key, to, cat)
		}
	}
	return nil
}

// FormatFileSize renders a byte count for humans ("1.5 MB", "0 Bytes").
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	sizes := []string{"Bytes", "KB", "MB", "GB", "TB"}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizes) {
		i = len(sizes) - 1
	}
	v := float64(bytes) / math.Pow(1024, float64(i))
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64) + " " + sizes[i]
}

// TooLarge reports a file over the max-byte limit, naming the limit as
// "100MB" style text.
func TooLarge(max int64) *types.ValidationError {
	limit := FormatFileSize(max)
	if !strings.HasSuffix(limit, " Bytes") {
		limit = strings.Replace(limit, " ", "", 1)
	}
	return types.Validationf(types.MsgFileTooLarge, limit)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func categoryStrings(cs []types.Category) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}
