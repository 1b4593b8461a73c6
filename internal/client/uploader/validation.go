package uploader

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// AssetCategory is the closed set of media kinds a studio can upload.
type AssetCategory string

const (
	CategoryVideo    AssetCategory = "video"
	CategoryPhoto    AssetCategory = "photo"
	CategoryAudio    AssetCategory = "audio"
	CategoryDocument AssetCategory = "document"
	// CategoryAny admits any extension known to some category.
	CategoryAny AssetCategory = ""
)

var categoryExtensions = map[AssetCategory]map[string]struct{}{
	CategoryVideo:    toSet(".mp4", ".mov", ".avi", ".mkv", ".webm", ".m4v", ".mxf"),
	CategoryPhoto:    toSet(".jpg", ".jpeg", ".png", ".gif", ".webp", ".tif", ".tiff", ".heic", ".dng", ".cr2", ".nef"),
	CategoryAudio:    toSet(".mp3", ".wav", ".aac", ".flac", ".m4a"),
	CategoryDocument: toSet(".pdf"),
}

func toSet(exts ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		set[e] = struct{}{}
	}
	return set
}

// ParseCategory maps a user-supplied name to an AssetCategory.
func ParseCategory(s string) (AssetCategory, bool) {
	switch c := AssetCategory(strings.ToLower(s)); c {
	case CategoryVideo, CategoryPhoto, CategoryAudio, CategoryDocument:
		return c, true
	default:
		return CategoryAny, false
	}
}

// ValidationResult is the outcome of a pure validation check.
type ValidationResult struct {
	Valid  bool
	Reason string
}

// ValidateExtension checks whether fileName is admissible for the given
// category. CategoryAny accepts any extension listed under some category.
func ValidateExtension(fileName string, category AssetCategory) ValidationResult {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		return ValidationResult{Reason: "file has no extension"}
	}

	if category == CategoryAny {
		for _, set := range categoryExtensions {
			if _, ok := set[ext]; ok {
				return ValidationResult{Valid: true}
			}
		}
		return ValidationResult{Reason: fmt.Sprintf("unsupported file type %q", ext)}
	}

	set, ok := categoryExtensions[category]
	if !ok {
		return ValidationResult{Reason: fmt.Sprintf("unknown category %q", category)}
	}
	if _, ok := set[ext]; !ok {
		return ValidationResult{Reason: fmt.Sprintf("%q is not a valid %s file", ext, category)}
	}
	return ValidationResult{Valid: true}
}

// FileError is one file's validation failure within a rejected batch.
type FileError struct {
	FileName string
	Reason   string
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %s", e.FileName, e.Reason)
}

// BatchError aggregates per-file validation failures. When any file in a
// multi-file selection is invalid the whole batch is rejected and no task
// is enqueued.
type BatchError struct {
	Files []FileError
}

func (e *BatchError) Error() string {
	msgs := make([]string, 0, len(e.Files))
	for _, f := range e.Files {
		msgs = append(msgs, f.Error())
	}
	return "batch rejected: " + strings.Join(msgs, "; ")
}

// AsBatchError unwraps err into a *BatchError, if it is one.
func AsBatchError(err error) (*BatchError, bool) {
	var be *BatchError
	ok := errors.As(err, &be)
	return be, ok
}
