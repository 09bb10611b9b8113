package model

import "maps"

// DefaultDir is the destination directory used when a profile does not set one.
const DefaultDir = "/tmp/SafeUploader"

// DefaultMaxSize is the size limit applied when a profile does not set one.
const DefaultMaxSize = "2M"

// Profile describes validation rules and destination templates for one upload use case.
type Profile struct {
	Dir               string      `json:"dir"`              // destination directory template
	File              string      `json:"file,omitempty"`   // destination file name template, empty to derive it
	Thumbs            []ThumbSpec `json:"thumbs,omitempty"` // thumbnails generated after placement
	IsImage           bool        `json:"isImage"`
	AcceptedMimeTypes []string    `json:"acceptedMimeType,omitempty"` // nil disables the mime check
	MaxSize           MaxSize     `json:"maxSize"`
	MoveHandler       string      `json:"moveHandler,omitempty"` // name of a registered placement strategy
}

// ThumbSpec describes one size-bounded image variant derived from the placed file.
type ThumbSpec struct {
	MaxWidth  int    `json:"maxWidth"`
	MaxHeight int    `json:"maxHeight"`
	File      string `json:"file,omitempty"`      // naming template
	Dir       string `json:"dir,omitempty"`       // directory template, relative to the primary dir unless absolute
	Watermark string `json:"watermark,omitempty"` // optional text drawn in the bottom-right corner
}

// WithDefaults returns a copy of the profile with every unset key replaced by its default.
// Keys set on the profile always win.
func (p Profile) WithDefaults() Profile {
	merged := p

	if merged.Dir == "" {
		merged.Dir = DefaultDir
	}

	if !merged.MaxSize.IsSet() {
		// DefaultMaxSize is a constant known to parse.
		merged.MaxSize, _ = ParseMaxSize(DefaultMaxSize)
	}

	merged.Thumbs = append([]ThumbSpec(nil), p.Thumbs...)
	merged.AcceptedMimeTypes = append([]string(nil), p.AcceptedMimeTypes...)
	if len(merged.AcceptedMimeTypes) == 0 {
		merged.AcceptedMimeTypes = nil
	}

	return merged
}

// Payload holds caller-supplied values used for tag substitution.
type Payload map[string]string

// FileKey is the reserved payload key carrying the original client file name.
const FileKey = "_file"

// Clone returns an independent copy of the payload. A nil payload clones to an empty one.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p)+1)
	maps.Copy(out, p)
	return out
}

// With returns a copy of the payload with key set to value.
func (p Payload) With(key, value string) Payload {
	out := p.Clone()
	out[key] = value
	return out
}
