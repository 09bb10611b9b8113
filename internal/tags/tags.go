// Package tags expands {name} placeholders in path and file name templates and
// derives the destination paths of an upload and its thumbnails.
//
// A token whose name has no value is replaced with the empty string. The same
// rule applies to every template of a run: the directory, the file name and all
// thumbnail templates.
package tags

import (
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aliskhannn/safe-uploader/internal/model"
)

// Built-in run tags. Payload keys of the same name take precedence.
const (
	UUIDTag = "_uuid"
	DateTag = "_date"
)

// ErrEscapesDir is returned when a resolved file name points outside its directory.
var ErrEscapesDir = errors.New("resolved path escapes the destination directory")

// ErrEmptyFileName is returned when a file name template resolves to nothing.
var ErrEmptyFileName = errors.New("resolved file name is empty")

var tagPattern = regexp.MustCompile(`\{([A-Za-z0-9_.-]+)\}`)

// Replace expands every {name} token of tmpl with values[name].
// Tokens without a value are replaced with the empty string.
func Replace(tmpl string, values map[string]string) string {
	return tagPattern.ReplaceAllStringFunc(tmpl, func(token string) string {
		return values[token[1:len(token)-1]]
	})
}

// Names returns the tag names referenced by tmpl, in order of appearance.
func Names(tmpl string) []string {
	matches := tagPattern.FindAllStringSubmatch(tmpl, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// RunTags returns the built-in tags of a single run.
func RunTags(now time.Time) map[string]string {
	return map[string]string{
		UUIDTag: uuid.NewString(),
		DateTag: now.Format(time.DateOnly),
	}
}

// Resolver resolves the templates of one run against a fixed set of values.
type Resolver struct {
	values map[string]string
}

// NewResolver creates a Resolver for payload. Built-in tags fill in names the payload does not set.
func NewResolver(payload model.Payload, builtins map[string]string) *Resolver {
	values := make(map[string]string, len(payload)+len(builtins))
	maps.Copy(values, builtins)
	maps.Copy(values, payload)

	return &Resolver{values: values}
}

// Value returns the value used for tag name.
func (r *Resolver) Value(name string) (string, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Dir resolves the destination directory template of a profile.
func (r *Resolver) Dir(p model.Profile) string {
	return filepath.Clean(Replace(p.Dir, r.values))
}

// FileName picks and resolves the destination file name.
//
// Priority: the profile's file template, then the payload's _file value, then the
// base name of sourcePath. Names taken from _file or the source path are reduced
// to their base name.
func (r *Resolver) FileName(p model.Profile, sourcePath string) string {
	if p.File != "" {
		return Replace(p.File, r.values)
	}

	if name, ok := r.values[model.FileKey]; ok && name != "" {
		return Replace(baseName(name), r.values)
	}

	return Replace(baseName(sourcePath), r.values)
}

// Destination returns the resolved destination directory and full file path for sourcePath.
func (r *Resolver) Destination(p model.Profile, sourcePath string) (dir, path string, err error) {
	dir = r.Dir(p)

	name := r.FileName(p, sourcePath)
	if strings.TrimSpace(name) == "" {
		return dir, "", ErrEmptyFileName
	}

	path = filepath.Join(dir, name)
	if !within(dir, path) {
		return dir, "", fmt.Errorf("%w: %s", ErrEscapesDir, path)
	}

	return dir, path, nil
}

// Thumb is a fully resolved thumbnail job.
type Thumb struct {
	Index     int
	Dir       string // directory the thumbnail is written to
	Src       string // placed primary file
	Dst       string // thumbnail path
	MaxWidth  int
	MaxHeight int
	Watermark string
}

// Thumbs resolves every thumbnail spec against the placed primary file.
//
// Thumbnail templates see the run values plus dir, file, fileName, ext, width,
// height and index; these shadow payload keys of the same name. A spec without a
// dir writes next to the primary file; a relative dir is taken relative to the
// primary directory. Without a file template the name is {fileName}-{width}x{height}.{ext}.
func (r *Resolver) Thumbs(primaryPath, primaryDir string, specs []model.ThumbSpec) []Thumb {
	file := filepath.Base(primaryPath)
	ext := strings.TrimPrefix(filepath.Ext(file), ".")
	stem := strings.TrimSuffix(file, filepath.Ext(file))

	thumbs := make([]Thumb, 0, len(specs))
	for i, spec := range specs {
		values := maps.Clone(r.values)
		values["dir"] = primaryDir
		values["file"] = file
		values["fileName"] = stem
		values["ext"] = ext
		values["width"] = strconv.Itoa(spec.MaxWidth)
		values["height"] = strconv.Itoa(spec.MaxHeight)
		values["index"] = strconv.Itoa(i)

		dir := primaryDir
		if spec.Dir != "" {
			dir = filepath.Clean(Replace(spec.Dir, values))
			if !filepath.IsAbs(dir) {
				dir = filepath.Join(primaryDir, dir)
			}
		}

		tmpl := spec.File
		if tmpl == "" {
			tmpl = "{fileName}-{width}x{height}"
			if ext != "" {
				tmpl += ".{ext}"
			}
		}

		thumbs = append(thumbs, Thumb{
			Index:     i,
			Dir:       dir,
			Src:       primaryPath,
			Dst:       filepath.Join(dir, baseName(Replace(tmpl, values))),
			MaxWidth:  spec.MaxWidth,
			MaxHeight: spec.MaxHeight,
			Watermark: spec.Watermark,
		})
	}

	return thumbs
}

// baseName strips any directory part, including Windows separators sent by clients.
func baseName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.ReplaceAll(name, "\x00", "")

	base := filepath.Base(name)
	if base == "." || base == ".." || base == "/" {
		return ""
	}
	return base
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
