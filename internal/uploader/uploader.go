// Package uploader validates an uploaded file against a named profile and places it,
// generating thumbnails for images.
//
// A run goes through these steps, stopping at the first failing one:
//
//	resolve profile -> validate -> place -> thumbnails
//
// Every entry point returns a fresh RunResult. In Raise mode the first error is
// also returned; in Collect mode errors are recorded in the result instead.
package uploader

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/safe-uploader/internal/model"
	"github.com/aliskhannn/safe-uploader/internal/tags"
	"github.com/aliskhannn/safe-uploader/internal/validator"
)

// DefaultField is the upload field used when none is given.
const DefaultField = "file"

// fileStorage defines the filesystem operations of a run.
type fileStorage interface {
	IsFile(path string) bool
	Size(path string) (int64, error)
	MimeType(path string) (string, error)
	EnsureDir(dir string) error
	EnsureParentDir(path string) error
	Move(src, dst string) error
}

// thumbnailer generates one size-bounded copy of an image.
type thumbnailer interface {
	Thumbnail(ctx context.Context, src, dst string, maxWidth, maxHeight int, watermark string) error
}

// profileSource loads a profile by id.
type profileSource interface {
	Profile(id string) (model.Profile, error)
}

// Options are the per-call parameters of a run.
type Options struct {
	Mode    Mode
	Payload model.Payload
	Upload  *model.RawUpload // raw descriptor handed to custom strategies
}

// Uploader runs upload profiles. It holds no per-run state and can be shared.
type Uploader struct {
	files      fileStorage
	thumbs     thumbnailer
	validator  *validator.Validator
	profiles   profileSource
	strategies map[string]PlacementStrategy
	now        func() time.Time
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithProfileSource sets where profiles are loaded from by UploadFile and UploadRaw.
func WithProfileSource(src profileSource) Option {
	return func(u *Uploader) {
		u.profiles = src
	}
}

// WithPlacement registers a custom strategy under name. Profiles select it with moveHandler.
func WithPlacement(name string, s Custom) Option {
	return func(u *Uploader) {
		u.strategies[name] = s
	}
}

// WithClock overrides the clock used for the {_date} tag.
func WithClock(now func() time.Time) Option {
	return func(u *Uploader) {
		u.now = now
	}
}

// New creates a new Uploader with the given filesystem and thumbnail backends.
func New(files fileStorage, thumbs thumbnailer, opts ...Option) *Uploader {
	u := &Uploader{
		files:      files,
		thumbs:     thumbs,
		validator:  validator.New(files),
		strategies: make(map[string]PlacementStrategy),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(u)
	}

	return u
}

// UploadRaw uploads the file received under field of set.
//
// The descriptor must be well formed, report no transport error, have a non-zero
// size and point to a file the receiving layer wrote itself. The client file name
// is added to the payload under "_file" before UploadFile runs.
func (u *Uploader) UploadRaw(ctx context.Context, profileID, field string, set *model.UploadSet, opts Options) (RunResult, error) {
	r := newRun(opts.Mode)

	if field == "" {
		field = DefaultField
	}

	upload, err := checkUpload(field, set)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("field", field).Msg("rejected upload")
		r.fail(err)
		return r.done()
	}

	opts.Payload = opts.Payload.With(model.FileKey, upload.Name)
	opts.Upload = &upload

	u.uploadFile(ctx, r, profileID, upload.TmpName, opts)
	return r.done()
}

func checkUpload(field string, set *model.UploadSet) (model.RawUpload, error) {
	upload, ok := set.Get(field)
	if !ok {
		return upload, fmt.Errorf("%w: name %q not found in upload set", ErrStructuralUpload, field)
	}

	switch {
	case upload.Name == "" || upload.TmpName == "" || upload.Size < 0:
		return upload, fmt.Errorf("%w: something is wrong with the structure of file %s: %+v", ErrStructuralUpload, field, upload)
	case upload.Error != model.UploadOK:
		return upload, fmt.Errorf("%w: the following upload error appeared for file %s: %s", ErrStructuralUpload, field, upload.Error)
	case upload.Size == 0:
		return upload, fmt.Errorf("%w: the uploaded file size for file %s is 0", ErrStructuralUpload, field)
	case !set.Received(upload.TmpName):
		return upload, fmt.Errorf("%w: the file %s was not received as an upload", ErrStructuralUpload, field)
	}

	return upload, nil
}

// UploadFile loads profileID from the profile source and executes it on sourcePath.
func (u *Uploader) UploadFile(ctx context.Context, profileID, sourcePath string, opts Options) (RunResult, error) {
	r := newRun(opts.Mode)
	u.uploadFile(ctx, r, profileID, sourcePath, opts)
	return r.done()
}

func (u *Uploader) uploadFile(ctx context.Context, r *run, profileID, sourcePath string, opts Options) {
	if u.profiles == nil {
		r.fail(fmt.Errorf("%w: no configuration file set", ErrConfigNotFound))
		return
	}

	profile, err := u.profiles.Profile(profileID)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("profile", profileID).Msg("failed to resolve profile")
		r.fail(err)
		return
	}

	zlog.Logger.Debug().Str("profile", profileID).Str("source", sourcePath).Msg("profile resolved")

	u.executeProfile(ctx, r, profile, sourcePath, opts)
}

// ExecuteProfile validates sourcePath against profile and places it.
func (u *Uploader) ExecuteProfile(ctx context.Context, profile model.Profile, sourcePath string, opts Options) (RunResult, error) {
	r := newRun(opts.Mode)
	u.executeProfile(ctx, r, profile, sourcePath, opts)
	return r.done()
}

func (u *Uploader) executeProfile(ctx context.Context, r *run, profile model.Profile, sourcePath string, opts Options) {
	if err := ctx.Err(); err != nil {
		r.fail(err)
		return
	}

	// Only regular files are placed; directories and devices are rejected.
	if !u.files.IsFile(sourcePath) {
		r.fail(fmt.Errorf("%w: %s is not a regular file", ErrSourceNotFound, sourcePath))
		return
	}

	profile = profile.WithDefaults()
	r.setProfile(profile)

	strategy, err := u.strategy(profile)
	if err != nil {
		r.fail(err)
		return
	}

	// Checks.
	if errs := u.validator.Validate(ctx, profile, sourcePath, r.mode == Raise); len(errs) > 0 {
		for _, err := range errs {
			r.fail(err)
		}
		return
	}

	zlog.Logger.Debug().Str("source", sourcePath).Msg("file validated")

	payload := opts.Payload.Clone()
	upload := opts.Upload
	if upload == nil {
		upload = u.describe(sourcePath, payload)
	}

	strategy.place(ctx, u, r, placementJob{
		profile: profile,
		source:  sourcePath,
		payload: payload,
		upload:  upload,
	})
}

func (u *Uploader) strategy(p model.Profile) (PlacementStrategy, error) {
	if p.MoveHandler == "" {
		return Default, nil
	}

	s, ok := u.strategies[p.MoveHandler]
	if !ok {
		return nil, fmt.Errorf("%w: unknown moveHandler %q", ErrInvalidProfile, p.MoveHandler)
	}
	return s, nil
}

// describe builds the raw descriptor of a file that did not come from an upload set.
// Size is -1 when it cannot be read.
func (u *Uploader) describe(sourcePath string, payload model.Payload) *model.RawUpload {
	name := payload[model.FileKey]
	if name == "" {
		name = filepath.Base(sourcePath)
	}

	size, err := u.files.Size(sourcePath)
	if err != nil {
		zlog.Logger.Debug().Err(err).Str("source", sourcePath).Msg("source size unknown")
		size = -1
	}

	return &model.RawUpload{Name: name, TmpName: sourcePath, Size: size}
}

// thumbnail creates one thumbnail, refusing destinations already produced by the run.
func (u *Uploader) thumbnail(ctx context.Context, r *run, t tags.Thumb) error {
	if r.produced(t.Dst) {
		return fmt.Errorf("%w: the thumb %s couldn't be created to %s: path already produced by this upload",
			ErrThumbnailFailed, t.Src, t.Dst)
	}

	if err := u.files.EnsureDir(t.Dir); err != nil {
		return fmt.Errorf("%w: the thumb %s couldn't be created to %s: %v", ErrThumbnailFailed, t.Src, t.Dst, err)
	}

	if err := u.thumbs.Thumbnail(ctx, t.Src, t.Dst, t.MaxWidth, t.MaxHeight, t.Watermark); err != nil {
		return fmt.Errorf("%w: the thumb %s couldn't be created to %s: %v", ErrThumbnailFailed, t.Src, t.Dst, err)
	}

	return nil
}
