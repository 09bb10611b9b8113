package uploader

import (
	"context"
	"fmt"

	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/safe-uploader/internal/model"
	"github.com/aliskhannn/safe-uploader/internal/tags"
)

// Placement is what a custom strategy reports about where the file ended up.
type Placement struct {
	Path    string // local path, recorded as the uploaded file path when set
	RealURL string // final location when the file left the local filesystem
}

// PlacementStrategy moves a validated file to its final location.
// It is either Default or a Custom function.
type PlacementStrategy interface {
	place(ctx context.Context, u *Uploader, r *run, job placementJob)
}

// placementJob is the input of a placement strategy.
type placementJob struct {
	profile model.Profile
	source  string
	payload model.Payload
	upload  *model.RawUpload
}

// Default is the built-in strategy: resolve the destination from the profile
// templates, move the file there and generate thumbnails for images.
var Default PlacementStrategy = defaultPlacement{}

type defaultPlacement struct{}

func (defaultPlacement) place(ctx context.Context, u *Uploader, r *run, job placementJob) {
	resolver := tags.NewResolver(job.payload, tags.RunTags(u.now()))
	logUnresolved(resolver, job.profile)

	// Resolve the destination.
	dir, dst, err := resolver.Destination(job.profile, job.source)
	if err != nil {
		r.fail(fmt.Errorf("%w: %s: %v", ErrMoveFailed, job.source, err))
		return
	}

	if err := ctx.Err(); err != nil {
		r.fail(err)
		return
	}

	// Create sub directories if any.
	if err := u.files.EnsureParentDir(dst); err != nil {
		r.fail(fmt.Errorf("%w: could not move file %s to %s: %v", ErrMoveFailed, job.source, dst, err))
		return
	}

	if err := u.files.Move(job.source, dst); err != nil {
		zlog.Logger.Error().Err(err).Str("src", job.source).Str("dst", dst).Msg("failed to move file")
		r.fail(fmt.Errorf("%w: could not move file %s to %s: %v", ErrMoveFailed, job.source, dst, err))
		return
	}

	r.result.uploadedFilePath = dst
	r.addPath(dst)

	zlog.Logger.Info().Str("path", dst).Msg("file placed")

	if !job.profile.IsImage {
		return
	}

	// Thumbnails fail independently of each other.
	for _, thumb := range resolver.Thumbs(dst, dir, job.profile.Thumbs) {
		if err := ctx.Err(); err != nil {
			r.fail(err)
			return
		}

		if err := u.thumbnail(ctx, r, thumb); err != nil {
			zlog.Logger.Error().Err(err).Str("dst", thumb.Dst).Int("index", thumb.Index).Msg("failed to create thumbnail")
			r.fail(err)
			continue
		}

		r.addPath(thumb.Dst)
	}
}

// Custom is a caller-provided strategy. It runs after every check passed and
// owns the whole placement: the built-in move and thumbnails never run.
// upload is never nil; for plain file uploads it describes the source file.
type Custom func(ctx context.Context, u *Uploader, upload *model.RawUpload, payload model.Payload) (Placement, error)

func (c Custom) place(ctx context.Context, u *Uploader, r *run, job placementJob) {
	p, err := c(ctx, u, job.upload, job.payload)
	if err != nil {
		r.fail(fmt.Errorf("%w: %s: %v", ErrMoveFailed, job.source, err))
		return
	}

	if p.Path != "" {
		r.result.uploadedFilePath = p.Path
		r.addPath(p.Path)
	}
	r.result.realURL = p.RealURL

	zlog.Logger.Info().Str("path", p.Path).Str("url", p.RealURL).Msg("file placed by custom strategy")
}

func logUnresolved(r *tags.Resolver, p model.Profile) {
	for _, tmpl := range []string{p.Dir, p.File} {
		for _, name := range tags.Names(tmpl) {
			if _, ok := r.Value(name); !ok {
				zlog.Logger.Debug().Str("tag", name).Str("template", tmpl).Msg("tag has no value, replaced with empty string")
			}
		}
	}
}
